package closing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/bpo/cashclosing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// DraftInput is the raw form content typed by the client. Money fields hold
// user text. Blank supply, withdrawal and sales mean zero; blank opening and
// reported balances are missing.
type DraftInput struct {
	Title                  string
	Date                   string
	ResponsibleName        string
	OpeningBalance         string
	SupplyAmount           string
	WithdrawalAmount       string
	ReportedClosingBalance string
	Sales                  map[PaymentMethod]string
	Notes                  string
	Attachments            []Attachment
}

// InputFromFields renders typed fields back into raw input so stored drafts
// go through the same checks as fresh submissions.
func InputFromFields(f ClosingFields) DraftInput {
	sales := make(map[PaymentMethod]string, len(AllPaymentMethods))
	for _, e := range f.Sales.Entries() {
		sales[e.Method] = e.Amount.PlainString()
	}
	date := ""
	if !f.Date.IsZero() {
		date = f.Date.Format(DateLayout)
	}
	opening, reported := f.OpeningBalance.PlainString(), f.ReportedClosingBalance.PlainString()
	if f.OpeningBalanceBlank {
		opening = ""
	}
	if f.ReportedBalanceBlank {
		reported = ""
	}
	return DraftInput{
		Title:                  f.Title,
		Date:                   date,
		ResponsibleName:        f.ResponsibleName,
		OpeningBalance:         opening,
		SupplyAmount:           f.SupplyAmount.PlainString(),
		WithdrawalAmount:       f.WithdrawalAmount.PlainString(),
		ReportedClosingBalance: reported,
		Sales:                  sales,
		Notes:                  f.Notes,
		Attachments:            f.Attachments,
	}
}

type moneyField struct {
	name  string
	raw   string
	dst   *valueobject.Money
	blank *bool // set for balances that must be typed before submission
}

// fieldParser accumulates parse results and field errors in check order.
// Strict parsing rejects blank required balances.
type fieldParser struct {
	currency valueobject.Currency
	strict   bool
	errs     []FieldError
}

func (p *fieldParser) fail(field, code, message string) {
	p.errs = append(p.errs, FieldError{Field: field, Code: code, Message: message})
}

func (p *fieldParser) money(field, raw string) valueobject.Money {
	if strings.TrimSpace(raw) == "" {
		return valueobject.Zero(p.currency)
	}
	m, err := valueobject.ParseUserInput(raw, p.currency)
	if err != nil {
		msg := err.Error()
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			msg = domainErr.Message
		}
		p.fail(field, CodeInvalidAmount, fmt.Sprintf("%s: %s", field, msg))
		return valueobject.Zero(p.currency)
	}
	return m
}

func (p *fieldParser) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: p.errs}
}

// parseAmounts runs checks 3 to 7: opening, supply, withdrawal, reported, then sales
func (p *fieldParser) parseAmounts(in DraftInput, out *ClosingFields) {
	for _, f := range []moneyField{
		{"opening_balance", in.OpeningBalance, &out.OpeningBalance, &out.OpeningBalanceBlank},
		{"supply_amount", in.SupplyAmount, &out.SupplyAmount, nil},
		{"withdrawal_amount", in.WithdrawalAmount, &out.WithdrawalAmount, nil},
		{"reported_closing_balance", in.ReportedClosingBalance, &out.ReportedClosingBalance, &out.ReportedBalanceBlank},
	} {
		if f.blank != nil && strings.TrimSpace(f.raw) == "" {
			*f.blank = true
			*f.dst = valueobject.Zero(p.currency)
			if p.strict {
				p.fail(f.name, CodeMissingRequiredField, f.name+" is required")
			}
			continue
		}
		*f.dst = p.money(f.name, f.raw)
	}

	unknown := make([]string, 0)
	for method := range in.Sales {
		if !method.IsValid() {
			unknown = append(unknown, string(method))
		}
	}
	sort.Strings(unknown)
	for _, method := range unknown {
		p.fail("sales."+method, CodeInvalidAmount, fmt.Sprintf("sales: unknown payment method %q", method))
	}
	for _, method := range AllPaymentMethods {
		field := "sales." + string(method)
		out.Sales = out.Sales.With(method, p.money(field, in.Sales[method]))
	}
}

func (p *fieldParser) parseDate(raw string, out *ClosingFields, required bool) {
	if strings.TrimSpace(raw) == "" {
		if required {
			p.fail("date", CodeMissingRequiredField, "date is required")
		}
		return
	}
	d, err := ParseDate(raw)
	if err != nil {
		p.fail("date", CodeMissingRequiredField, fmt.Sprintf("date %q is not a valid calendar date (YYYY-MM-DD)", raw))
		return
	}
	out.Date = d
}

func baseFields(in DraftInput) ClosingFields {
	attachments := make([]Attachment, 0, len(in.Attachments))
	for _, a := range in.Attachments {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		attachments = append(attachments, a)
	}
	return ClosingFields{
		Title:           strings.TrimSpace(in.Title),
		ResponsibleName: strings.TrimSpace(in.ResponsibleName),
		Notes:           in.Notes,
		Attachments:     attachments,
	}
}

// ParseDraft converts raw input into typed fields for saving a draft. Only
// amounts and a present-but-malformed date are rejected; title, date and the
// balances may still be blank.
func ParseDraft(in DraftInput, currency valueobject.Currency) (ClosingFields, error) {
	p := &fieldParser{currency: currency}
	out := baseFields(in)
	p.parseDate(in.Date, &out, false)
	p.parseAmounts(in, &out)
	return out, p.err()
}

// Validate runs every submission check in order:
//
//  1. title non-empty
//  2. date present and a valid calendar date
//  3. opening balance, 4. supply, 5. withdrawal, 6. reported balance: valid and non-negative;
//     opening and reported balances may not be blank
//  7. every sales entry valid and non-negative
//  8. a positive withdrawal has at least one attachment
//
// All failures are collected; the first one is the blocking error.
func Validate(in DraftInput, currency valueobject.Currency) (ClosingFields, error) {
	p := &fieldParser{currency: currency, strict: true}
	out := baseFields(in)

	if out.Title == "" {
		p.fail("title", CodeMissingRequiredField, "title is required")
	}
	p.parseDate(in.Date, &out, true)
	p.parseAmounts(in, &out)

	if out.WithdrawalAmount.IsPositive() && len(out.Attachments) == 0 {
		p.fail("attachments", CodeMissingMandatoryAttachment,
			"a withdrawal requires at least one attachment as proof")
	}

	return out, p.err()
}

// ValidateFields re-runs the submission checks over typed fields
func ValidateFields(f ClosingFields, currency valueobject.Currency) error {
	_, err := Validate(InputFromFields(f), currency)
	return err
}
