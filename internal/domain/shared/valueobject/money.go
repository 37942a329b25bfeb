package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CodeInvalidAmount is the domain error code for unparsable or negative money input
const CodeInvalidAmount = "INVALID_AMOUNT"

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	BRL Currency = "BRL" // Brazilian Real (default)
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = BRL

// DefaultLocale is used by Display when no locale is given
const DefaultLocale = "pt-BR"

var currencySymbols = map[Currency]string{
	BRL: "R$",
	USD: "US$",
	EUR: "€",
	GBP: "£",
}

// ParseCurrency validates an ISO 4217 code
func ParseCurrency(code string) (Currency, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return "", fmt.Errorf("invalid currency code %q: %w", code, err)
	}
	return Currency(unit.String()), nil
}

// Symbol returns the display symbol for the currency, falling back to the ISO code
func (c Currency) Symbol() string {
	if s, ok := currencySymbols[c]; ok {
		return s
	}
	return string(c)
}

// Money is an immutable monetary amount held as an integer number of cents.
type Money struct {
	cents    int64
	currency Currency
}

// NewMoney creates Money from cents in the given currency
func NewMoney(cents int64, currency Currency) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{cents: cents, currency: currency}
}

// NewMoneyBRL creates Money in BRL from cents
func NewMoneyBRL(cents int64) Money {
	return Money{cents: cents, currency: BRL}
}

// NewMoneyFromDecimal converts a decimal with at most two fractional digits into Money
func NewMoneyFromDecimal(amount decimal.Decimal, currency Currency) (Money, error) {
	shifted := amount.Shift(2)
	if !shifted.Equal(shifted.Truncate(0)) {
		return Money{}, shared.NewDomainError(CodeInvalidAmount,
			fmt.Sprintf("amount %s has more than two decimal places", amount.String()))
	}
	if !shifted.Abs().LessThan(maxCents) {
		return Money{}, shared.NewDomainError(CodeInvalidAmount, "amount is too large")
	}
	return NewMoney(shifted.IntPart(), currency), nil
}

// Zero returns zero money in the specified currency
func Zero(currency Currency) Money {
	return NewMoney(0, currency)
}

// Cents returns the amount in minor units
func (m Money) Cents() int64 {
	return m.cents
}

// Currency returns the currency
func (m Money) Currency() Currency {
	if m.currency == "" {
		return DefaultCurrency
	}
	return m.currency
}

// Decimal returns the amount in major units
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.cents, -2)
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.cents == 0
}

// IsPositive returns true if the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.cents > 0
}

// IsNegative returns true if the amount is less than zero
func (m Money) IsNegative() bool {
	return m.cents < 0
}

func (m Money) checkCurrency(other Money) error {
	if m.Currency() != other.Currency() {
		return fmt.Errorf("currency mismatch: %s vs %s", m.Currency(), other.Currency())
	}
	return nil
}

// Add returns the sum of two Money values
func (m Money) Add(other Money) (Money, error) {
	if err := m.checkCurrency(other); err != nil {
		return Money{}, err
	}
	return NewMoney(m.cents+other.cents, m.Currency()), nil
}

// MustAdd adds and panics on currency mismatch
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns the difference of two Money values
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.checkCurrency(other); err != nil {
		return Money{}, err
	}
	return NewMoney(m.cents-other.cents, m.Currency()), nil
}

// MustSubtract subtracts and panics on currency mismatch
func (m Money) MustSubtract(other Money) Money {
	result, err := m.Subtract(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Compare returns -1, 0 or 1 when m is less than, equal to or greater than other
func (m Money) Compare(other Money) (int, error) {
	if err := m.checkCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.cents < other.cents:
		return -1, nil
	case m.cents > other.cents:
		return 1, nil
	default:
		return 0, nil
	}
}

// Negate returns the negated amount
func (m Money) Negate() Money {
	return NewMoney(-m.cents, m.Currency())
}

// Abs returns the absolute value
func (m Money) Abs() Money {
	if m.cents < 0 {
		return m.Negate()
	}
	return m
}

// Equals checks if two Money values are equal
func (m Money) Equals(other Money) bool {
	return m.cents == other.cents && m.Currency() == other.Currency()
}

// LessThan returns true if m < other
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c < 0, err
}

// GreaterThan returns true if m > other
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c > 0, err
}

// String renders "BRL 1234.56"
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Currency(), m.PlainString())
}

// PlainString renders the amount with a dot separator and no grouping, e.g. "-50.00"
func (m Money) PlainString() string {
	return m.Decimal().StringFixed(2)
}

// Display renders the amount for humans in the given BCP 47 locale:
// currency symbol, locale grouping and exactly two decimals ("R$ 1.234,56").
func (m Money) Display(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.BrazilianPortuguese
	}
	p := message.NewPrinter(tag)

	abs := m.cents
	sign := ""
	if abs < 0 {
		abs = -abs
		sign = "-"
	}

	amount := p.Sprint(number.Decimal(float64(abs)/100, number.Scale(2)))
	return fmt.Sprintf("%s%s %s", sign, m.Currency().Symbol(), amount)
}

// ParseUserInput parses free text typed by a person into Money.
// Accepted forms include "1234.56", "1234,56", "1.234,56", "1,234.56" and an
// optional leading currency symbol. Negative or non-numeric input fails with
// an INVALID_AMOUNT domain error.
func ParseUserInput(text string, currency Currency) (Money, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	raw := strings.TrimSpace(text)
	raw = strings.TrimPrefix(raw, currency.Symbol())
	raw = strings.TrimPrefix(raw, string(currency))
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Money{}, shared.NewDomainError(CodeInvalidAmount, "amount is empty")
	}
	if strings.HasPrefix(raw, "-") {
		return Money{}, shared.NewDomainError(CodeInvalidAmount,
			fmt.Sprintf("amount %q must not be negative", text))
	}
	raw = strings.TrimPrefix(raw, "+")

	normalized, ok := normalizeNumber(raw)
	if !ok {
		return Money{}, shared.NewDomainError(CodeInvalidAmount,
			fmt.Sprintf("amount %q is not a valid number", text))
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return Money{}, shared.NewDomainError(CodeInvalidAmount,
			fmt.Sprintf("amount %q is not a valid number", text))
	}
	return NewMoneyFromDecimal(d, currency)
}

var (
	plainNumber   = regexp.MustCompile(`^\d{1,15}(\.\d{1,2})?$`)
	groupedNumber = regexp.MustCompile(`^\d{1,3}(\d{3})*$`)
	maxCents      = decimal.New(1, 17)
)

// normalizeNumber rewrites a localized number into "1234.56" form.
// The right-most separator is the decimal mark when it is followed by one or
// two digits; every other separator must delimit groups of three digits.
func normalizeNumber(raw string) (string, bool) {
	lastSep := strings.LastIndexAny(raw, ".,")
	intPart, fracPart := raw, ""
	if lastSep >= 0 {
		tail := raw[lastSep+1:]
		if len(tail) >= 1 && len(tail) <= 2 {
			intPart, fracPart = raw[:lastSep], tail
		}
	}
	if strings.ContainsAny(intPart, ".,") {
		sep := ""
		if strings.Contains(intPart, ".") {
			sep = "."
		}
		if strings.Contains(intPart, ",") {
			if sep != "" {
				return "", false
			}
			sep = ","
		}
		if fracPart != "" && string(raw[lastSep]) == sep {
			return "", false
		}
		groups := strings.Split(intPart, sep)
		for i, g := range groups {
			if (i == 0 && (len(g) == 0 || len(g) > 3)) || (i > 0 && len(g) != 3) {
				return "", false
			}
		}
		intPart = strings.Join(groups, "")
		if !groupedNumber.MatchString(intPart) {
			return "", false
		}
	}
	if intPart == "" {
		intPart = "0"
	}
	normalized := intPart
	if fracPart != "" {
		normalized += "." + fracPart
	}
	if !plainNumber.MatchString(normalized) {
		return "", false
	}
	return normalized, true
}

// moneyJSON is the wire shape of Money
type moneyJSON struct {
	Amount   string   `json:"amount"`
	Cents    int64    `json:"cents"`
	Currency Currency `json:"currency"`
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:   m.PlainString(),
		Cents:    m.cents,
		Currency: m.Currency(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. Cents win over amount when both are set.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid money JSON: %w", err)
	}
	cur := raw.Currency
	if cur == "" {
		cur = DefaultCurrency
	}
	if raw.Cents != 0 || raw.Amount == "" {
		*m = NewMoney(raw.Cents, cur)
		return nil
	}
	d, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("invalid money amount: %w", err)
	}
	parsed, err := NewMoneyFromDecimal(d, cur)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer and stores the cents as a BIGINT
func (m Money) Value() (driver.Value, error) {
	return m.cents, nil
}

// Scan implements sql.Scanner over a BIGINT cents column
func (m *Money) Scan(value any) error {
	if value == nil {
		*m = Zero(DefaultCurrency)
		return nil
	}
	switch v := value.(type) {
	case int64:
		*m = NewMoney(v, DefaultCurrency)
	case int32:
		*m = NewMoney(int64(v), DefaultCurrency)
	case []byte:
		return m.scanString(string(v))
	case string:
		return m.scanString(v)
	default:
		return fmt.Errorf("cannot scan type %T into Money", value)
	}
	return nil
}

func (m *Money) scanString(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("cannot scan %q into Money: %w", s, err)
	}
	*m = NewMoney(d.IntPart(), DefaultCurrency)
	return nil
}
