package closing

import (
	"fmt"
	"strings"
	"time"

	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/bpo/cashclosing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// DateLayout is the calendar date format used for closing dates
const DateLayout = "2006-01-02"

// AggregateTypeClosingRecord is the aggregate type name used in events
const AggregateTypeClosingRecord = "ClosingRecord"

// ClosingStatus represents the workflow state of a closing record
type ClosingStatus string

const (
	ClosingStatusDraft     ClosingStatus = "DRAFT"     // being filled by the client
	ClosingStatusInReview  ClosingStatus = "IN_REVIEW" // submitted, awaiting operator
	ClosingStatusReturned  ClosingStatus = "RETURNED"  // sent back for correction
	ClosingStatusCompleted ClosingStatus = "COMPLETED" // finalized, read-only
)

// IsValid checks if the status is a valid ClosingStatus
func (s ClosingStatus) IsValid() bool {
	switch s {
	case ClosingStatusDraft, ClosingStatusInReview, ClosingStatusReturned, ClosingStatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of ClosingStatus
func (s ClosingStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no transition leaves this status
func (s ClosingStatus) IsTerminal() bool {
	return s == ClosingStatusCompleted
}

// IsEditable returns true if the owning client may change record fields
func (s ClosingStatus) IsEditable() bool {
	return s == ClosingStatusDraft || s == ClosingStatusReturned
}

// FinalizationKind is the operator-asserted category of a completed closing
type FinalizationKind string

const (
	FinalizationNoDivergence          FinalizationKind = "completed_no_divergence"
	FinalizationNoMovement            FinalizationKind = "completed_no_movement"
	FinalizationJustifiedDivergence   FinalizationKind = "completed_with_justified_divergence"
	FinalizationPartialReconciliation FinalizationKind = "completed_partial_reconciliation"
	FinalizationCashShortfall         FinalizationKind = "cash_shortfall"
)

// AllFinalizationKinds lists the kinds in presentation order
var AllFinalizationKinds = []FinalizationKind{
	FinalizationNoDivergence,
	FinalizationNoMovement,
	FinalizationJustifiedDivergence,
	FinalizationPartialReconciliation,
	FinalizationCashShortfall,
}

// IsValid checks if the kind is one of the known finalization kinds
func (k FinalizationKind) IsValid() bool {
	for _, known := range AllFinalizationKinds {
		if k == known {
			return true
		}
	}
	return false
}

// String returns the string representation of FinalizationKind
func (k FinalizationKind) String() string {
	return string(k)
}

// Attachment is uploaded-file metadata passed through from the upload subsystem
type Attachment struct {
	ID         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	ByteSize   int64     `json:"byte_size"`
	MimeType   string    `json:"mime_type"`
	StorageKey string    `json:"storage_key,omitempty"`
}

// ClosingFields are the client-editable values of a closing record, already
// parsed into typed values.
type ClosingFields struct {
	Date                   time.Time
	Title                  string
	ResponsibleName        string
	OpeningBalance         valueobject.Money
	Sales                  SalesBreakdown
	SupplyAmount           valueobject.Money
	WithdrawalAmount       valueobject.Money
	ReportedClosingBalance valueobject.Money
	Notes                  string
	Attachments            []Attachment

	// Balances the client has not typed yet. They read as zero in
	// calculations but block submission.
	OpeningBalanceBlank  bool
	ReportedBalanceBlank bool
}

// ClosingRecord is one day's cash-register reconciliation for one company
type ClosingRecord struct {
	shared.CompanyAggregateRoot
	Currency               valueobject.Currency
	Date                   time.Time
	Title                  string
	ResponsibleName        string
	OpeningBalance         valueobject.Money
	Sales                  SalesBreakdown
	SupplyAmount           valueobject.Money
	WithdrawalAmount       valueobject.Money
	ReportedClosingBalance valueobject.Money
	OpeningBalanceBlank    bool
	ReportedBalanceBlank   bool
	Notes                  string
	Attachments            []Attachment
	Status                 ClosingStatus
	FinalizationKind       *FinalizationKind
	ReturnReason           string
	SubmittedAt            *time.Time
	SubmittedBy            *uuid.UUID
	ReturnedAt             *time.Time
	ReturnedBy             *uuid.UUID
	CompletedAt            *time.Time
	CompletedBy            *uuid.UUID

	pendingMessages []ThreadMessage
	loadedVersion   int
}

// NewClosingRecord creates a DRAFT closing owned by the given client
func NewClosingRecord(owner Actor, currency valueobject.Currency, fields ClosingFields) (*ClosingRecord, error) {
	if owner.Role != ActorRoleClient {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Only client users can create closing records")
	}
	if owner.CompanyID == uuid.Nil {
		return nil, shared.NewDomainError(CodeMissingRequiredField, "Company must be selected")
	}
	if owner.UserID == uuid.Nil {
		return nil, shared.NewDomainError(CodeMissingRequiredField, "Owner user ID cannot be empty")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	r := &ClosingRecord{
		CompanyAggregateRoot: shared.NewCompanyAggregateRootWithCreator(owner.CompanyID, owner.UserID),
		Currency:             currency,
		Status:               ClosingStatusDraft,
	}
	r.applyFields(fields)

	r.AddDomainEvent(NewClosingDraftCreatedEvent(r))
	return r, nil
}

// UpdateFields replaces the editable values; only the owning client may do so,
// and only while the record is DRAFT or RETURNED.
func (r *ClosingRecord) UpdateFields(actor Actor, fields ClosingFields) error {
	if !actor.Owns(r) {
		return invalidTransition("Only the client who owns the closing can edit it")
	}
	if !r.Status.IsEditable() {
		return invalidTransition("Cannot edit closing in %s status", r.Status)
	}
	r.applyFields(fields)
	r.UpdatedAt = time.Now().UTC()
	r.IncrementVersion()
	return nil
}

func (r *ClosingRecord) applyFields(f ClosingFields) {
	r.Date = truncateToDate(f.Date)
	r.Title = strings.TrimSpace(f.Title)
	r.ResponsibleName = strings.TrimSpace(f.ResponsibleName)
	r.OpeningBalance = valueobject.NewMoney(f.OpeningBalance.Cents(), r.Currency)
	r.Sales = f.Sales.withCurrency(r.Currency)
	r.SupplyAmount = valueobject.NewMoney(f.SupplyAmount.Cents(), r.Currency)
	r.WithdrawalAmount = valueobject.NewMoney(f.WithdrawalAmount.Cents(), r.Currency)
	r.ReportedClosingBalance = valueobject.NewMoney(f.ReportedClosingBalance.Cents(), r.Currency)
	r.OpeningBalanceBlank = f.OpeningBalanceBlank
	r.ReportedBalanceBlank = f.ReportedBalanceBlank
	r.Notes = f.Notes
	r.Attachments = append([]Attachment(nil), f.Attachments...)
}

// Fields returns the record's editable values
func (r *ClosingRecord) Fields() ClosingFields {
	return ClosingFields{
		Date:                   r.Date,
		Title:                  r.Title,
		ResponsibleName:        r.ResponsibleName,
		OpeningBalance:         r.OpeningBalance,
		Sales:                  r.Sales,
		SupplyAmount:           r.SupplyAmount,
		WithdrawalAmount:       r.WithdrawalAmount,
		ReportedClosingBalance: r.ReportedClosingBalance,
		Notes:                  r.Notes,
		Attachments:            append([]Attachment(nil), r.Attachments...),
		OpeningBalanceBlank:    r.OpeningBalanceBlank,
		ReportedBalanceBlank:   r.ReportedBalanceBlank,
	}
}

// SalesTotal is recomputed from the seven payment methods on every read
func (r *ClosingRecord) SalesTotal() valueobject.Money {
	return r.Sales.Total()
}

// ExpectedClosingBalance returns opening + supply + cash sales - withdrawal
func (r *ClosingRecord) ExpectedClosingBalance() valueobject.Money {
	return ExpectedClosingBalance(r.Fields())
}

// Disclosure computes the divergence disclosure under the given policy
func (r *ClosingRecord) Disclosure(policy DivergencePolicy) DivergenceDisclosure {
	return policy.Disclose(r.Fields())
}

// DateString returns the closing date as YYYY-MM-DD, empty when unset
func (r *ClosingRecord) DateString() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format(DateLayout)
}

// FindAttachment returns the attachment with the given ID
func (r *ClosingRecord) FindAttachment(id uuid.UUID) (Attachment, bool) {
	for _, a := range r.Attachments {
		if a.ID == id {
			return a, true
		}
	}
	return Attachment{}, false
}

// PendingThreadMessages returns system messages produced by transitions that
// must be persisted together with the record.
func (r *ClosingRecord) PendingThreadMessages() []ThreadMessage {
	return r.pendingMessages
}

// ClearPendingThreadMessages drops the pending messages after they were stored
func (r *ClosingRecord) ClearPendingThreadMessages() {
	r.pendingMessages = nil
}

// LoadedVersion is the version the record had when it was last read from or
// written to storage. It is zero for records that were never stored.
func (r *ClosingRecord) LoadedVersion() int {
	return r.loadedVersion
}

// MarkPersisted records the current version as the stored one
func (r *ClosingRecord) MarkPersisted() {
	r.loadedVersion = r.Version
}

// CheckVersion fails with STALE_RECORD when the caller's token is out of date.
// A zero expected version skips the check.
func (r *ClosingRecord) CheckVersion(expected int) error {
	if expected != 0 && expected != r.Version {
		return NewStaleRecordError(expected, r.Version)
	}
	return nil
}

func truncateToDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date into midnight UTC
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
