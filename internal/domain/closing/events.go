package closing

import (
	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type constants for closing records
const (
	EventTypeClosingDraftCreated   = "ClosingDraftCreated"
	EventTypeClosingSubmitted      = "ClosingSubmitted"
	EventTypeClosingResubmitted    = "ClosingResubmitted"
	EventTypeClosingReturned       = "ClosingReturned"
	EventTypeClosingCompleted      = "ClosingCompleted"
	EventTypeThreadMessageAppended = "ThreadMessageAppended"
)

// ClosingDraftCreatedEvent is raised when a client starts a closing
type ClosingDraftCreatedEvent struct {
	shared.BaseDomainEvent
	Date      string    `json:"date"`
	CreatedBy uuid.UUID `json:"created_by"`
}

// NewClosingDraftCreatedEvent creates a new ClosingDraftCreatedEvent
func NewClosingDraftCreatedEvent(r *ClosingRecord) *ClosingDraftCreatedEvent {
	var createdBy uuid.UUID
	if r.CreatedBy != nil {
		createdBy = *r.CreatedBy
	}
	return &ClosingDraftCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeClosingDraftCreated, AggregateTypeClosingRecord, r.ID, r.CompanyID),
		Date:            r.DateString(),
		CreatedBy:       createdBy,
	}
}

// ClosingSubmittedEvent is raised on DRAFT -> IN_REVIEW and RETURNED -> IN_REVIEW
type ClosingSubmittedEvent struct {
	shared.BaseDomainEvent
	Date            string    `json:"date"`
	SubmittedBy     uuid.UUID `json:"submitted_by"`
	ExpectedCents   int64     `json:"expected_cents"`
	ReportedCents   int64     `json:"reported_cents"`
	DivergenceCents int64     `json:"divergence_cents"`
	SalesTotalCents int64     `json:"sales_total_cents"`
	WithdrawalCents int64     `json:"withdrawal_cents"`
	AttachmentCount int       `json:"attachment_count"`
	IsResubmission  bool      `json:"is_resubmission"`
}

// NewClosingSubmittedEvent creates a submission event; resubmissions use their own type
func NewClosingSubmittedEvent(r *ClosingRecord, resubmission bool) *ClosingSubmittedEvent {
	eventType := EventTypeClosingSubmitted
	if resubmission {
		eventType = EventTypeClosingResubmitted
	}
	fields := r.Fields()
	expected := ExpectedClosingBalance(fields)
	var submittedBy uuid.UUID
	if r.SubmittedBy != nil {
		submittedBy = *r.SubmittedBy
	}
	return &ClosingSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeClosingRecord, r.ID, r.CompanyID),
		Date:            r.DateString(),
		SubmittedBy:     submittedBy,
		ExpectedCents:   expected.Cents(),
		ReportedCents:   r.ReportedClosingBalance.Cents(),
		DivergenceCents: Divergence(fields).Cents(),
		SalesTotalCents: r.SalesTotal().Cents(),
		WithdrawalCents: r.WithdrawalAmount.Cents(),
		AttachmentCount: len(r.Attachments),
		IsResubmission:  resubmission,
	}
}

// ClosingReturnedEvent is raised when an operator sends a closing back
type ClosingReturnedEvent struct {
	shared.BaseDomainEvent
	Reason     string    `json:"reason"`
	ReturnedBy uuid.UUID `json:"returned_by"`
}

// NewClosingReturnedEvent creates a new ClosingReturnedEvent
func NewClosingReturnedEvent(r *ClosingRecord) *ClosingReturnedEvent {
	var returnedBy uuid.UUID
	if r.ReturnedBy != nil {
		returnedBy = *r.ReturnedBy
	}
	return &ClosingReturnedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeClosingReturned, AggregateTypeClosingRecord, r.ID, r.CompanyID),
		Reason:          r.ReturnReason,
		ReturnedBy:      returnedBy,
	}
}

// ClosingCompletedEvent is raised when an operator finalizes a closing
type ClosingCompletedEvent struct {
	shared.BaseDomainEvent
	FinalizationKind FinalizationKind `json:"finalization_kind"`
	CompletedBy      uuid.UUID        `json:"completed_by"`
	DivergenceCents  int64            `json:"divergence_cents"`
}

// NewClosingCompletedEvent creates a new ClosingCompletedEvent
func NewClosingCompletedEvent(r *ClosingRecord) *ClosingCompletedEvent {
	var completedBy uuid.UUID
	if r.CompletedBy != nil {
		completedBy = *r.CompletedBy
	}
	var kind FinalizationKind
	if r.FinalizationKind != nil {
		kind = *r.FinalizationKind
	}
	return &ClosingCompletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeClosingCompleted, AggregateTypeClosingRecord, r.ID, r.CompanyID),
		FinalizationKind: kind,
		CompletedBy:      completedBy,
		DivergenceCents:  Divergence(r.Fields()).Cents(),
	}
}

// ThreadMessageAppendedEvent is raised for every message added to a thread
type ThreadMessageAppendedEvent struct {
	shared.BaseDomainEvent
	MessageID       uuid.UUID  `json:"message_id"`
	AuthorRole      AuthorRole `json:"author_role"`
	AttachmentCount int        `json:"attachment_count"`
}

// NewThreadMessageAppendedEvent creates a new ThreadMessageAppendedEvent
func NewThreadMessageAppendedEvent(companyID uuid.UUID, m *ThreadMessage) *ThreadMessageAppendedEvent {
	return &ThreadMessageAppendedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeThreadMessageAppended, AggregateTypeClosingRecord, m.ClosingRecordID, companyID),
		MessageID:       m.ID,
		AuthorRole:      m.AuthorRole,
		AttachmentCount: len(m.Attachments),
	}
}
