package closing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bpo/cashclosing/internal/domain/closing"
	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/bpo/cashclosing/internal/domain/shared/valueobject"
	"github.com/bpo/cashclosing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ServiceConfig holds the reconciliation rules and attachment limits
type ServiceConfig struct {
	Currency valueobject.Currency
	// Locale is used for human-readable amounts, e.g. pt-BR
	Locale   string
	Policy   closing.DivergencePolicy
	Calendar closing.BusinessCalendar
	// Location decides which date is "today" for the calendar
	Location          *time.Location
	UploadURLExpiry   time.Duration
	DownloadURLExpiry time.Duration
	MaxAttachmentSize int64
	AllowedMimeTypes  []string
	// VerifyUploads checks that referenced storage keys exist before saving
	VerifyUploads bool
}

// DefaultServiceConfig returns the default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Currency:          valueobject.DefaultCurrency,
		Locale:            "pt-BR",
		Policy:            closing.DefaultDivergencePolicy(),
		Calendar:          closing.DefaultBusinessCalendar(),
		Location:          time.UTC,
		UploadURLExpiry:   15 * time.Minute,
		DownloadURLExpiry: time.Hour,
		MaxAttachmentSize: 20 << 20,
		AllowedMimeTypes:  DefaultAllowedMimeTypes,
	}
}

// ClosingService handles the cash-closing use cases
type ClosingService struct {
	records        closing.ClosingRecordRepository
	threads        closing.ThreadMessageRepository
	storage        AttachmentStorage
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	config         ServiceConfig

	allowedMimeTypes map[string]bool
	now              func() time.Time
}

// NewClosingService creates a new ClosingService. storage may be nil when
// attachment uploads are disabled.
func NewClosingService(
	records closing.ClosingRecordRepository,
	threads closing.ThreadMessageRepository,
	storage AttachmentStorage,
	logger *zap.Logger,
) *ClosingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ClosingService{
		records: records,
		threads: threads,
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
	s.SetConfig(DefaultServiceConfig())
	return s
}

// SetConfig sets the service configuration
func (s *ClosingService) SetConfig(cfg ServiceConfig) {
	if cfg.Currency == "" {
		cfg.Currency = valueobject.DefaultCurrency
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if len(cfg.AllowedMimeTypes) == 0 {
		cfg.AllowedMimeTypes = DefaultAllowedMimeTypes
	}
	s.allowedMimeTypes = make(map[string]bool, len(cfg.AllowedMimeTypes))
	for _, m := range cfg.AllowedMimeTypes {
		s.allowedMimeTypes[strings.ToLower(strings.TrimSpace(m))] = true
	}
	s.config = cfg
}

// SetEventPublisher sets the event publisher
func (s *ClosingService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock replaces the time source used for "today"
func (s *ClosingService) SetClock(now func() time.Time) {
	s.now = now
}

// Policy returns the divergence policy in effect
func (s *ClosingService) Policy() closing.DivergencePolicy {
	return s.config.Policy
}

// CreateDraft starts a new DRAFT closing for the client
func (s *ClosingService) CreateDraft(ctx context.Context, actor closing.Actor, req DraftRequest) (resp *ClosingResponse, err error) {
	ctx, span := s.startSpan(ctx, "create_draft", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	attachments, err := s.resolveAttachments(ctx, actor, req.Attachments)
	if err != nil {
		return nil, err
	}
	fields, err := closing.ParseDraft(req.toInput(attachments), s.config.Currency)
	if err != nil {
		return nil, err
	}

	record, err := closing.NewClosingRecord(actor, s.config.Currency, fields)
	if err != nil {
		return nil, err
	}
	if err := s.records.SaveWithLock(ctx, record); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, record)

	telemetry.SetAttributes(span, telemetry.SpanAttrClosingID, record.ID)
	out := ToClosingResponse(record, s.config.Policy)
	return &out, nil
}

// UpdateDraft replaces the values of a DRAFT or RETURNED closing owned by the client
func (s *ClosingService) UpdateDraft(ctx context.Context, actor closing.Actor, id uuid.UUID, req UpdateDraftRequest) (resp *ClosingResponse, err error) {
	ctx, span := s.startSpan(ctx, "update_draft", actor, telemetry.SpanAttrClosingID, id)
	defer func() { finishSpan(span, err) }()

	record, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := record.CheckVersion(req.Version); err != nil {
		return nil, err
	}
	attachments, err := s.resolveAttachments(ctx, actor, req.Attachments)
	if err != nil {
		return nil, err
	}
	fields, err := closing.ParseDraft(req.toInput(attachments), record.Currency)
	if err != nil {
		return nil, err
	}
	if err := record.UpdateFields(actor, fields); err != nil {
		return nil, err
	}
	if err := s.records.SaveWithLock(ctx, record); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, record)

	out := ToClosingResponse(record, s.config.Policy)
	return &out, nil
}

// SubmitClosing validates and submits a closing. A RETURNED closing is
// resubmitted. On validation failure nothing is stored and the returned error
// is a *closing.ValidationError listing every failed check in order.
func (s *ClosingService) SubmitClosing(ctx context.Context, actor closing.Actor, req SubmitClosingRequest) (result *SubmissionResult, err error) {
	ctx, span := s.startSpan(ctx, "submit", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if req.ClosingID == nil && req.Draft == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "A closing draft is required")
	}

	var fields closing.ClosingFields
	if req.Draft != nil {
		attachments, err := s.resolveAttachments(ctx, actor, req.Draft.Attachments)
		if err != nil {
			return nil, err
		}
		if fields, err = closing.Validate(req.Draft.toInput(attachments), s.config.Currency); err != nil {
			return nil, err
		}
	}

	var record *closing.ClosingRecord
	if req.ClosingID == nil {
		if record, err = closing.NewClosingRecord(actor, s.config.Currency, fields); err != nil {
			return nil, err
		}
	} else {
		if record, err = s.loadVisible(ctx, actor, *req.ClosingID); err != nil {
			return nil, err
		}
		if err := record.CheckVersion(req.Version); err != nil {
			return nil, err
		}
		if req.Draft != nil {
			if err := record.UpdateFields(actor, fields); err != nil {
				return nil, err
			}
		}
	}

	action := closing.ActionSubmit
	if record.Status == closing.ClosingStatusReturned {
		action = closing.ActionResubmit
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrClosingID, record.ID, telemetry.SpanAttrAction, action)

	if err := record.Transition(actor, action, closing.TransitionPayload{}); err != nil {
		return nil, err
	}
	if err := s.records.SaveWithLock(ctx, record); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, record)

	disclosure := record.Disclosure(s.config.Policy)
	result = &SubmissionResult{
		Closing:    ToClosingResponse(record, s.config.Policy),
		Disclosure: disclosure,
	}
	if disclosure.Triggered {
		result.Message = s.divergenceMessage(disclosure)
	}
	return result, nil
}

// Transition applies a workflow action. A non-zero req.Version must match the
// stored version or the call fails with STALE_RECORD.
func (s *ClosingService) Transition(ctx context.Context, actor closing.Actor, id uuid.UUID, req TransitionRequest) (resp *ClosingResponse, err error) {
	ctx, span := s.startSpan(ctx, "transition", actor,
		telemetry.SpanAttrClosingID, id,
		telemetry.SpanAttrAction, req.Action,
	)
	defer func() { finishSpan(span, err) }()

	record, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := record.CheckVersion(req.Version); err != nil {
		return nil, err
	}

	payload := closing.TransitionPayload{
		Reason:           req.Reason,
		FinalizationKind: closing.FinalizationKind(strings.TrimSpace(req.FinalizationKind)),
	}
	if err := record.Transition(actor, closing.Action(req.Action), payload); err != nil {
		return nil, err
	}
	if err := s.records.SaveWithLock(ctx, record); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, record)

	telemetry.SetAttributes(span, telemetry.SpanAttrStatus, record.Status)
	out := ToClosingResponse(record, s.config.Policy)
	return &out, nil
}

// AppendThreadMessage adds a message to the closing thread. Appends never
// conflict with concurrent transitions.
func (s *ClosingService) AppendThreadMessage(ctx context.Context, actor closing.Actor, id uuid.UUID, req AppendMessageRequest) (resp *ThreadMessageResponse, err error) {
	ctx, span := s.startSpan(ctx, "append_message", actor, telemetry.SpanAttrClosingID, id)
	defer func() { finishSpan(span, err) }()

	record, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	attachments, err := s.resolveAttachments(ctx, actor, req.Attachments)
	if err != nil {
		return nil, err
	}
	message, err := closing.NewThreadMessage(record, actor, req.AuthorName, req.Text, attachments)
	if err != nil {
		return nil, err
	}
	if err := s.threads.Append(ctx, message); err != nil {
		return nil, err
	}
	s.publish(ctx, closing.NewThreadMessageAppendedEvent(record.CompanyID, message))

	out := ToThreadMessageResponse(message)
	return &out, nil
}

// ListThread returns the closing thread ordered by server timestamp, ties by id
func (s *ClosingService) ListThread(ctx context.Context, actor closing.Actor, id uuid.UUID) ([]ThreadMessageResponse, error) {
	record, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.threads.FindByClosingRecord(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].ID.String() < messages[j].ID.String()
	})

	out := make([]ThreadMessageResponse, len(messages))
	for i := range messages {
		out[i] = ToThreadMessageResponse(&messages[i])
	}
	return out, nil
}

// GetClosing returns one closing with its live totals
func (s *ClosingService) GetClosing(ctx context.Context, actor closing.Actor, id uuid.UUID) (*ClosingResponse, error) {
	record, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	out := ToClosingResponse(record, s.config.Policy)
	return &out, nil
}

// ListClosings lists the closings of the actor's company
func (s *ClosingService) ListClosings(ctx context.Context, actor closing.Actor, filter ClosingListFilter) ([]ClosingListItem, int64, error) {
	if err := requireActor(actor); err != nil {
		return nil, 0, err
	}
	domainFilter, err := s.toDomainFilter(actor, filter)
	if err != nil {
		return nil, 0, err
	}

	records, err := s.records.FindAllForCompany(ctx, actor.CompanyID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.records.CountForCompany(ctx, actor.CompanyID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	items := make([]ClosingListItem, len(records))
	for i := range records {
		items[i] = ToClosingListItem(&records[i], s.config.Policy)
	}
	return items, total, nil
}

func (s *ClosingService) toDomainFilter(actor closing.Actor, filter ClosingListFilter) (closing.ClosingRecordFilter, error) {
	out := closing.ClosingRecordFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
			Search:   filter.Search,
		},
	}
	if out.Page <= 0 {
		out.Page = 1
	}
	if out.PageSize <= 0 {
		out.PageSize = 20
	}

	for _, raw := range filter.Statuses {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			status := closing.ClosingStatus(part)
			if !status.IsValid() {
				return out, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown status %q", part))
			}
			out.Statuses = append(out.Statuses, status)
		}
	}

	if filter.FromDate != "" {
		from, err := closing.ParseDate(filter.FromDate)
		if err != nil {
			return out, shared.NewDomainError(shared.CodeInvalidInput, "from_date must be YYYY-MM-DD")
		}
		out.FromDate = &from
	}
	if filter.ToDate != "" {
		to, err := closing.ParseDate(filter.ToDate)
		if err != nil {
			return out, shared.NewDomainError(shared.CodeInvalidInput, "to_date must be YYYY-MM-DD")
		}
		out.ToDate = &to
	}
	if filter.Mine {
		userID := actor.UserID
		out.CreatedBy = &userID
	}
	return out, nil
}

// ProjectCalendar returns the per-day worst-case severity for [from, to]
func (s *ClosingService) ProjectCalendar(ctx context.Context, actor closing.Actor, from, to string) (resp *CalendarResponse, err error) {
	ctx, span := s.startSpan(ctx, "project_calendar", actor)
	defer func() { finishSpan(span, err) }()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	fromDate, err := closing.ParseDate(from)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "from must be YYYY-MM-DD")
	}
	toDate, err := closing.ParseDate(to)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "to must be YYYY-MM-DD")
	}
	rng, err := closing.NewDateRange(fromDate, toDate)
	if err != nil {
		return nil, err
	}

	records, err := s.records.FindByDateRange(ctx, actor.CompanyID, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	calendar := closing.ProjectCalendar(records, rng, s.today(), s.config.Calendar)

	days := make([]closing.CalendarDay, 0, len(calendar))
	for _, day := range calendar {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })

	return &CalendarResponse{
		From: rng.From.Format(closing.DateLayout),
		To:   rng.To.Format(closing.DateLayout),
		Days: days,
	}, nil
}

// Preview runs the validation and calculation engine without storing anything.
// Issues are reported but never fail the call.
func (s *ClosingService) Preview(ctx context.Context, req DraftRequest) (*PreviewResponse, error) {
	attachments := make([]closing.Attachment, len(req.Attachments))
	for i, a := range req.Attachments {
		attachments[i] = closing.Attachment{Filename: a.Filename, ByteSize: a.ByteSize, MimeType: a.MimeType}
	}

	fields, err := closing.Validate(req.toInput(attachments), s.config.Currency)
	issues := make([]closing.FieldError, 0)
	if err != nil {
		var verr *closing.ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		issues = verr.Fields
	}

	totals := s.config.Policy.ComputeTotals(fields)
	return &PreviewResponse{
		Totals: totals,
		Display: map[string]string{
			"sales_total":              totals.SalesTotal.Display(s.config.Locale),
			"expected_closing_balance": totals.ExpectedClosingBalance.Display(s.config.Locale),
			"reported_closing_balance": totals.Disclosure.Reported.Display(s.config.Locale),
			"difference":               totals.Disclosure.Difference.Display(s.config.Locale),
		},
		Issues: issues,
		Valid:  len(issues) == 0,
	}, nil
}

func (s *ClosingService) divergenceMessage(d closing.DivergenceDisclosure) string {
	return fmt.Sprintf("Reported balance %s differs from the expected %s by %s",
		d.Reported.Display(s.config.Locale),
		d.Expected.Display(s.config.Locale),
		d.Difference.Display(s.config.Locale))
}

func (s *ClosingService) today() time.Time {
	now := s.now().In(s.config.Location)
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// loadVisible loads a closing of the actor's company; other companies' records
// are reported as not found
func (s *ClosingService) loadVisible(ctx context.Context, actor closing.Actor, id uuid.UUID) (*closing.ClosingRecord, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	record, err := s.records.FindByIDForCompany(ctx, actor.CompanyID, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Closing record not found")
		}
		return nil, err
	}
	if !actor.CanView(record) {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Closing record not found")
	}
	return record, nil
}

func requireActor(actor closing.Actor) error {
	if actor.UserID == uuid.Nil {
		return shared.NewDomainError(shared.CodeUnauthorized, "User is not authenticated")
	}
	if actor.CompanyID == uuid.Nil {
		return shared.NewDomainError(shared.CodeForbidden, "Company must be selected")
	}
	if !actor.Role.IsValid() {
		return shared.NewDomainError(shared.CodeForbidden, "Unknown user role")
	}
	return nil
}

// publishEvents publishes and clears the record's pending domain events.
// Publishing failures are logged; the state change is already stored.
func (s *ClosingService) publishEvents(ctx context.Context, record *closing.ClosingRecord) {
	events := record.GetDomainEvents()
	record.ClearDomainEvents()
	s.publish(ctx, events...)
}

func (s *ClosingService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	for _, event := range events {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.String("aggregate_id", event.AggregateID().String()),
				zap.Error(err))
		}
	}
}

func (s *ClosingService) startSpan(ctx context.Context, method string, actor closing.Actor, keyValues ...any) (context.Context, trace.Span) {
	keyValues = append(keyValues,
		telemetry.SpanAttrCompanyID, actor.CompanyID,
		telemetry.SpanAttrActorRole, actor.Role,
	)
	return telemetry.StartServiceSpan(ctx, "closing", method, keyValues...)
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetOK(span)
	}
	span.End()
}
