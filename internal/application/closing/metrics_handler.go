package closing

import (
	"context"
	"fmt"

	"github.com/bpo/cashclosing/internal/domain/closing"
	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/bpo/cashclosing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClosingMetricsRecorder records workflow metrics. Implemented by
// telemetry.ClosingMetrics.
type ClosingMetricsRecorder interface {
	RecordDraftCreated(ctx context.Context, companyID uuid.UUID)
	RecordSubmitted(ctx context.Context, companyID uuid.UUID, resubmission bool, level string, divergenceCents int64)
	RecordReturned(ctx context.Context, companyID uuid.UUID)
	RecordCompleted(ctx context.Context, companyID uuid.UUID, kind string)
	RecordThreadMessage(ctx context.Context, companyID uuid.UUID, authorRole string)
}

// ClosingMetricsHandler turns closing workflow events into metrics and logs
// significant divergences for the review team
type ClosingMetricsHandler struct {
	metrics ClosingMetricsRecorder
	policy  closing.DivergencePolicy
	logger  *zap.Logger
}

// NewClosingMetricsHandler creates a new ClosingMetricsHandler
func NewClosingMetricsHandler(metrics ClosingMetricsRecorder, policy closing.DivergencePolicy, logger *zap.Logger) *ClosingMetricsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClosingMetricsHandler{
		metrics: metrics,
		policy:  policy,
		logger:  logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *ClosingMetricsHandler) EventTypes() []string {
	return []string{
		closing.EventTypeClosingDraftCreated,
		closing.EventTypeClosingSubmitted,
		closing.EventTypeClosingResubmitted,
		closing.EventTypeClosingReturned,
		closing.EventTypeClosingCompleted,
		closing.EventTypeThreadMessageAppended,
	}
}

// Handle records the metric for one event
func (h *ClosingMetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	companyID := event.CompanyID()

	switch e := event.(type) {
	case *closing.ClosingDraftCreatedEvent:
		h.metrics.RecordDraftCreated(ctx, companyID)

	case *closing.ClosingSubmittedEvent:
		divergence := valueobject.NewMoney(e.DivergenceCents, valueobject.DefaultCurrency)
		level := h.policy.Classify(divergence)
		h.metrics.RecordSubmitted(ctx, companyID, e.IsResubmission, string(level), e.DivergenceCents)
		if level == closing.DivergenceLevelSignificant {
			h.logger.Warn("closing submitted with significant divergence",
				zap.String("company_id", companyID.String()),
				zap.String("closing_id", e.AggregateID().String()),
				zap.String("date", e.Date),
				zap.Int64("expected_cents", e.ExpectedCents),
				zap.Int64("reported_cents", e.ReportedCents),
				zap.Int64("divergence_cents", e.DivergenceCents),
				zap.Bool("resubmission", e.IsResubmission),
			)
		}

	case *closing.ClosingReturnedEvent:
		h.metrics.RecordReturned(ctx, companyID)

	case *closing.ClosingCompletedEvent:
		h.metrics.RecordCompleted(ctx, companyID, string(e.FinalizationKind))

	case *closing.ThreadMessageAppendedEvent:
		h.metrics.RecordThreadMessage(ctx, companyID, string(e.AuthorRole))

	default:
		h.logger.Error("unexpected event type", zap.String("actual", event.EventType()))
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	return nil
}

var _ shared.EventHandler = (*ClosingMetricsHandler)(nil)
