package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("NewClosingMetrics: meter cannot be nil")

// ClosingMetrics tracks the closing workflow: throughput per transition,
// divergence sizes and the review backlog.
type ClosingMetrics struct {
	logger *zap.Logger

	draftsCreated    *Counter
	submitted        *Counter
	returned         *Counter
	completed        *Counter
	threadMessages   *Counter
	divergenceCents  *Histogram
	backlog          *Gauge
	backlogProvider  BacklogProvider
	collectInterval  time.Duration
	stopChan         chan struct{}
	stopOnce         sync.Once
	collectStartOnce sync.Once
}

// BacklogCount is the number of closings of one company in one status
type BacklogCount struct {
	CompanyID uuid.UUID
	Status    string
	Count     int64
}

// BacklogProvider reports the closings that still need work
type BacklogProvider interface {
	OpenClosingCounts(ctx context.Context) ([]BacklogCount, error)
}

// ClosingMetricsConfig holds configuration for closing metrics.
type ClosingMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	BacklogProvider BacklogProvider
	CollectInterval time.Duration // default 1 minute
}

// NewClosingMetrics creates the closing instruments.
func NewClosingMetrics(cfg ClosingMetricsConfig) (*ClosingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.CollectInterval
	if interval <= 0 {
		interval = time.Minute
	}

	m := &ClosingMetrics{
		logger:          logger,
		backlogProvider: cfg.BacklogProvider,
		collectInterval: interval,
		stopChan:        make(chan struct{}),
	}

	var err error
	if m.draftsCreated, err = NewCounter(cfg.Meter, "closing_drafts_created_total", "Closing drafts started by clients", "{closing}"); err != nil {
		return nil, err
	}
	if m.submitted, err = NewCounter(cfg.Meter, "closing_submitted_total", "Closings sent to review, including resubmissions", "{closing}"); err != nil {
		return nil, err
	}
	if m.returned, err = NewCounter(cfg.Meter, "closing_returned_total", "Closings returned for correction", "{closing}"); err != nil {
		return nil, err
	}
	if m.completed, err = NewCounter(cfg.Meter, "closing_completed_total", "Closings finalized by operators", "{closing}"); err != nil {
		return nil, err
	}
	if m.threadMessages, err = NewCounter(cfg.Meter, "closing_thread_messages_total", "Messages appended to closing threads", "{message}"); err != nil {
		return nil, err
	}
	if m.divergenceCents, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "closing_divergence_cents",
		Description: "Absolute divergence between reported and expected balance at submission",
		Unit:        "{cent}",
		Boundaries:  DivergenceBuckets,
	}); err != nil {
		return nil, err
	}
	if m.backlog, err = NewGauge(cfg.Meter, "closing_backlog", "Closings awaiting client or operator action", "{closing}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordDraftCreated counts a new draft
func (m *ClosingMetrics) RecordDraftCreated(ctx context.Context, companyID uuid.UUID) {
	m.draftsCreated.Inc(ctx, AttrCompanyID.String(companyID.String()))
}

// RecordSubmitted counts a submission and records its divergence
func (m *ClosingMetrics) RecordSubmitted(ctx context.Context, companyID uuid.UUID, resubmission bool, level string, divergenceCents int64) {
	company := AttrCompanyID.String(companyID.String())
	m.submitted.Inc(ctx, company, AttrResubmission.Bool(resubmission), AttrDivergenceLevel.String(level))
	if divergenceCents < 0 {
		divergenceCents = -divergenceCents
	}
	m.divergenceCents.Record(ctx, float64(divergenceCents), company, AttrDivergenceLevel.String(level))
}

// RecordReturned counts a return for correction
func (m *ClosingMetrics) RecordReturned(ctx context.Context, companyID uuid.UUID) {
	m.returned.Inc(ctx, AttrCompanyID.String(companyID.String()))
}

// RecordCompleted counts a finalization by kind
func (m *ClosingMetrics) RecordCompleted(ctx context.Context, companyID uuid.UUID, kind string) {
	m.completed.Inc(ctx, AttrCompanyID.String(companyID.String()), AttrFinalizationKind.String(kind))
}

// RecordThreadMessage counts a thread message by author role
func (m *ClosingMetrics) RecordThreadMessage(ctx context.Context, companyID uuid.UUID, authorRole string) {
	m.threadMessages.Inc(ctx, AttrCompanyID.String(companyID.String()), AttrAuthorRole.String(authorRole))
}

// RecordBacklog records the current number of closings in a status
func (m *ClosingMetrics) RecordBacklog(ctx context.Context, companyID uuid.UUID, status string, count int64) {
	m.backlog.Record(ctx, count, AttrCompanyID.String(companyID.String()), AttrStatus.String(status))
}

// StartPeriodicCollection samples the backlog every interval until Stop.
// It is a no-op without a BacklogProvider and runs at most once.
func (m *ClosingMetrics) StartPeriodicCollection(ctx context.Context) {
	if m.backlogProvider == nil {
		return
	}
	m.collectStartOnce.Do(func() {
		go m.runPeriodicCollection(ctx)
	})
}

func (m *ClosingMetrics) runPeriodicCollection(ctx context.Context) {
	ticker := time.NewTicker(m.collectInterval)
	defer ticker.Stop()

	m.collectBacklog(ctx)
	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectBacklog(ctx)
		}
	}
}

func (m *ClosingMetrics) collectBacklog(ctx context.Context) {
	counts, err := m.backlogProvider.OpenClosingCounts(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect closing backlog", zap.Error(err))
		return
	}
	for _, c := range counts {
		m.RecordBacklog(ctx, c.CompanyID, c.Status, c.Count)
	}
}

// Stop stops the periodic collection.
func (m *ClosingMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}
