package closing

import (
	"context"
	"sync"
	"time"

	"github.com/bpo/cashclosing/internal/domain/closing"
	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockClosingRecordRepository is a mock implementation of ClosingRecordRepository
type MockClosingRecordRepository struct {
	mock.Mock
}

func (m *MockClosingRecordRepository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*closing.ClosingRecord, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*closing.ClosingRecord), args.Error(1)
}

func (m *MockClosingRecordRepository) FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter closing.ClosingRecordFilter) ([]closing.ClosingRecord, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).([]closing.ClosingRecord), args.Error(1)
}

func (m *MockClosingRecordRepository) CountForCompany(ctx context.Context, companyID uuid.UUID, filter closing.ClosingRecordFilter) (int64, error) {
	args := m.Called(ctx, companyID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockClosingRecordRepository) FindByDateRange(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]closing.ClosingRecord, error) {
	args := m.Called(ctx, companyID, from, to)
	return args.Get(0).([]closing.ClosingRecord), args.Error(1)
}

func (m *MockClosingRecordRepository) SaveWithLock(ctx context.Context, record *closing.ClosingRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockThreadMessageRepository is a mock implementation of ThreadMessageRepository
type MockThreadMessageRepository struct {
	mock.Mock
}

func (m *MockThreadMessageRepository) Append(ctx context.Context, message *closing.ThreadMessage) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockThreadMessageRepository) FindByClosingRecord(ctx context.Context, closingRecordID uuid.UUID) ([]closing.ThreadMessage, error) {
	args := m.Called(ctx, closingRecordID)
	return args.Get(0).([]closing.ThreadMessage), args.Error(1)
}

// MockAttachmentStorage is a mock implementation of AttachmentStorage
type MockAttachmentStorage struct {
	mock.Mock
}

func (m *MockAttachmentStorage) GenerateUploadURL(ctx context.Context, storageKey, contentType string, size int64, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, storageKey, contentType, size, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockAttachmentStorage) GenerateDownloadURL(ctx context.Context, storageKey, filename string, expiresIn time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, storageKey, filename, expiresIn)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockAttachmentStorage) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	args := m.Called(ctx, storageKey)
	return args.Bool(0), args.Error(1)
}

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// MockClosingMetricsRecorder is a mock implementation of ClosingMetricsRecorder
type MockClosingMetricsRecorder struct {
	mock.Mock
}

func (m *MockClosingMetricsRecorder) RecordDraftCreated(ctx context.Context, companyID uuid.UUID) {
	m.Called(ctx, companyID)
}

func (m *MockClosingMetricsRecorder) RecordSubmitted(ctx context.Context, companyID uuid.UUID, resubmission bool, level string, divergenceCents int64) {
	m.Called(ctx, companyID, resubmission, level, divergenceCents)
}

func (m *MockClosingMetricsRecorder) RecordReturned(ctx context.Context, companyID uuid.UUID) {
	m.Called(ctx, companyID)
}

func (m *MockClosingMetricsRecorder) RecordCompleted(ctx context.Context, companyID uuid.UUID, kind string) {
	m.Called(ctx, companyID, kind)
}

func (m *MockClosingMetricsRecorder) RecordThreadMessage(ctx context.Context, companyID uuid.UUID, authorRole string) {
	m.Called(ctx, companyID, authorRole)
}

var (
	_ closing.ClosingRecordRepository = (*MockClosingRecordRepository)(nil)
	_ closing.ThreadMessageRepository = (*MockThreadMessageRepository)(nil)
	_ AttachmentStorage               = (*MockAttachmentStorage)(nil)
	_ shared.EventPublisher           = (*recordingPublisher)(nil)
	_ ClosingMetricsRecorder          = (*MockClosingMetricsRecorder)(nil)
)
