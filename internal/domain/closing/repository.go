package closing

import (
	"context"
	"time"

	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/google/uuid"
)

// ClosingRecordFilter defines filtering options for closing record queries
type ClosingRecordFilter struct {
	shared.Filter
	Statuses  []ClosingStatus
	FromDate  *time.Time
	ToDate    *time.Time
	CreatedBy *uuid.UUID
}

// ClosingRecordRepository defines the interface for closing record persistence
type ClosingRecordRepository interface {
	// FindByIDForCompany finds a closing record by ID within a company
	FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*ClosingRecord, error)

	// FindAllForCompany finds closing records of a company with filtering
	FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter ClosingRecordFilter) ([]ClosingRecord, error)

	// CountForCompany counts closing records matching the filter
	CountForCompany(ctx context.Context, companyID uuid.UUID, filter ClosingRecordFilter) (int64, error)

	// FindByDateRange returns every closing of the company dated within [from, to]
	FindByDateRange(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]ClosingRecord, error)

	// SaveWithLock creates or updates with optimistic locking. It fails with STALE_RECORD when
	// the stored version is not the one the record was loaded at, and stores the
	// record's pending thread messages in the same transaction.
	SaveWithLock(ctx context.Context, record *ClosingRecord) error
}

// ThreadMessageRepository defines the interface for the append-only thread log
type ThreadMessageRepository interface {
	// Append stores a new message; messages are never updated or deleted
	Append(ctx context.Context, message *ThreadMessage) error

	// FindByClosingRecord returns the thread in chronological order
	FindByClosingRecord(ctx context.Context, closingRecordID uuid.UUID) ([]ThreadMessage, error)
}
