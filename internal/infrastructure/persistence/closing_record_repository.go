package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bpo/cashclosing/internal/domain/closing"
	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/bpo/cashclosing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormClosingRecordRepository implements ClosingRecordRepository using GORM
type GormClosingRecordRepository struct {
	db *gorm.DB
}

// NewGormClosingRecordRepository creates a new GormClosingRecordRepository
func NewGormClosingRecordRepository(db *gorm.DB) *GormClosingRecordRepository {
	return &GormClosingRecordRepository{db: db}
}

// FindByIDForCompany finds a closing record by ID within a company
func (r *GormClosingRecordRepository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*closing.ClosingRecord, error) {
	var model models.ClosingRecordModel
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Scopes(CompanyScope(companyID)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	record, err := model.ToDomain()
	if err != nil {
		return nil, err
	}
	record.MarkPersisted()
	return record, nil
}

// FindAllForCompany finds closing records of a company with filtering
func (r *GormClosingRecordRepository) FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter closing.ClosingRecordFilter) ([]closing.ClosingRecord, error) {
	var recordModels []models.ClosingRecordModel
	query := r.db.WithContext(ctx).Model(&models.ClosingRecordModel{}).
		Scopes(CompanyScope(companyID))
	query = r.applyFilter(query, filter)

	if err := query.Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toClosingRecords(recordModels)
}

// CountForCompany counts closing records matching the filter
func (r *GormClosingRecordRepository) CountForCompany(ctx context.Context, companyID uuid.UUID, filter closing.ClosingRecordFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.ClosingRecordModel{}).
		Scopes(CompanyScope(companyID))
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindByDateRange returns every closing of the company dated within [from, to]
func (r *GormClosingRecordRepository) FindByDateRange(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]closing.ClosingRecord, error) {
	var recordModels []models.ClosingRecordModel
	if err := r.db.WithContext(ctx).
		Where("closing_date >= ? AND closing_date <= ?", from, to).
		Scopes(CompanyScope(companyID)).
		Order("closing_date ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toClosingRecords(recordModels)
}

// SaveWithLock saves the closing record with optimistic locking. The stored
// version must still be the one the record was loaded at.
func (r *GormClosingRecordRepository) SaveWithLock(ctx context.Context, record *closing.ClosingRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.ClosingRecordModel
		if err := tx.Select("version").Where("id = ?", record.GetID()).First(&current).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if record.LoadedVersion() != 0 {
				return shared.ErrNotFound
			}
			if err := tx.Create(models.ClosingRecordModelFromDomain(record)).Error; err != nil {
				return err
			}
			return appendPendingMessages(tx, record)
		}

		expectedVersion := record.LoadedVersion()
		if current.Version != expectedVersion {
			return closing.NewStaleRecordError(expectedVersion, current.Version)
		}

		model := models.ClosingRecordModelFromDomain(record)
		result := tx.Model(&models.ClosingRecordModel{}).
			Where("id = ? AND version = ?", record.GetID(), expectedVersion).
			Select("*").
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return closing.NewStaleRecordError(expectedVersion, current.Version+1)
		}
		return appendPendingMessages(tx, record)
	})
	if err != nil {
		return err
	}
	record.ClearPendingThreadMessages()
	record.MarkPersisted()
	return nil
}

func appendPendingMessages(tx *gorm.DB, record *closing.ClosingRecord) error {
	for _, msg := range record.PendingThreadMessages() {
		if err := tx.Create(models.ThreadMessageModelFromDomain(&msg)).Error; err != nil {
			return fmt.Errorf("failed to append thread message: %w", err)
		}
	}
	return nil
}

// applyFilter applies filter conditions, sorting and pagination to query
func (r *GormClosingRecordRepository) applyFilter(query *gorm.DB, filter closing.ClosingRecordFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	// Apply sorting with whitelist validation to prevent SQL injection
	sortField := ValidateSortField(filter.OrderBy, ClosingRecordSortFields, "closing_date")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		offset := (filter.Page - 1) * filter.PageSize
		if offset > 0 {
			query = query.Offset(offset)
		}
	}

	return query
}

// applyFilterWithoutPagination applies filter conditions without pagination
func (r *GormClosingRecordRepository) applyFilterWithoutPagination(query *gorm.DB, filter closing.ClosingRecordFilter) *gorm.DB {
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(responsible_name) LIKE ?)", pattern, pattern)
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status IN ?", statuses)
	}

	if filter.FromDate != nil {
		query = query.Where("closing_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("closing_date <= ?", *filter.ToDate)
	}

	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}

	return query
}

func toClosingRecords(recordModels []models.ClosingRecordModel) ([]closing.ClosingRecord, error) {
	records := make([]closing.ClosingRecord, len(recordModels))
	for i := range recordModels {
		rec, err := recordModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		rec.MarkPersisted()
		records[i] = *rec
	}
	return records, nil
}

// GormThreadMessageRepository implements ThreadMessageRepository using GORM
type GormThreadMessageRepository struct {
	db *gorm.DB
}

// NewGormThreadMessageRepository creates a new GormThreadMessageRepository
func NewGormThreadMessageRepository(db *gorm.DB) *GormThreadMessageRepository {
	return &GormThreadMessageRepository{db: db}
}

// Append stores a new message
func (r *GormThreadMessageRepository) Append(ctx context.Context, message *closing.ThreadMessage) error {
	return r.db.WithContext(ctx).Create(models.ThreadMessageModelFromDomain(message)).Error
}

// FindByClosingRecord returns the thread ordered by server timestamp
func (r *GormThreadMessageRepository) FindByClosingRecord(ctx context.Context, closingRecordID uuid.UUID) ([]closing.ThreadMessage, error) {
	var messageModels []models.ThreadMessageModel
	if err := r.db.WithContext(ctx).
		Where("closing_record_id = ?", closingRecordID).
		Order("created_at ASC").
		Find(&messageModels).Error; err != nil {
		return nil, err
	}
	messages := make([]closing.ThreadMessage, len(messageModels))
	for i := range messageModels {
		msg, err := messageModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		messages[i] = *msg
	}
	return messages, nil
}

var (
	_ closing.ClosingRecordRepository = (*GormClosingRecordRepository)(nil)
	_ closing.ThreadMessageRepository = (*GormThreadMessageRepository)(nil)
)
