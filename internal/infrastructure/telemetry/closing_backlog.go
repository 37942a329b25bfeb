package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormBacklogProvider counts open closings straight from the closing_records table
type GormBacklogProvider struct {
	db *gorm.DB
}

// NewGormBacklogProvider creates a new GormBacklogProvider
func NewGormBacklogProvider(db *gorm.DB) *GormBacklogProvider {
	return &GormBacklogProvider{db: db}
}

// OpenClosingCounts returns per-company counts of every non-terminal status
func (p *GormBacklogProvider) OpenClosingCounts(ctx context.Context) ([]BacklogCount, error) {
	var rows []BacklogCount
	err := p.db.WithContext(ctx).
		Table("closing_records").
		Select("company_id, status, COUNT(*) AS count").
		Where("status IN ?", []string{"DRAFT", "IN_REVIEW", "RETURNED"}).
		Group("company_id, status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

var _ BacklogProvider = (*GormBacklogProvider)(nil)
