package persistence

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrCompanyIDRequired is returned when a company-scoped query has no company
var ErrCompanyIDRequired = errors.New("company_id is required for scoped queries")

// CompanyScope restricts a query to the rows of one client company. A nil
// company ID fails the query instead of widening it to every company.
func CompanyScope(companyID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if companyID == uuid.Nil {
			_ = db.AddError(ErrCompanyIDRequired)
			return db
		}
		return db.Where("company_id = ?", companyID)
	}
}
