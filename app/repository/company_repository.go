package repository

import (
	"errors"

	"github.com/auroracademy/backend/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCompanyFull is returned when every seat of a company is taken.
var ErrCompanyFull = errors.New("company has no free seats")

// companyRepository implements the CompanyRepository interface
type companyRepository struct {
	db *gorm.DB
}

// NewCompanyRepository creates a new company repository instance
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

// GetByAccessCode retrieves a company by its access code
func (r *companyRepository) GetByAccessCode(code string) (*models.Company, error) {
	var company models.Company
	err := r.db.Where("access_code = ?", code).First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// JoinByAccessCode assigns the user a seat in the company identified by the
// access code. The company row is locked for the duration of the
// transaction so the seat count cannot be oversubscribed by concurrent
// joins.
func (r *companyRepository) JoinByAccessCode(code string, userID uint) (*models.Company, error) {
	var company models.Company
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("access_code = ?", code).First(&company).Error; err != nil {
			return err
		}

		var seated int64
		if err := tx.Model(&models.User{}).
			Where("company_id = ?", company.ID).Count(&seated).Error; err != nil {
			return err
		}
		if seated >= int64(company.MaxSeats) {
			return ErrCompanyFull
		}

		return tx.Model(&models.User{}).Where("id = ?", userID).
			Update("company_id", company.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &company, nil
}
