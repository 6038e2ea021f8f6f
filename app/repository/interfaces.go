package repository

import (
	"github.com/auroracademy/backend/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// CatalogRepository defines the interface for course/bundle catalog reads
type CatalogRepository interface {
	GetCourse(id uint) (*models.Course, error)
	GetBundle(id uint) (*models.Bundle, error)
	ListPublishedCourses() ([]models.Course, error)
	ListPublishedBundles() ([]models.Bundle, error)
}

// CouponRepository defines the interface for coupon administration
type CouponRepository interface {
	Create(coupon *models.Coupon) error
	GetByID(id uint) (*models.Coupon, error)
	GetByCode(code string) (*models.Coupon, error)
	List() ([]models.Coupon, error)
}

// CompanyRepository defines the interface for company seat management
type CompanyRepository interface {
	GetByAccessCode(code string) (*models.Company, error)
	// JoinByAccessCode assigns the user a seat, enforcing max_seats under a
	// row lock so concurrent joins cannot oversubscribe the company.
	JoinByAccessCode(code string, userID uint) (*models.Company, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User    UserRepository
	Catalog CatalogRepository
	Coupon  CouponRepository
	Company CompanyRepository
}
