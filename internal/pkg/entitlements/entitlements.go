package entitlements

import (
	"context"

	"github.com/auroracademy/backend/app/models"
	"gorm.io/gorm"
)

// Repository answers the three entitlement questions against committed
// ledger state. No caching: access decisions must reflect the most recent
// commit, a refund or cancellation takes effect on the next call.
type Repository interface {
	HasApprovedCoursePurchase(userID, courseID uint) (bool, error)
	HasApprovedBundlePurchaseContaining(userID, courseID uint) (bool, error)
	HasAuthorizedSubscriptionContaining(userID, courseID uint) (bool, error)
}

// Resolver decides whether a user may access a course. Pure read path, safe
// for concurrent use.
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver from an injected repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// NewResolverFromDB creates a resolver backed by GORM.
func NewResolverFromDB(db *gorm.DB) *Resolver {
	return NewResolver(NewRepository(db))
}

// HasAccess reports whether the user is entitled to the course through any
// path: a direct approved purchase, an approved purchase of a bundle that
// contains it, or an authorized subscription whose bundle contains it.
func (r *Resolver) HasAccess(ctx context.Context, userID, courseID uint) (bool, error) {
	_ = ctx
	ok, err := r.repo.HasApprovedCoursePurchase(userID, courseID)
	if err != nil || ok {
		return ok, err
	}

	ok, err = r.repo.HasApprovedBundlePurchaseContaining(userID, courseID)
	if err != nil || ok {
		return ok, err
	}

	return r.repo.HasAuthorizedSubscriptionContaining(userID, courseID)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an entitlement repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) HasApprovedCoursePurchase(userID, courseID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Purchase{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, models.PurchaseStatusApproved).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) HasApprovedBundlePurchaseContaining(userID, courseID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Purchase{}).
		Joins("JOIN bundle_courses ON bundle_courses.bundle_id = purchases.bundle_id").
		Where("purchases.user_id = ? AND purchases.status = ? AND bundle_courses.course_id = ?",
			userID, models.PurchaseStatusApproved, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) HasAuthorizedSubscriptionContaining(userID, courseID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Subscription{}).
		Joins("JOIN bundle_courses ON bundle_courses.bundle_id = subscriptions.bundle_id").
		Where("subscriptions.user_id = ? AND subscriptions.status = ? AND bundle_courses.course_id = ?",
			userID, models.SubscriptionStatusAuthorized, courseID).
		Count(&count).Error
	return count > 0, err
}
