package billing

import (
	"time"

	"github.com/auroracademy/backend/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the ledger operations used by the billing engine. The
// two idempotency-critical writes (purchase creation, coupon redemption) are
// single transactional primitives here, never check-then-write round trips
// in the service.
type Repository interface {
	GetUser(id uint) (*models.User, error)
	GetBundle(id uint) (*models.Bundle, error)
	GetCouponByCode(code string) (*models.Coupon, error)

	GetPurchase(id uint) (*models.Purchase, error)
	// CreatePurchaseIfNotExists inserts the purchase unless a row with the
	// same payment_id already exists; reports whether a row was created.
	// When couponID is set, redemption rides the same transaction.
	CreatePurchaseIfNotExists(p *models.Purchase, couponID uint) (bool, error)
	UpdatePurchaseStatus(id uint, status string) error
	AttachCoupon(purchaseID, couponID uint) (bool, error)
	ListApprovedPurchasesWithoutCoupon(limit int) ([]models.Purchase, error)
	ListApprovedBundlePurchases() ([]models.Purchase, error)
	ListSales() ([]models.Purchase, error)

	GetSubscriptionByMercadoPagoID(mercadoPagoID string) (*models.Subscription, error)
	FindActiveSubscription(userID, bundleID uint) (*models.Subscription, error)
	FindAuthorizedSubscription(userID, bundleID uint) (*models.Subscription, error)
	FindAuthorizedSubscriptionByUser(userID uint) (*models.Subscription, error)
	ListAuthorizedSubscriptionsExcluding(userID uint, exceptMercadoPagoID string) ([]models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	UpsertSubscriptionByMercadoPagoID(sub *models.Subscription) (*models.Subscription, error)
	UpdateSubscriptionStatus(id uint, status string) error
	UpdateSubscriptionBundle(id, bundleID uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetBundle(id uint) (*models.Bundle, error) {
	var bundle models.Bundle
	if err := r.db.Preload("Courses").First(&bundle, id).Error; err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (r *gormRepository) GetCouponByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.Where("code = ?", models.NormalizeCouponCode(code)).First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *gormRepository) GetPurchase(id uint) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.Preload("User").Preload("Course").Preload("Bundle").First(&purchase, id).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *gormRepository) CreatePurchaseIfNotExists(p *models.Purchase, couponID uint) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).Create(p)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Concurrent delivery won the insert; nothing else to do.
			return nil
		}
		created = true

		if couponID != 0 {
			// Guarded increment keeps used <= usage_limit under concurrent
			// redemptions. Losing the race costs the link, not the purchase.
			if _, err := redeemCoupon(tx, p.ID, couponID); err != nil {
				return err
			}
		}
		return nil
	})
	return created, err
}

func (r *gormRepository) UpdatePurchaseStatus(id uint, status string) error {
	return r.db.Model(&models.Purchase{}).Where("id = ?", id).Update("status", status).Error
}

func (r *gormRepository) AttachCoupon(purchaseID, couponID uint) (bool, error) {
	attached := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		ok, err := redeemCoupon(tx, purchaseID, couponID)
		if err != nil {
			return err
		}
		attached = ok
		return nil
	})
	return attached, err
}

// redeemCoupon increments the usage counter and links the coupon to the
// purchase in one transaction. The WHERE clause is the concurrency guard:
// zero rows affected means inactive or exhausted, in which case the purchase
// stays unlinked rather than overselling the coupon.
func redeemCoupon(tx *gorm.DB, purchaseID, couponID uint) (bool, error) {
	res := tx.Model(&models.Coupon{}).
		Where("id = ? AND active = ? AND (usage_limit IS NULL OR used < usage_limit)", couponID, true).
		Update("used", gorm.Expr("used + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := tx.Model(&models.Purchase{}).Where("id = ?", purchaseID).
		Update("coupon_id", couponID).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *gormRepository) ListApprovedPurchasesWithoutCoupon(limit int) ([]models.Purchase, error) {
	var purchases []models.Purchase
	q := r.db.Where("status = ? AND coupon_id IS NULL", models.PurchaseStatusApproved)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&purchases).Error
	return purchases, err
}

func (r *gormRepository) ListApprovedBundlePurchases() ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.Preload("User").Preload("Bundle").
		Where("status = ? AND bundle_id IS NOT NULL", models.PurchaseStatusApproved).
		Find(&purchases).Error
	return purchases, err
}

func (r *gormRepository) ListSales() ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.Preload("User").Preload("Course").Preload("Bundle").
		Order("created_at DESC").
		Find(&purchases).Error
	return purchases, err
}

func (r *gormRepository) GetSubscriptionByMercadoPagoID(mercadoPagoID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("mercado_pago_id = ?", mercadoPagoID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindActiveSubscription(userID, bundleID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ? AND bundle_id = ? AND status IN ?", userID, bundleID,
		[]string{models.SubscriptionStatusAuthorized, models.SubscriptionStatusPending, models.SubscriptionStatusPaused}).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindAuthorizedSubscription(userID, bundleID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ? AND bundle_id = ? AND status = ?", userID, bundleID,
		models.SubscriptionStatusAuthorized).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindAuthorizedSubscriptionByUser(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Bundle").
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusAuthorized).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) ListAuthorizedSubscriptionsExcluding(userID uint, exceptMercadoPagoID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ? AND status = ? AND mercado_pago_id <> ?",
		userID, models.SubscriptionStatusAuthorized, exceptMercadoPagoID).
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) UpsertSubscriptionByMercadoPagoID(sub *models.Subscription) (*models.Subscription, error) {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mercado_pago_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"installments",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return nil, err
	}

	// Ensure ID and create-time fields are populated after upsert.
	var stored models.Subscription
	if err := r.db.Preload("User").Preload("Bundle").
		Where("mercado_pago_id = ?", sub.MercadoPagoID).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) UpdateSubscriptionStatus(id uint, status string) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

func (r *gormRepository) UpdateSubscriptionBundle(id, bundleID uint) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).
		Updates(map[string]interface{}{"bundle_id": bundleID, "updated_at": time.Now()}).Error
}
