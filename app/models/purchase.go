package models

import "time"

const (
	PurchaseStatusPending  = "pending"
	PurchaseStatusApproved = "approved"
	PurchaseStatusRefunded = "refunded"
)

// Purchase records a one-time charge granting access to a course or bundle.
// PaymentID is the external charge id and doubles as the idempotency key:
// the unique index makes insert-or-detect-conflict the only way a webhook
// delivery can materialize a purchase.
type Purchase struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	User         User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CourseID     *uint     `gorm:"index;default:null" json:"course_id,omitempty"`
	Course       *Course   `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	BundleID     *uint     `gorm:"index;default:null" json:"bundle_id,omitempty"`
	Bundle       *Bundle   `gorm:"foreignKey:BundleID" json:"bundle,omitempty"`
	ProductLabel string    `gorm:"type:varchar(200);default:''" json:"product_label,omitempty"`
	Amount       float64   `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Status       string    `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	PaymentID    string    `gorm:"type:varchar(191);uniqueIndex:ux_purchases_payment_id;default:null" json:"payment_id,omitempty"`
	PreferenceID string    `gorm:"type:varchar(191);default:''" json:"preference_id,omitempty"`
	CouponID     *uint     `gorm:"index;default:null" json:"coupon_id,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsApproved reports whether the purchase currently grants access.
func (p *Purchase) IsApproved() bool {
	return p.Status == PurchaseStatusApproved
}

// ItemLabel returns the reporting label for the purchased item: course
// title, then bundle title, then the free-text product label of a manual
// grant.
func (p *Purchase) ItemLabel() string {
	if p.Course != nil && p.Course.Title != "" {
		return p.Course.Title
	}
	if p.Bundle != nil && p.Bundle.Title != "" {
		return p.Bundle.Title
	}
	return p.ProductLabel
}
