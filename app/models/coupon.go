package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Coupon is a discount code. Codes are stored upper-case and matched
// case-insensitively. Used is incremented exactly once per redemption by a
// guarded update in the repository, so `used <= usage_limit` holds under
// concurrent checkouts.
type Coupon struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Code       string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_coupons_code" json:"code" validate:"required,min=2,max=64"`
	Discount   float64    `gorm:"type:decimal(12,2);not null;default:0" json:"discount" validate:"gte=0"`
	Active     bool       `gorm:"default:true" json:"active"`
	UsageLimit *int       `gorm:"default:null" json:"limit,omitempty"`
	Used       int        `gorm:"not null;default:0" json:"used"`
	ExpiresAt  *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Coupon) Validate() error {
	v := validator.New()

	return v.Struct(c)
}

// NormalizeCouponCode maps user input to the stored code form.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsExhausted reports whether the usage limit has been reached.
func (c *Coupon) IsExhausted() bool {
	return c.UsageLimit != nil && c.Used >= *c.UsageLimit
}

// IsExpired reports whether the coupon expired before the given time.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
