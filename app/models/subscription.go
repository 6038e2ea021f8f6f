package models

import (
	"strings"
	"time"
)

const (
	SubscriptionStatusPending    = "pending"
	SubscriptionStatusAuthorized = "authorized"
	SubscriptionStatusPaused     = "paused"
	SubscriptionStatusCancelled  = "cancelled"
)

// LegacySubscriptionPrefix marks synthetic agreements created by the legacy
// reconciler; they never correspond to a real recurring agreement at the
// gateway.
const LegacySubscriptionPrefix = "LEGACY-"

// Subscription mirrors a MercadoPago preapproval (recurring agreement).
// CreatedAt anchors the billing cycle for proration; cancellation is
// terminal for the row, re-subscribing creates a new one.
type Subscription struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index:idx_subscriptions_user_bundle,priority:1" json:"user_id"`
	User          User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BundleID      uint      `gorm:"not null;index:idx_subscriptions_user_bundle,priority:2" json:"bundle_id"`
	Bundle        Bundle    `gorm:"foreignKey:BundleID" json:"bundle,omitempty"`
	MercadoPagoID string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_mp_id" json:"mercado_pago_id"`
	Status        string    `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	Installments  int       `gorm:"not null;default:0" json:"installments"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActiveSubscriptionStatus reports whether the status still ties up the
// (user, bundle) entitlement slot. Everything except cancelled counts: the
// legacy reconciler must not synthesize a second agreement next to a
// pending or paused one.
func IsActiveSubscriptionStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case SubscriptionStatusPending, SubscriptionStatusAuthorized, SubscriptionStatusPaused:
		return true
	default:
		return false
	}
}

// IsAuthorized reports whether the subscription currently grants access.
func (s *Subscription) IsAuthorized() bool {
	return s.Status == SubscriptionStatusAuthorized
}

// HasActiveInstallments reports whether the agreement is being paid in
// installments, which blocks mid-cycle downgrades.
func (s *Subscription) HasActiveInstallments() bool {
	return s.Installments > 1
}

// IsLegacy reports whether the agreement was synthesized by the reconciler.
func (s *Subscription) IsLegacy() bool {
	return strings.HasPrefix(s.MercadoPagoID, LegacySubscriptionPrefix)
}
