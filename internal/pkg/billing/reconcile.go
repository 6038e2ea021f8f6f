package billing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/auroracademy/backend/app/models"
	"gorm.io/gorm"
)

// ReconcileDetail describes one repaired entitlement.
type ReconcileDetail struct {
	Email          string `json:"email"`
	Bundle         string `json:"bundle"`
	PurchaseID     uint   `json:"purchase_id"`
	SubscriptionID uint   `json:"subscription_id"`
}

// ReconcileReport summarizes a legacy reconciliation run.
type ReconcileReport struct {
	FixedCount int               `json:"fixed_count"`
	Details    []ReconcileDetail `json:"details"`
}

// ReconcileLegacySubscriptions repairs drift between one-time bundle
// purchases and recurring subscription records: every approved bundle
// purchase must be backed by an active subscription. Missing ones are
// synthesized as authorized with a LEGACY- marked agreement id and the
// purchase's creation time as the cycle anchor, so future proration stays
// correct. Idempotent: the existence check covers every non-terminal
// status, so a second run creates nothing.
func (s *Service) ReconcileLegacySubscriptions(ctx context.Context) (*ReconcileReport, error) {
	_ = ctx
	purchases, err := s.repo.ListApprovedBundlePurchases()
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{Details: []ReconcileDetail{}}
	for _, p := range purchases {
		if p.BundleID == nil {
			continue
		}

		_, err := s.repo.FindActiveSubscription(p.UserID, *p.BundleID)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		reference := p.PaymentID
		if reference == "" {
			reference = fmt.Sprintf("%d", p.ID)
		}
		sub := &models.Subscription{
			UserID:        p.UserID,
			BundleID:      *p.BundleID,
			MercadoPagoID: models.LegacySubscriptionPrefix + reference,
			Status:        models.SubscriptionStatusAuthorized,
			CreatedAt:     p.CreatedAt, // preserve the billing-cycle anchor
		}
		if err := s.repo.CreateSubscription(sub); err != nil {
			return nil, err
		}

		log.Printf("[RECONCILE] created subscription %s for user %d (purchase %d)", sub.MercadoPagoID, p.UserID, p.ID)
		report.FixedCount++
		report.Details = append(report.Details, ReconcileDetail{
			Email:          p.User.Email,
			Bundle:         p.ItemLabel(),
			PurchaseID:     p.ID,
			SubscriptionID: sub.ID,
		})
	}
	return report, nil
}
