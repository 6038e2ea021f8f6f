package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/auroracademy/backend/app/models"
	"github.com/auroracademy/backend/internal/pkg/mercadopago"
	"gorm.io/gorm"
)

// MigrationQuote is the proration result for switching plans mid-cycle.
// Monetary values are rounded to whole currency units at the end only.
type MigrationQuote struct {
	RemainingValueCurrent float64 `json:"remaining_value_current"`
	ValueNewProrated      float64 `json:"value_new_prorated"`
	ChargeAmount          float64 `json:"charge_amount"`
	IsUpgrade             bool    `json:"is_upgrade"`
	DaysRemaining         int     `json:"days_remaining"`
}

// CalculateMigration computes the prorated cost of moving from the current
// plan to a new one, given the cycle anchor and length. Days used are
// clamped to [0, cycleLengthDays] so clock skew or an overrun cycle never
// produces a negative remainder.
func CalculateMigration(currentPrice, newPrice float64, cycleStart time.Time, cycleLengthDays int, now time.Time) MigrationQuote {
	daysUsed := int(math.Floor(now.Sub(cycleStart).Hours() / 24))
	if daysUsed < 0 {
		daysUsed = 0
	}
	if daysUsed > cycleLengthDays {
		daysUsed = cycleLengthDays
	}
	daysRemaining := cycleLengthDays - daysUsed

	remainingValueCurrent := currentPrice * float64(daysRemaining) / float64(cycleLengthDays)
	valueNewProrated := newPrice * float64(daysRemaining) / float64(cycleLengthDays)

	chargeAmount := valueNewProrated - remainingValueCurrent
	if chargeAmount < 0 {
		chargeAmount = 0
	}

	return MigrationQuote{
		RemainingValueCurrent: math.Round(remainingValueCurrent),
		ValueNewProrated:      math.Round(valueNewProrated),
		ChargeAmount:          math.Round(chargeAmount),
		IsUpgrade:             newPrice > currentPrice,
		DaysRemaining:         daysRemaining,
	}
}

// IsMigrationAllowed rejects downgrades while an installment plan is still
// being paid off; upgrades are always allowed.
func IsMigrationAllowed(isUpgrade, hasActiveInstallments bool) bool {
	if !isUpgrade && hasActiveInstallments {
		return false
	}
	return true
}

// UpgradeOffer is a quote plus the checkout the user completes to pay it.
type UpgradeOffer struct {
	Quote        MigrationQuote `json:"quote"`
	PreferenceID string         `json:"preference_id"`
	InitPoint    string         `json:"init_point"`
}

// UpgradeQuote prorates an upgrade to the target bundle and creates the
// one-off checkout for the difference. The subscription is not touched
// here: the bundle swap happens when the fee's payment webhook arrives.
func (s *Service) UpgradeQuote(ctx context.Context, userID, targetBundleID uint) (*UpgradeOffer, error) {
	sub, target, err := s.migrationContext(ctx, userID, targetBundleID)
	if err != nil {
		return nil, err
	}

	quote := CalculateMigration(sub.Bundle.Price, target.Price, sub.CreatedAt, sub.Bundle.CycleLengthDays(), s.now())
	if !quote.IsUpgrade {
		return nil, fmt.Errorf("%w: target plan is not an upgrade", ErrInvalidState)
	}

	pref, err := s.gateway.CreatePreference(ctx, &mercadopago.PreferenceRequest{
		Items: []mercadopago.PreferenceItem{{
			ID:         fmt.Sprintf("UPGRADE-%d-%d", sub.ID, target.ID),
			Title:      fmt.Sprintf("Upgrade to %s (prorated)", target.Title),
			Quantity:   1,
			UnitPrice:  quote.ChargeAmount,
			CurrencyID: "ARS",
		}},
		Metadata: map[string]interface{}{
			"type":          mercadopago.MetadataTypeUpgradeFee,
			"user_id":       userID,
			"new_bundle_id": target.ID,
			"new_amount":    target.Price,
			"old_bundle_id": sub.BundleID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create upgrade preference: %v", ErrExternalService, err)
	}

	return &UpgradeOffer{
		Quote:        quote,
		PreferenceID: pref.ID,
		InitPoint:    pref.InitPoint,
	}, nil
}

// Downgrade switches the subscription to a cheaper bundle. The bundle swap
// is applied immediately and the lower price takes effect on the next
// recurring charge; the user gives up the remainder of the paid cycle.
// Rejected while installments are active.
func (s *Service) Downgrade(ctx context.Context, userID, targetBundleID uint) error {
	sub, target, err := s.migrationContext(ctx, userID, targetBundleID)
	if err != nil {
		return err
	}

	quote := CalculateMigration(sub.Bundle.Price, target.Price, sub.CreatedAt, sub.Bundle.CycleLengthDays(), s.now())
	if quote.IsUpgrade {
		return fmt.Errorf("%w: target plan is not a downgrade", ErrInvalidState)
	}
	if !IsMigrationAllowed(quote.IsUpgrade, sub.HasActiveInstallments()) {
		return fmt.Errorf("%w: downgrade blocked by active installments", ErrInvalidState)
	}

	// Gateway first: never leave the ledger pointing at a cheaper plan the
	// gateway will keep charging full price for.
	if !sub.IsLegacy() {
		if err := s.gateway.UpdatePreApprovalAmount(ctx, sub.MercadoPagoID, target.Price); err != nil {
			return fmt.Errorf("%w: update recurring amount: %v", ErrExternalService, err)
		}
	}

	if err := s.repo.UpdateSubscriptionBundle(sub.ID, target.ID); err != nil {
		return err
	}
	log.Printf("[MIGRATION] user %d downgraded subscription %d to bundle %d", userID, sub.ID, target.ID)
	return nil
}

func (s *Service) migrationContext(_ context.Context, userID, targetBundleID uint) (*models.Subscription, *models.Bundle, error) {
	sub, err := s.repo.FindAuthorizedSubscriptionByUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: no authorized subscription", ErrNotFound)
		}
		return nil, nil, err
	}

	target, err := s.repo.GetBundle(targetBundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: bundle %d", ErrNotFound, targetBundleID)
		}
		return nil, nil, err
	}
	if !target.Published {
		return nil, nil, fmt.Errorf("%w: bundle %d is not published", ErrInvalidState, targetBundleID)
	}
	if target.ID == sub.BundleID {
		return nil, nil, fmt.Errorf("%w: already subscribed to bundle %d", ErrInvalidState, targetBundleID)
	}
	return sub, target, nil
}
