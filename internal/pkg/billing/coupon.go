package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/auroracademy/backend/app/models"
	"gorm.io/gorm"
)

// planRestrictedCoupons limits specific codes to bundles on the listed
// billing intervals. Restrictions key off the bundle's billing_interval
// attribute, never its title.
var planRestrictedCoupons = map[string][]string{
	"SOCIO50":  {models.BillingIntervalMonth},
	"MENSUAL3": {models.BillingIntervalMonth},
}

// ValidateCoupon evaluates the layered redemption rules for a coupon,
// optionally against the bundle it would apply to. Checks run in order:
// active, usage limit, expiry, plan restriction. Pure; redemption itself is
// a repository concern.
func ValidateCoupon(coupon *models.Coupon, bundle *models.Bundle, now time.Time) error {
	if !coupon.Active {
		return ErrCouponInactive
	}
	if coupon.IsExhausted() {
		return ErrCouponLimitReached
	}
	if coupon.IsExpired(now) {
		return ErrCouponExpired
	}

	if bundle != nil {
		if intervals, ok := planRestrictedCoupons[coupon.Code]; ok {
			allowed := false
			for _, interval := range intervals {
				if bundle.BillingInterval == interval {
					allowed = true
					break
				}
			}
			if !allowed {
				return fmt.Errorf("%w: %s does not apply to %s plans", ErrCouponPlanRestricted, coupon.Code, bundle.BillingInterval)
			}
		}
	}
	return nil
}

// ValidateCode resolves a coupon code case-insensitively and runs the
// redemption rules, scoped to a bundle when one is supplied.
func (s *Service) ValidateCode(ctx context.Context, code string, bundleID uint) (*models.Coupon, error) {
	coupon, err := s.repo.GetCouponByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: coupon %q", ErrNotFound, models.NormalizeCouponCode(code))
		}
		return nil, err
	}

	var bundle *models.Bundle
	if bundleID != 0 {
		bundle, err = s.repo.GetBundle(bundleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: bundle %d", ErrNotFound, bundleID)
			}
			return nil, err
		}
	}

	if err := ValidateCoupon(coupon, bundle, s.now()); err != nil {
		return nil, err
	}
	return coupon, nil
}
