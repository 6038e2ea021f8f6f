package billing

import "errors"

// Engine error taxonomy. Controllers translate these into HTTP statuses;
// nothing here is retried internally. An idempotency-key collision is not an
// error at all: the ingestor reports it as ResultAlreadyProcessed.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state")
	ErrWindowExpired   = errors.New("refund window expired")
	ErrExternalService = errors.New("payment gateway error")

	ErrCouponInactive       = errors.New("coupon inactive")
	ErrCouponLimitReached   = errors.New("coupon limit reached")
	ErrCouponExpired        = errors.New("coupon expired")
	ErrCouponPlanRestricted = errors.New("coupon not valid for this plan")
)
