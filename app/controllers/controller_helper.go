package controllers

import (
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/auroracademy/backend/internal/pkg/billing"
	"github.com/auroracademy/backend/internal/pkg/database"
	"github.com/auroracademy/backend/internal/pkg/entitlements"
	"github.com/auroracademy/backend/internal/pkg/mercadopago"
)

var (
	billingOnce    sync.Once
	billingService *billing.Service

	accessOnce     sync.Once
	accessResolver *entitlements.Resolver
)

// BillingService returns the shared billing service, built lazily from the
// global database handle and the gateway client configured by environment.
func BillingService() *billing.Service {
	billingOnce.Do(func() {
		billingService = billing.NewServiceFromDB(database.GetDB(), mercadopago.NewClientFromEnv())
	})
	return billingService
}

// SetBillingService overrides the shared billing service. Used by tests.
func SetBillingService(s *billing.Service) {
	billingOnce.Do(func() {})
	billingService = s
}

// AccessResolver returns the shared entitlement resolver.
func AccessResolver() *entitlements.Resolver {
	accessOnce.Do(func() {
		accessResolver = entitlements.NewResolverFromDB(database.GetDB())
	})
	return accessResolver
}

// SetAccessResolver overrides the shared entitlement resolver. Used by tests.
func SetAccessResolver(r *entitlements.Resolver) {
	accessOnce.Do(func() {})
	accessResolver = r
}

// billingErrorResponse maps billing domain errors onto HTTP status codes and
// a stable error envelope.
func billingErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, billing.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": err.Error()})
	case errors.Is(err, billing.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invalid_state", "message": err.Error()})
	case errors.Is(err, billing.ErrWindowExpired):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "window_expired", "message": err.Error()})
	case errors.Is(err, billing.ErrCouponInactive),
		errors.Is(err, billing.ErrCouponLimitReached),
		errors.Is(err, billing.ErrCouponExpired),
		errors.Is(err, billing.ErrCouponPlanRestricted):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "coupon_invalid", "message": err.Error()})
	case errors.Is(err, billing.ErrExternalService):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "bad_gateway", "message": "Payment gateway unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Unexpected error"})
	}
}
