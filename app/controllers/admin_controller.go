package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/auroracademy/backend/app/models"
	"github.com/auroracademy/backend/app/repository"
)

// HandleAdminSales lists purchase records for revenue reporting. With
// ?dedupe=1 near-simultaneous duplicate charges are collapsed before the
// list is returned.
func HandleAdminSales(c *fiber.Ctx) error {
	dedupe := c.Query("dedupe") == "1" || c.Query("dedupe") == "true"

	sales, err := BillingService().SalesReport(c.UserContext(), dedupe)
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"count": len(sales),
		"sales": sales,
	})
}

// HandleAdminReconcileLegacy backfills subscription records for approved
// bundle purchases that have none. Safe to run repeatedly.
func HandleAdminReconcileLegacy(c *fiber.Ctx) error {
	report, err := BillingService().ReconcileLegacySubscriptions(c.UserContext())
	if err != nil {
		return billingErrorResponse(c, err)
	}
	return c.JSON(report)
}

// HandleAdminBackfillCoupons re-links coupons recorded at the gateway but
// missing locally.
func HandleAdminBackfillCoupons(c *fiber.Ctx) error {
	report, err := BillingService().BackfillCoupons(c.UserContext())
	if err != nil {
		return billingErrorResponse(c, err)
	}
	return c.JSON(report)
}

type grantAccessRequest struct {
	UserID   uint   `json:"user_id" validate:"required"`
	CourseID uint   `json:"course_id"`
	BundleID uint   `json:"bundle_id"`
	Label    string `json:"label"`
}

// HandleAdminGrantAccess creates a synthetic approved purchase so a user
// gets access without a gateway payment.
func HandleAdminGrantAccess(c *fiber.Ctx) error {
	var req grantAccessRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "user_id is required"})
	}
	if req.CourseID != 0 && req.BundleID != 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Grant cannot target both a course and a bundle"})
	}

	purchase, err := BillingService().GrantAccess(c.UserContext(), req.UserID, req.CourseID, req.BundleID, req.Label)
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(purchase)
}

type createCouponRequest struct {
	Code       string     `json:"code"`
	Discount   float64    `json:"discount"`
	UsageLimit *int       `json:"limit"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// HandleAdminCreateCoupon registers a new discount code. The code is
// normalized before insert, so two spellings of the same code collide on the
// unique index.
func HandleAdminCreateCoupon(c *fiber.Ctx) error {
	var req createCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	coupon := &models.Coupon{
		Code:       req.Code,
		Discount:   req.Discount,
		Active:     true,
		UsageLimit: req.UsageLimit,
		ExpiresAt:  req.ExpiresAt,
	}
	if err := coupon.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	if err := repository.GetGlobalFactory().GetCouponRepository().Create(coupon); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error", "message": "Could not create coupon"})
	}

	return c.Status(fiber.StatusCreated).JSON(coupon)
}

// HandleAdminListCoupons returns every coupon with its usage counters.
func HandleAdminListCoupons(c *fiber.Ctx) error {
	coupons, err := repository.GetGlobalFactory().GetCouponRepository().List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error", "message": "Could not load coupons"})
	}
	return c.JSON(fiber.Map{"count": len(coupons), "coupons": coupons})
}
