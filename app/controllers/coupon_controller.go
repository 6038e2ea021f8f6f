package controllers

import (
	"github.com/gofiber/fiber/v2"
)

type validateCouponRequest struct {
	Code     string `json:"code" validate:"required"`
	BundleID uint   `json:"bundle_id" validate:"required"`
}

// HandleValidateCoupon checks a coupon against a target bundle before
// checkout. Rejections carry the first failing rule only.
func HandleValidateCoupon(c *fiber.Ctx) error {
	var req validateCouponRequest
	if err := c.BodyParser(&req); err != nil || req.Code == "" || req.BundleID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "code and bundle_id are required"})
	}

	coupon, err := BillingService().ValidateCode(c.UserContext(), req.Code, req.BundleID)
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"valid":    true,
		"code":     coupon.Code,
		"discount": coupon.Discount,
	})
}
