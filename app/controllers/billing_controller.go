package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/auroracademy/backend/internal/pkg/usercontext"
)

type refundRequest struct {
	PurchaseID uint `json:"purchase_id" validate:"required"`
}

// HandleRefund refunds one of the caller's purchases. Admins may refund any
// purchase; everyone else only their own.
func HandleRefund(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req refundRequest
	if err := c.BodyParser(&req); err != nil || req.PurchaseID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "purchase_id is required"})
	}

	if err := BillingService().Refund(c.UserContext(), req.PurchaseID, userCtx.UserID); err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"status": "refunded", "purchase_id": req.PurchaseID})
}

type migrationRequest struct {
	BundleID uint `json:"bundle_id" validate:"required"`
}

// HandleUpgradeQuote prorates an upgrade to the requested bundle and returns
// the checkout for the difference. Nothing is swapped until the fee's
// payment notification arrives.
func HandleUpgradeQuote(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req migrationRequest
	if err := c.BodyParser(&req); err != nil || req.BundleID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "bundle_id is required"})
	}

	offer, err := BillingService().UpgradeQuote(c.UserContext(), userCtx.UserID, req.BundleID)
	if err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(offer)
}

// HandleDowngrade swaps the caller's subscription to a cheaper bundle
// effective immediately, with the gateway amount updated first.
func HandleDowngrade(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req migrationRequest
	if err := c.BodyParser(&req); err != nil || req.BundleID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "bundle_id is required"})
	}

	if err := BillingService().Downgrade(c.UserContext(), userCtx.UserID, req.BundleID); err != nil {
		return billingErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"status": "downgraded", "bundle_id": req.BundleID})
}
