package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/auroracademy/backend/app/repository"
	"github.com/auroracademy/backend/internal/pkg/usercontext"
)

type companyJoinRequest struct {
	AccessCode string `json:"access_code" validate:"required"`
}

// HandleCompanyJoin seats the caller in the company matching the access
// code. Seat limits are enforced under a row lock, so a full company is
// rejected even under concurrent joins.
func HandleCompanyJoin(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req companyJoinRequest
	if err := c.BodyParser(&req); err != nil || req.AccessCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "access_code is required"})
	}

	repo := repository.GetGlobalFactory().GetCompanyRepository()
	company, err := repo.JoinByAccessCode(req.AccessCode, userCtx.UserID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown access code"})
		case errors.Is(err, repository.ErrCompanyFull):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "company_full", "message": "All seats are taken"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to join company"})
		}
	}

	return c.JSON(fiber.Map{
		"status":     "joined",
		"company_id": company.ID,
		"company":    company.Name,
	})
}
