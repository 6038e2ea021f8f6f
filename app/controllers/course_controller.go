package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/auroracademy/backend/internal/pkg/usercontext"
)

// HandleCourseAccess answers whether the caller may open the course. The
// check walks direct purchase, bundle purchase, then active subscription,
// and stops at the first hit.
func HandleCourseAccess(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	courseID, err := c.ParamsInt("id")
	if err != nil || courseID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid course id"})
	}

	hasAccess, err := AccessResolver().HasAccess(c.UserContext(), userCtx.UserID, uint(courseID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to resolve access"})
	}

	return c.JSON(fiber.Map{
		"course_id":  courseID,
		"has_access": hasAccess,
	})
}
