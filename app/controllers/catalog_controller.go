package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/auroracademy/backend/app/repository"
)

// HandleListCourses returns every published course, newest catalog first.
func HandleListCourses(c *fiber.Ctx) error {
	courses, err := repository.GetGlobalFactory().GetCatalogRepository().ListPublishedCourses()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Could not load courses",
		})
	}
	return c.JSON(fiber.Map{"courses": courses})
}

// HandleListBundles returns every published bundle with its course set.
func HandleListBundles(c *fiber.Ctx) error {
	bundles, err := repository.GetGlobalFactory().GetCatalogRepository().ListPublishedBundles()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Could not load bundles",
		})
	}
	return c.JSON(fiber.Map{"bundles": bundles})
}
