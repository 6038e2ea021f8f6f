package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/auroracademy/backend/app/controllers"
	"github.com/auroracademy/backend/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Gateway notifications authenticate by redelivery semantics, not keys.
	v1.Post("/webhooks/mercadopago", controllers.HandleMercadoPagoWebhook)

	v1.Get("/catalog/courses", controllers.HandleListCourses)
	v1.Get("/catalog/bundles", controllers.HandleListBundles)

	authed := v1.Group("", middleware.APIKeyAuthMiddleware())
	authed.Post("/billing/refund", controllers.HandleRefund)
	authed.Post("/billing/upgrade/quote", controllers.HandleUpgradeQuote)
	authed.Post("/billing/downgrade", controllers.HandleDowngrade)
	authed.Post("/coupons/validate", controllers.HandleValidateCoupon)
	authed.Get("/courses/:id/access", controllers.HandleCourseAccess)
	authed.Post("/company/join", controllers.HandleCompanyJoin)

	admin := authed.Group("/admin", middleware.RequireAdmin())
	admin.Get("/sales", controllers.HandleAdminSales)
	admin.Post("/reconcile-legacy", controllers.HandleAdminReconcileLegacy)
	admin.Post("/backfill-coupons", controllers.HandleAdminBackfillCoupons)
	admin.Post("/grant-access", controllers.HandleAdminGrantAccess)
	admin.Get("/coupons", controllers.HandleAdminListCoupons)
	admin.Post("/coupons", controllers.HandleAdminCreateCoupon)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
