package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/mweidner/JadeFrame/app/controllers"
	"github.com/mweidner/JadeFrame/internal/pkg/middleware"
)

type ApiRouter struct {
	api *controllers.API
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes; identity comes from the upstream gateway.
	v1 := api.Group("/v1", middleware.RequireUser)
	v1.Post("/generate", h.api.HandleGenerate)
	v1.Get("/jobs", h.api.HandleListJobs)
	v1.Get("/jobs/active", h.api.HandleActiveJob)
	v1.Get("/jobs/:id", h.api.HandleGetJob)
	v1.Get("/jobs/:id/status", h.api.HandleJobStatus)
	v1.Get("/wallet", h.api.HandleWallet)
}

func NewApiRouter(api *controllers.API) *ApiRouter {
	return &ApiRouter{api: api}
}
