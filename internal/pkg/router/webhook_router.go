package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mweidner/JadeFrame/app/controllers"
)

// WebhookRouter serves inbound machine-to-machine callbacks. No identity
// middleware and no rate limiter: the payment provider authenticates through
// its signature header and retries aggressively on non-200s.
type WebhookRouter struct {
	api *controllers.API
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post("/webhooks/payment", h.api.HandlePaymentWebhook)
}

func NewWebhookRouter(api *controllers.API) *WebhookRouter {
	return &WebhookRouter{api: api}
}
