package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// HandlePaymentWebhook ingests payment provider events. The response is 200
// for every delivery the server could read: the sender retries on anything
// else, and our idempotency gate absorbs redeliveries, so surfacing internal
// failures here would only generate duplicate traffic.
func (a *API) HandlePaymentWebhook(c *fiber.Ctx) error {
	outcome := a.Webhooks.Ingest(c.UserContext(), c.Body(), c.Get("X-JadePay-Signature"))

	switch {
	case outcome.Err != nil:
		log.Errorf("[API] webhook %s (%s): %v", outcome.EventID, outcome.EventType, outcome.Err)
	case outcome.Duplicate:
		log.Infof("[API] webhook %s redelivered, acknowledged", outcome.EventID)
	case outcome.Applied:
		log.Infof("[API] webhook %s (%s) applied", outcome.EventID, outcome.EventType)
	}

	return c.JSON(fiber.Map{"received": true})
}
