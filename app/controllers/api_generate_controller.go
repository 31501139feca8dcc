package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mweidner/JadeFrame/internal/pkg/generation"
	"github.com/mweidner/JadeFrame/internal/pkg/ledger"
	"github.com/mweidner/JadeFrame/internal/pkg/middleware"
)

// HandleGenerate accepts a generation request, charges the wallet, and
// queues or dispatches the job. Billing rejections come back before any
// compute is touched.
func (a *API) HandleGenerate(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	req := new(generation.GenerateRequest)
	if err := c.BodyParser(req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "request body is not valid JSON")
	}

	job, err := a.Generator.Submit(c.UserContext(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, generation.ErrInvalidRequest):
			return jsonError(c, fiber.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return jsonError(c, fiber.StatusPaymentRequired, "insufficient_funds", "not enough jades for this generation")
		default:
			log.Errorf("[API] generation submit for user %d: %v", userID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not submit generation request")
		}
	}

	if cacheErr := a.Statuses.SetJobStatus(userID, job.ID, job.Status); cacheErr != nil {
		log.Warnf("[API] caching status for job %s: %v", job.ID, cacheErr)
	}

	return c.Status(fiber.StatusAccepted).JSON(jobResponse(job))
}
