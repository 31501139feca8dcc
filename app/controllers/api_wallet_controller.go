package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mweidner/JadeFrame/internal/pkg/middleware"
)

// HandleWallet returns the user's current jade balance. Users without a
// wallet row yet read as zero.
func (a *API) HandleWallet(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	balance, err := a.Wallet.Balance(c.UserContext(), userID)
	if err != nil {
		log.Errorf("[API] wallet balance for user %d: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "could not load wallet")
	}

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": balance,
	})
}
