package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// KeyUserID is the Locals key carrying the authenticated user id.
const KeyUserID = "user_id"

// RequireUser reads the X-User-ID header set by the upstream gateway and
// stores it in Locals. Identity issuance is the gateway's job; requests
// arriving here without the header are rejected with JSON 401.
func RequireUser(c *fiber.Ctx) error {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "missing X-User-ID header",
		})
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "invalid X-User-ID header",
		})
	}
	c.Locals(KeyUserID, uint(id))
	return c.Next()
}

// UserID returns the authenticated user id stored by RequireUser, zero when
// the middleware did not run.
func UserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals(KeyUserID).(uint); ok {
		return id
	}
	return 0
}
