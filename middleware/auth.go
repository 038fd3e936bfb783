// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the caller's address set by the Gateway.
// The address is the sole identity the protocol knows; it is normalized to
// lowercase so the same wallet never counts twice.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		address := strings.TrimSpace(c.Get("X-User-Address"))
		if address == "" {
			log.Printf("❌ [USER_CTX] X-User-Address required but missing: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-Address, request must come through gateway with auth context",
			})
		}

		c.Locals("user_address", strings.ToLower(address))
		return c.Next()
	}
}
