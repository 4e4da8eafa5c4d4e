package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CORS allows the listed origins to call the management API. An empty list allows any origin.
func CORS(allowedOrigins []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		switch {
		case len(allowedOrigins) == 0:
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		case origin != "" && slices.Contains(allowedOrigins, origin):
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			c.Vary(fiber.HeaderOrigin)
		}
		c.Set(fiber.HeaderAccessControlAllowMethods, strings.Join([]string{
			fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions,
		}, ", "))
		c.Set(fiber.HeaderAccessControlAllowHeaders, "Origin, Content-Type, Accept, Authorization")
		c.Set(fiber.HeaderAccessControlMaxAge, "86400")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
