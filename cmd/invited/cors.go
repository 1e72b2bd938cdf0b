package main

import (
	"github.com/gofiber/fiber/v2"

	"github.com/projecthub/invited/internal/config"
)

// corsMiddleware sets the CORS headers on every response and answers
// preflight requests with an empty 200.
func corsMiddleware(s config.CORSSettings) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, s.AllowOrigin)
		c.Set(fiber.HeaderAccessControlAllowHeaders, s.AllowHeaders)

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusOK)
		}

		return c.Next()
	}
}
