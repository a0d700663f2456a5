package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// CacheControl sets public cache headers on successful GET responses
func CacheControl(maxAge time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() == fiber.MethodGet && c.Response().StatusCode() == fiber.StatusOK {
			c.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
		}

		return err
	}
}

// NoCacheHeaders sets no-cache headers (user-specific and ledger data)
func NoCacheHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Set("Pragma", "no-cache")
		c.Set("Expires", "0")
		return c.Next()
	}
}
