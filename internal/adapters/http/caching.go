package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets a default Cache-Control on GET responses that the
// handler left unset.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || len(c.Response().Header.Peek(fiber.HeaderCacheControl)) > 0 {
			return err
		}
		if c.Response().StatusCode() >= 400 {
			c.Set(fiber.HeaderCacheControl, "no-store")
			return err
		}

		if ttl := cacheControlFor(c.Path()); ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "no-cache"
	case path == "/metrics":
		return "no-cache"
	case strings.HasPrefix(path, "/ws"):
		return ""
	case path == "/v1/locations/search":
		return "public, max-age=300"
	case strings.HasPrefix(path, "/v1/locations/") && strings.HasSuffix(path, "/filter"):
		return "public, max-age=600"
	case strings.HasPrefix(path, "/v1/locations/") &&
		(strings.HasSuffix(path, "/properties") || strings.HasSuffix(path, "/count")):
		// listings change under the index; keep it short
		return "public, max-age=60"
	case strings.HasPrefix(path, "/v1/locations/"):
		return "public, max-age=600"
	case path == "/v1/properties/search":
		return "public, max-age=60"
	case strings.HasPrefix(path, "/docs"):
		return "public, max-age=3600"
	case strings.HasPrefix(path, "/v1/"):
		return "public, max-age=300"
	}
	return ""
}
