// Package httpx parses path, query and body input for Fiber handlers and
// reports bad input as validation errors.
package httpx

import (
	"strconv"
	"strings"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ParamID parses the :id path parameter.
func ParamID(c *fiber.Ctx) (uint, error) {
	raw := c.Params("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid id %q", raw)
	}
	return uint(id), nil
}

// QueryInt returns def when key is absent.
func QueryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", key)
	}
	return n, nil
}

// RequireQueryInt fails when key is absent.
func RequireQueryInt(c *fiber.Ctx, key string) (int, error) {
	if strings.TrimSpace(c.Query(key)) == "" {
		return 0, apperr.Validation("%s is required", key)
	}
	return QueryInt(c, key, 0)
}

// QueryUint parses a positive id from the query.
func QueryUint(c *fiber.Ctx, key string) (uint, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, apperr.Validation("%s is required", key)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.Validation("%s must be a positive integer", key)
	}
	return uint(n), nil
}

// QueryDate parses a YYYY-MM-DD value, returning def when key is absent.
func QueryDate(c *fiber.Ctx, key string, def time.Time) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be a date in YYYY-MM-DD format", key)
	}
	return d, nil
}

// RequireQueryDate fails when key is absent.
func RequireQueryDate(c *fiber.Ctx, key string) (time.Time, error) {
	if strings.TrimSpace(c.Query(key)) == "" {
		return time.Time{}, apperr.Validation("%s is required", key)
	}
	return QueryDate(c, key, time.Time{})
}

// Bind decodes the JSON request body into v.
func Bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}
