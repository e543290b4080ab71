package middleware

import (
	"strconv"

	"terroir-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimit allows perSecond requests per second with the given burst,
// shared by all clients. perSecond ≤ 0 disables limiting.
func RateLimit(perSecond float64, burst int) fiber.Handler {
	if perSecond <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(c *fiber.Ctx) error {
		if !limiter.Allow() {
			rateLimitRejects.Inc()
			c.Set(fiber.HeaderRetryAfter, "1")
			return apperr.New(apperr.CodeRateLimited, "rate limit exceeded")
		}
		c.Set("X-RateLimit-Limit", strconv.FormatFloat(perSecond, 'g', -1, 64))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		return c.Next()
	}
}
