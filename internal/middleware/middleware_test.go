package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"terroir-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(handler fiber.Handler, mw ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	for _, m := range mw {
		app.Use(m)
	}
	app.Get("/x", handler)
	return app
}

func decode(t *testing.T, body io.Reader) ErrorBody {
	t.Helper()
	var b ErrorBody
	require.NoError(t, json.NewDecoder(body).Decode(&b))
	return b
}

func TestErrorHandlerRendersAppErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   apperr.Code
		msg    string
	}{
		{apperr.NotFound("dish", 3), 404, apperr.CodeNotFound, "dish not found"},
		{apperr.Validation("month must be between 1 and 12"), 400, apperr.CodeValidation, "month must be between 1 and 12"},
		{apperr.Conflict("nationality has 2 guests"), 409, apperr.CodeConflict, "nationality has 2 guests"},
		{fiber.NewError(fiber.StatusUnauthorized, "missing token"), 401, apperr.CodeUnauthorized, "missing token"},
		{errors.New("boom"), 500, apperr.CodeInternal, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			app := newApp(func(c *fiber.Ctx) error { return tt.err })
			resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			body := decode(t, resp.Body)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.msg, body.Error)
		})
	}
}

func TestRequestIDGeneratedAndPreserved(t *testing.T) {
	app := newApp(func(c *fiber.Ctx) error {
		return c.SendString(RequestIDFrom(c))
	}, RequestID())

	resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	generated := resp.Header.Get(HeaderRequestID)
	_, perr := uuid.Parse(generated)
	assert.NoError(t, perr)

	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set(HeaderRequestID, id)
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, id, string(body))

	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set(HeaderRequestID, "not-a-uuid")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", resp.Header.Get(HeaderRequestID))
}

func TestRateLimitRejectsBeyondBurst(t *testing.T) {
	app := newApp(func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }, RateLimit(0.001, 2))

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "0.001", resp.Header.Get("X-RateLimit-Limit"))
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, apperr.CodeRateLimited, decode(t, resp.Body).Code)
}

func TestRateLimitAdvertisesFractionalRate(t *testing.T) {
	app := newApp(func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }, RateLimit(0.5, 3))
	resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, "0.5", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Remaining"))
}

func TestRateLimitDisabled(t *testing.T) {
	app := newApp(func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }, RateLimit(0, 0))
	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}
}

func TestRequestLoggerRendersErrors(t *testing.T) {
	app := newApp(func(c *fiber.Ctx) error {
		return apperr.NotFound("guest", 1)
	}, RequestID(), RequestLogger(), Metrics())

	resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperr.CodeNotFound, decode(t, resp.Body).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/metrics", MetricsHandler())

	_, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "terroir_http_requests_total")
}
