// Package middleware holds the Fiber middleware shared by the API and auth
// servers.
package middleware

import (
	"errors"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/logging"

	"github.com/gofiber/fiber/v2"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error string      `json:"error"`
	Code  apperr.Code `json:"code"`
}

// ErrorHandler renders *apperr.Error and *fiber.Error values; anything else
// becomes a 500 without leaking its message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		status := apperr.HTTPStatus(ae.Code)
		if status >= fiber.StatusInternalServerError {
			logging.Error(c.UserContext(), "request failed",
				"request_id", RequestIDFrom(c),
				"path", c.Path(),
				"error", err,
			)
		}
		return c.Status(status).JSON(ErrorBody{Error: ae.Message, Code: ae.Code})
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorBody{Error: fe.Message, Code: apperr.CodeForStatus(fe.Code)})
	}

	logging.Error(c.UserContext(), "unhandled error",
		"request_id", RequestIDFrom(c),
		"path", c.Path(),
		"error", err,
	)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorBody{
		Error: "internal server error",
		Code:  apperr.CodeInternal,
	})
}

// StatusOf is the status the response will carry once err is rendered.
func StatusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return apperr.HTTPStatus(ae.Code)
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
