package auth

import (
	"strings"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/config"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey    = "user_id"
	CtxUserRoleKey  = "user_role"
	CtxUserEmailKey = "user_email"
	CtxClaimsKey    = "claims"
)

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", apperr.Unauthorized("missing Authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", apperr.Unauthorized("Authorization header must be 'Bearer <token>'")
	}
	return strings.TrimSpace(parts[1]), nil
}

func setLocals(c *fiber.Ctx, claims *Claims) {
	id, _ := claims.UserID()
	c.Locals(CtxUserIDKey, id)
	c.Locals(CtxUserRoleKey, claims.Role)
	c.Locals(CtxUserEmailKey, claims.Email)
	c.Locals(CtxClaimsKey, claims)
}

// JWTMiddleware accepts any valid access token signed with the shared
// secret. Revocation is checked by the auth service only.
func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, err := BearerToken(c)
		if err != nil {
			return err
		}
		claims, err := ParseToken(cfg, tokenStr, TokenAccess)
		if err != nil {
			return apperr.Unauthorized("invalid or expired token")
		}
		setLocals(c, claims)
		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return apperr.Forbidden("role is missing from token")
		}
		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return apperr.Forbidden("insufficient permissions")
	}
}

// Actor returns the authenticated user id and email from locals.
func Actor(c *fiber.Ctx) (uint, string) {
	id, _ := c.Locals(CtxUserIDKey).(uint)
	email, _ := c.Locals(CtxUserEmailKey).(string)
	return id, email
}

// ClaimsFrom returns the verified claims, nil outside protected routes.
func ClaimsFrom(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals(CtxClaimsKey).(*Claims)
	return claims
}
