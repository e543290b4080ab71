package auth

import (
	"terroir-backend/internal/apperr"
	"terroir-backend/internal/httpx"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const ctxUserKey = "user"

// RequireSession is JWTMiddleware plus the revocation and lock checks only
// the auth service can make.
func (s *Service) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, err := BearerToken(c)
		if err != nil {
			return err
		}
		claims, user, err := s.Authenticate(c.UserContext(), tokenStr)
		if err != nil {
			return err
		}
		setLocals(c, claims)
		c.Locals(CtxUserRoleKey, user.Role)
		c.Locals(ctxUserKey, user)
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals(ctxUserKey).(*models.User)
	if !ok {
		return nil, apperr.Unauthorized("not authenticated")
	}
	return user, nil
}

// POST /auth/register
func RegisterHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		user, err := s.Register(c.UserContext(), body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Registration successful, check your inbox to verify your email.",
			"user":    user,
		})
	}
}

// GET /auth/verify-email?token=...
func VerifyEmailHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			return apperr.Validation("token is required")
		}
		already, err := s.VerifyEmail(c.UserContext(), token)
		if err != nil {
			return err
		}
		if already {
			return c.JSON(fiber.Map{"message": "Email already verified. You can login."})
		}
		return c.JSON(fiber.Map{"message": "Email verified successfully. You can now login."})
	}
}

// POST /auth/login
func LoginHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		resp, err := s.Login(c.UserContext(), body, c.IP(), c.Get(fiber.HeaderUserAgent))
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

// POST /auth/refresh
func RefreshHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RefreshRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		if body.RefreshToken == "" {
			return apperr.Validation("refresh_token is required")
		}
		pair, err := s.Refresh(c.UserContext(), body.RefreshToken)
		if err != nil {
			return err
		}
		return c.JSON(pair)
	}
}

// POST /auth/forgot-password
func ForgotPasswordHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ForgotPasswordRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		if err := s.ForgotPassword(c.UserContext(), body.Email); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "If the account exists, a reset link has been sent."})
	}
}

// POST /auth/reset-password
func ResetPasswordHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ResetPasswordRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		if err := s.ResetPassword(c.UserContext(), body); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Password updated successfully"})
	}
}

func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := currentUser(c)
		if err != nil {
			return err
		}
		return c.JSON(toUserOut(user))
	}
}

// GET|HEAD /auth/check-token
func CheckTokenHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "valid"})
	}
}

func LogoutHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := ClaimsFrom(c)
		if claims == nil {
			return apperr.Unauthorized("not authenticated")
		}
		if err := s.Logout(c.UserContext(), claims); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Successfully logged out"})
	}
}

func LogoutAllHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := currentUser(c)
		if err != nil {
			return err
		}
		n, err := s.LogoutAll(c.UserContext(), user.ID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Logged out from all devices", "revoked_sessions": n})
	}
}

func SessionsHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := currentUser(c)
		if err != nil {
			return err
		}
		var jti string
		if claims := ClaimsFrom(c); claims != nil {
			jti = claims.ID
		}
		sessions, err := s.Sessions(c.UserContext(), user.ID, jti)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"sessions": sessions, "total": len(sessions)})
	}
}

// Register mounts the auth routes under /auth.
func Register(r fiber.Router, s *Service) {
	g := r.Group("/auth")
	g.Post("/register", RegisterHandler(s))
	g.Get("/verify-email", VerifyEmailHandler(s))
	g.Post("/login", LoginHandler(s))
	g.Post("/refresh", RefreshHandler(s))
	g.Post("/forgot-password", ForgotPasswordHandler(s))
	g.Post("/reset-password", ResetPasswordHandler(s))

	session := s.RequireSession()
	g.Get("/me", session, MeHandler())
	g.Get("/check-token", session, CheckTokenHandler())
	g.Post("/logout", session, LogoutHandler(s))
	g.Post("/logout-all", session, LogoutAllHandler(s))
	g.Get("/sessions", session, SessionsHandler(s))
}
