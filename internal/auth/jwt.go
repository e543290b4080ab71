package auth

import (
	"errors"
	"strconv"
	"time"

	"terroir-backend/internal/config"
	"terroir-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenAccess        TokenType = "access"
	TokenRefresh       TokenType = "refresh"
	TokenVerifyEmail   TokenType = "verify_email"
	TokenResetPassword TokenType = "reset_password"

	VerifyEmailTTL   = 24 * time.Hour
	ResetPasswordTTL = time.Hour
)

var (
	errTokenType = errors.New("unexpected token type")
	errSubject   = errors.New("invalid subject")
)

// Claims carry the user identity. Role is set on access tokens only.
type Claims struct {
	Email string          `json:"email"`
	Role  models.UserRole `json:"role,omitempty"`
	Type  TokenType       `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errSubject
	}
	return uint(id), nil
}

func ttl(cfg *config.Config, typ TokenType) time.Duration {
	switch typ {
	case TokenAccess:
		return cfg.AccessTokenTTL
	case TokenRefresh:
		return cfg.RefreshTokenTTL
	case TokenVerifyEmail:
		return VerifyEmailTTL
	default:
		return ResetPasswordTTL
	}
}

// GenerateToken signs a token of typ for user with a fresh jti.
func GenerateToken(cfg *config.Config, user *models.User, typ TokenType, now time.Time) (string, *Claims, error) {
	claims := &Claims{
		Email: user.Email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl(cfg, typ))),
		},
	}
	if typ == TokenAccess {
		claims.Role = user.Role
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(cfg.JWTAlgorithm), claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseToken verifies signature, expiry and type. It does not consult the
// revocation list.
func ParseToken(cfg *config.Config, tokenStr string, typ TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{cfg.JWTAlgorithm}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Type != typ {
		return nil, errTokenType
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}
