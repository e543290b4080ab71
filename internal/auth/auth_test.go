package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/config"
	"terroir-backend/internal/database"
	"terroir-backend/internal/middleware"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       strings.Repeat("k", 32),
		JWTAlgorithm:    "HS256",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		AuthPublicURL:   "http://auth.test",
	}
}

type captureMailer struct {
	mu     sync.Mutex
	to     []string
	bodies []string
}

func (m *captureMailer) Send(_ context.Context, to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.bodies = append(m.bodies, body)
	return nil
}

var tokenRe = regexp.MustCompile(`token=(\S+)`)

func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.bodies)
	match := tokenRe.FindStringSubmatch(m.bodies[len(m.bodies)-1])
	require.Len(t, match, 2)
	return match[1]
}

type harness struct {
	db     *gorm.DB
	svc    *Service
	app    *fiber.App
	mailer *captureMailer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := database.OpenTest(t)
	mailer := &captureMailer{}
	svc := NewService(db, testConfig(), mailer)
	svc.cost = bcrypt.MinCost

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	Register(app, svc)
	return &harness{db: db, svc: svc, app: app, mailer: mailer}
}

func (h *harness) createUser(t *testing.T, email, password string, role models.UserRole) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{Email: email, PasswordHash: string(hash), Role: role, EmailVerified: true}
	require.NoError(t, h.db.Create(u).Error)
	return u
}

func (h *harness) do(t *testing.T, method, target, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	return resp
}

func (h *harness) login(t *testing.T, email, password string) LoginResponse {
	t.Helper()
	resp := h.do(t, "POST", "/auth/login", "", LoginRequest{Email: email, Password: password})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestParseTokenChecksTypeSecretAndExpiry(t *testing.T) {
	cfg := testConfig()
	user := &models.User{ID: 7, Email: "chef@example.com", Role: models.RoleAdmin}

	access, claims, err := GenerateToken(cfg, user, TokenAccess, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)

	parsed, err := ParseToken(cfg, access, TokenAccess)
	require.NoError(t, err)
	id, err := parsed.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	_, err = ParseToken(cfg, access, TokenRefresh)
	assert.Error(t, err)

	other := testConfig()
	other.JWTSecret = strings.Repeat("x", 32)
	_, err = ParseToken(other, access, TokenAccess)
	assert.Error(t, err)

	expired, _, err := GenerateToken(cfg, user, TokenAccess, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = ParseToken(cfg, expired, TokenAccess)
	assert.Error(t, err)

	refresh, refreshClaims, err := GenerateToken(cfg, user, TokenRefresh, time.Now())
	require.NoError(t, err)
	assert.Empty(t, refreshClaims.Role)
	assert.NotEqual(t, access, refresh)
}

func TestJWTMiddleware(t *testing.T) {
	cfg := testConfig()
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	api := app.Group("/api", JWTMiddleware(cfg))
	api.Get("/me", func(c *fiber.Ctx) error {
		id, email := Actor(c)
		return c.JSON(fiber.Map{"id": id, "email": email})
	})
	api.Get("/admin", RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	user := &models.User{ID: 3, Email: "cook@example.com", Role: models.RoleUser}
	admin := &models.User{ID: 4, Email: "boss@example.com", Role: models.RoleAdmin}
	userToken, _, _ := GenerateToken(cfg, user, TokenAccess, time.Now())
	adminToken, _, _ := GenerateToken(cfg, admin, TokenAccess, time.Now())
	refreshToken, _, _ := GenerateToken(cfg, user, TokenRefresh, time.Now())

	call := func(path, header string) *http.Response {
		req := httptest.NewRequest("GET", path, nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt", "Bearer " + refreshToken} {
		resp := call("/api/me", header)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, header)
		var body middleware.ErrorBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, apperr.CodeUnauthorized, body.Code)
	}

	resp := call("/api/me", "Bearer "+userToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var me map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "cook@example.com", me["email"])
	assert.EqualValues(t, 3, me["id"])

	assert.Equal(t, fiber.StatusForbidden, call("/api/admin", "Bearer "+userToken).StatusCode)
	assert.Equal(t, fiber.StatusNoContent, call("/api/admin", "Bearer "+adminToken).StatusCode)
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, "POST", "/auth/register", "", RegisterRequest{Email: " Chef@Example.com ", Password: "harissa-2025"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{"chef@example.com"}, h.mailer.to)

	resp = h.do(t, "POST", "/auth/login", "", LoginRequest{Email: "chef@example.com", Password: "harissa-2025"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	token := h.mailer.lastToken(t)
	resp = h.do(t, "GET", "/auth/verify-email?token="+token, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "verified successfully")

	resp = h.do(t, "GET", "/auth/verify-email?token="+token, "", nil)
	body, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "already verified")

	assert.Equal(t, fiber.StatusBadRequest, h.do(t, "GET", "/auth/verify-email?token=garbage", "", nil).StatusCode)

	out := h.login(t, "chef@example.com", "harissa-2025")
	assert.Equal(t, "bearer", out.TokenType)
	assert.Equal(t, 1800, out.ExpiresIn)
	assert.Equal(t, models.RoleUser, out.User.Role)

	resp = h.do(t, "GET", "/auth/me", out.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var me UserOut
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "chef@example.com", me.Email)
	assert.True(t, me.EmailVerified)

	assert.Equal(t, fiber.StatusOK, h.do(t, "HEAD", "/auth/check-token", out.AccessToken, nil).StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, h.do(t, "GET", "/auth/check-token", "", nil).StatusCode)

	resp = h.do(t, "GET", "/auth/sessions", out.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var sessions struct {
		Sessions []SessionOut `json:"sessions"`
		Total    int          `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	assert.Equal(t, 1, sessions.Total)
	assert.True(t, sessions.Sessions[0].Current)
}

func TestRefreshRotatesAccessToken(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "cook@example.com", "couscous-42", models.RoleUser)
	out := h.login(t, "cook@example.com", "couscous-42")

	resp := h.do(t, "POST", "/auth/refresh", "", RefreshRequest{RefreshToken: out.RefreshToken})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var pair TokenPair
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	assert.Equal(t, out.RefreshToken, pair.RefreshToken)
	assert.NotEqual(t, out.AccessToken, pair.AccessToken)

	assert.Equal(t, fiber.StatusUnauthorized, h.do(t, "GET", "/auth/me", out.AccessToken, nil).StatusCode)
	assert.Equal(t, fiber.StatusOK, h.do(t, "GET", "/auth/me", pair.AccessToken, nil).StatusCode)

	assert.Equal(t, fiber.StatusUnauthorized, h.do(t, "POST", "/auth/refresh", "", RefreshRequest{RefreshToken: pair.AccessToken}).StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, h.do(t, "POST", "/auth/refresh", "", RefreshRequest{}).StatusCode)

	resp = h.do(t, "POST", "/auth/logout", pair.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, h.do(t, "GET", "/auth/me", pair.AccessToken, nil).StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, h.do(t, "POST", "/auth/refresh", "", RefreshRequest{RefreshToken: out.RefreshToken}).StatusCode)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "cook@example.com", "couscous-42", models.RoleUser)
	first := h.login(t, "cook@example.com", "couscous-42")
	second := h.login(t, "cook@example.com", "couscous-42")

	resp := h.do(t, "POST", "/auth/logout-all", second.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 2, body["revoked_sessions"])

	assert.Equal(t, fiber.StatusUnauthorized, h.do(t, "GET", "/auth/me", first.AccessToken, nil).StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, h.do(t, "GET", "/auth/me", second.AccessToken, nil).StatusCode)

	var open int64
	require.NoError(t, h.db.Model(&models.UserSession{}).Where("is_revoked = ?", false).Count(&open).Error)
	assert.Zero(t, open)
}

func TestLoginLockout(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "cook@example.com", "couscous-42", models.RoleUser)
	ctx := context.Background()
	now := time.Now()
	h.svc.now = func() time.Time { return now }

	for i := 0; i < MaxLoginAttempts; i++ {
		_, err := h.svc.Login(ctx, LoginRequest{Email: "cook@example.com", Password: "wrong"}, "", "")
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	}

	_, err := h.svc.Login(ctx, LoginRequest{Email: "cook@example.com", Password: "couscous-42"}, "", "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	now = now.Add(LockoutDuration + time.Minute)
	out, err := h.svc.Login(ctx, LoginRequest{Email: "cook@example.com", Password: "couscous-42"}, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, out.AccessToken)

	var u models.User
	require.NoError(t, h.db.Where("email = ?", "cook@example.com").First(&u).Error)
	assert.False(t, u.IsLocked)
	assert.Zero(t, u.LockoutAttempts)

	_, err = h.svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "couscous-42"}, "", "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Register(ctx, RegisterRequest{Email: "not-an-email", Password: "long-enough"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = h.svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = h.svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "long-enough", Role: "owner"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	admin, err := h.svc.Register(ctx, RegisterRequest{Email: "boss@example.com", Password: "long-enough", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.False(t, admin.EmailVerified)

	_, err = h.svc.Register(ctx, RegisterRequest{Email: "boss2@example.com", Password: "long-enough", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = h.svc.Register(ctx, RegisterRequest{Email: "BOSS@example.com", Password: "long-enough"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestForgotAndResetPassword(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "cook@example.com", "couscous-42", models.RoleUser)
	before := h.login(t, "cook@example.com", "couscous-42")

	resp := h.do(t, "POST", "/auth/forgot-password", "", ForgotPasswordRequest{Email: "ghost@example.com"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, h.mailer.bodies)

	resp = h.do(t, "POST", "/auth/forgot-password", "", ForgotPasswordRequest{Email: "cook@example.com"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	token := h.mailer.lastToken(t)
	assert.Contains(t, h.mailer.bodies[0], "http://auth.test/auth/reset-password?token=")

	assert.Equal(t, fiber.StatusBadRequest,
		h.do(t, "POST", "/auth/reset-password", "", ResetPasswordRequest{Token: token, NewPassword: "tiny"}).StatusCode)

	resp = h.do(t, "POST", "/auth/reset-password", "", ResetPasswordRequest{Token: token, NewPassword: "brik-au-thon"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, fiber.StatusBadRequest,
		h.do(t, "POST", "/auth/reset-password", "", ResetPasswordRequest{Token: token, NewPassword: "another-one"}).StatusCode)

	assert.Equal(t, fiber.StatusUnauthorized, h.do(t, "GET", "/auth/me", before.AccessToken, nil).StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized,
		h.do(t, "POST", "/auth/login", "", LoginRequest{Email: "cook@example.com", Password: "couscous-42"}).StatusCode)
	h.login(t, "cook@example.com", "brik-au-thon")
}

func TestAuthenticateTracksSessionActivity(t *testing.T) {
	h := newHarness(t)
	h.createUser(t, "cook@example.com", "couscous-42", models.RoleUser)
	out := h.login(t, "cook@example.com", "couscous-42")

	later := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
	h.svc.now = func() time.Time { return later }
	_, user, err := h.svc.Authenticate(context.Background(), out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "cook@example.com", user.Email)

	var session models.UserSession
	require.NoError(t, h.db.Where("user_id = ?", user.ID).First(&session).Error)
	assert.True(t, session.LastActivity.Equal(later), session.LastActivity)

	// a failed activity write does not reject a valid token
	require.NoError(t, h.db.Migrator().DropTable(&models.UserSession{}))
	_, _, err = h.svc.Authenticate(context.Background(), out.AccessToken)
	assert.NoError(t, err)
}
