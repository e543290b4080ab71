package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/config"
	"terroir-backend/internal/logging"
	"terroir-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MaxLoginAttempts  = 5
	LockoutDuration   = 15 * time.Minute
	MinPasswordLength = 8
)

var errInvalidCredentials = apperr.Unauthorized("invalid email or password")

// Service owns users, sessions and the revocation list.
type Service struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer Mailer
	now    func() time.Time
	cost   int // bcrypt cost
}

func NewService(db *gorm.DB, cfg *config.Config, mailer Mailer) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Service{db: db, cfg: cfg, mailer: mailer, now: time.Now, cost: bcrypt.DefaultCost}
}

type RegisterRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type UserOut struct {
	ID            uint            `json:"id"`
	Email         string          `json:"email"`
	Role          models.UserRole `json:"role"`
	EmailVerified bool            `json:"email_verified"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toUserOut(u *models.User) UserOut {
	return UserOut{ID: u.ID, Email: u.Email, Role: u.Role, EmailVerified: u.EmailVerified, CreatedAt: u.CreatedAt}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

type LoginResponse struct {
	TokenPair
	User UserOut `json:"user"`
}

type SessionOut struct {
	ID           uint      `json:"id"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	Current      bool      `json:"current"`
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("a valid email is required")
	}
	return email, nil
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// locked reports an active lockout.
func (s *Service) locked(u *models.User) bool {
	return u.IsLocked && u.LockoutUntil != nil && u.LockoutUntil.After(s.now())
}

func (s *Service) userByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user", id)
	}
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	return &u, nil
}

// Register creates an unverified account and mails the verification link.
// An admin account can only be registered while no admin exists.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*UserOut, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, apperr.Validation("role must be user or admin")
	}

	db := s.db.WithContext(ctx)
	if role == models.RoleAdmin {
		var admins int64
		if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
			return nil, apperr.Internal("count admins", err)
		}
		if admins > 0 {
			return nil, apperr.Forbidden("an admin account already exists")
		}
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperr.Internal("check email", err)
	}
	if count > 0 {
		return nil, apperr.Conflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	user := models.User{Email: email, PasswordHash: string(hash), Role: role}
	if err := db.Create(&user).Error; err != nil {
		return nil, apperr.Internal("create user", err)
	}

	token, _, err := GenerateToken(s.cfg, &user, TokenVerifyEmail, s.now())
	if err != nil {
		return nil, apperr.Internal("sign verification token", err)
	}
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", s.cfg.AuthPublicURL, token)
	body := fmt.Sprintf("Thanks for signing up!\n\nVerify your account within 24 hours:\n%s\n\nIf you didn't request this, ignore this email.", link)
	if err := s.mailer.Send(ctx, email, "Terroir - Verify Your Email", body); err != nil {
		logging.Warn(ctx, "verification email failed", "user_id", user.ID, "error", err)
	}

	logging.Info(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	out := toUserOut(&user)
	return &out, nil
}

// VerifyEmail marks the account verified. It reports whether it already was.
func (s *Service) VerifyEmail(ctx context.Context, token string) (bool, error) {
	claims, err := ParseToken(s.cfg, token, TokenVerifyEmail)
	if err != nil {
		return false, apperr.Validation("invalid or expired token")
	}
	id, _ := claims.UserID()
	user, err := s.userByID(ctx, id)
	if err != nil {
		return false, err
	}
	if user.EmailVerified {
		return true, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Update("email_verified", true).Error; err != nil {
		return false, apperr.Internal("verify email", err)
	}
	return false, nil
}

// Login checks credentials and opens a session. MaxLoginAttempts failures
// lock the account for LockoutDuration.
func (s *Service) Login(ctx context.Context, req LoginRequest, ip, userAgent string) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, apperr.Internal("load user", err)
	}

	if s.locked(&user) {
		return nil, apperr.Forbidden("account locked due to too many failed attempts")
	}
	if user.IsLocked {
		user.IsLocked, user.LockoutAttempts, user.LockoutUntil = false, 0, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		user.LockoutAttempts++
		if user.LockoutAttempts >= MaxLoginAttempts {
			until := s.now().Add(LockoutDuration)
			user.IsLocked, user.LockoutUntil = true, &until
			logging.Warn(ctx, "account locked", "user_id", user.ID)
		}
		if err := s.saveLockout(ctx, &user); err != nil {
			return nil, err
		}
		return nil, errInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, apperr.Forbidden("email not verified, please check your inbox")
	}

	user.LockoutAttempts = 0
	if err := s.saveLockout(ctx, &user); err != nil {
		return nil, err
	}

	pair, err := s.openSession(ctx, &user, ip, userAgent)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{TokenPair: *pair, User: toUserOut(&user)}, nil
}

func (s *Service) saveLockout(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Model(u).
		Select("is_locked", "lockout_attempts", "lockout_until").
		Updates(u).Error
	if err != nil {
		return apperr.Internal("update lockout", err)
	}
	return nil
}

func (s *Service) openSession(ctx context.Context, user *models.User, ip, userAgent string) (*TokenPair, error) {
	now := s.now()
	access, accessClaims, err := GenerateToken(s.cfg, user, TokenAccess, now)
	if err != nil {
		return nil, apperr.Internal("sign access token", err)
	}
	refresh, refreshClaims, err := GenerateToken(s.cfg, user, TokenRefresh, now)
	if err != nil {
		return nil, apperr.Internal("sign refresh token", err)
	}

	session := models.UserSession{
		UserID:       user.ID,
		AccessJTI:    accessClaims.ID,
		RefreshJTI:   refreshClaims.ID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		LastActivity: now,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, apperr.Internal("create session", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) isRevoked(ctx context.Context, jti string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.RevokedToken{}).Where("jti = ?", jti).Count(&n).Error; err != nil {
		return false, apperr.Internal("check revocation", err)
	}
	return n > 0, nil
}

func revoke(tx *gorm.DB, jti string, typ TokenType, userID uint, at time.Time) error {
	if jti == "" {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.RevokedToken{
		JTI: jti, TokenType: string(typ), UserID: userID, RevokedAt: at,
	}).Error
}

// Refresh issues a new access token for a live refresh token. The refresh
// token itself is kept.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := ParseToken(s.cfg, refreshToken, TokenRefresh)
	if err != nil {
		return nil, apperr.Unauthorized("invalid or expired refresh token")
	}
	if revoked, err := s.isRevoked(ctx, claims.ID); err != nil {
		return nil, err
	} else if revoked {
		return nil, apperr.Unauthorized("refresh token revoked")
	}

	var session models.UserSession
	if err := s.db.WithContext(ctx).Where("refresh_jti = ? AND is_revoked = ?", claims.ID, false).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized("session not found")
		}
		return nil, apperr.Internal("load session", err)
	}

	id, _ := claims.UserID()
	user, err := s.userByID(ctx, id)
	if err != nil || s.locked(user) {
		return nil, apperr.Unauthorized("user unavailable")
	}

	now := s.now()
	access, accessClaims, err := GenerateToken(s.cfg, user, TokenAccess, now)
	if err != nil {
		return nil, apperr.Internal("sign access token", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := revoke(tx, session.AccessJTI, TokenAccess, user.ID, now); err != nil {
			return err
		}
		return tx.Model(&session).Updates(map[string]any{
			"access_jti":    accessClaims.ID,
			"last_activity": now,
		}).Error
	})
	if err != nil {
		return nil, apperr.Internal("rotate access token", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// Authenticate validates an access token against the revocation list and
// the user's lock state.
func (s *Service) Authenticate(ctx context.Context, tokenStr string) (*Claims, *models.User, error) {
	claims, err := ParseToken(s.cfg, tokenStr, TokenAccess)
	if err != nil {
		return nil, nil, apperr.Unauthorized("invalid or expired token")
	}
	if revoked, err := s.isRevoked(ctx, claims.ID); err != nil {
		return nil, nil, err
	} else if revoked {
		return nil, nil, apperr.Unauthorized("token revoked")
	}

	id, _ := claims.UserID()
	user, err := s.userByID(ctx, id)
	if err != nil || s.locked(user) {
		return nil, nil, apperr.Unauthorized("invalid user")
	}

	if err := s.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("access_jti = ?", claims.ID).
		Update("last_activity", s.now()).Error; err != nil {
		logging.Warn(ctx, "session activity update failed", "user_id", user.ID, "error", err)
	}
	return claims, user, nil
}

// Logout revokes the session that issued the access token.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	id, _ := claims.UserID()
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := revoke(tx, claims.ID, TokenAccess, id, now); err != nil {
			return err
		}
		var session models.UserSession
		err := tx.Where("access_jti = ?", claims.ID).First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return revokeSession(tx, &session, now)
	})
	if err != nil {
		return apperr.Internal("logout", err)
	}
	return nil
}

func revokeSession(tx *gorm.DB, session *models.UserSession, at time.Time) error {
	if err := revoke(tx, session.AccessJTI, TokenAccess, session.UserID, at); err != nil {
		return err
	}
	if err := revoke(tx, session.RefreshJTI, TokenRefresh, session.UserID, at); err != nil {
		return err
	}
	return tx.Model(session).Updates(map[string]any{"is_revoked": true, "revoked_at": at}).Error
}

// LogoutAll revokes every open session of the user and returns how many.
func (s *Service) LogoutAll(ctx context.Context, userID uint) (int, error) {
	var n int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = revokeAll(tx, userID, s.now())
		return err
	})
	if err != nil {
		return 0, apperr.Internal("logout all sessions", err)
	}
	return n, nil
}

func revokeAll(tx *gorm.DB, userID uint, at time.Time) (int, error) {
	var sessions []models.UserSession
	if err := tx.Where("user_id = ? AND is_revoked = ?", userID, false).Find(&sessions).Error; err != nil {
		return 0, err
	}
	for i := range sessions {
		if err := revokeSession(tx, &sessions[i], at); err != nil {
			return 0, err
		}
	}
	return len(sessions), nil
}

// Sessions lists the user's open sessions, newest first.
func (s *Service) Sessions(ctx context.Context, userID uint, currentJTI string) ([]SessionOut, error) {
	var sessions []models.UserSession
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Order("created_at desc, id desc").
		Find(&sessions).Error; err != nil {
		return nil, apperr.Internal("list sessions", err)
	}
	out := make([]SessionOut, 0, len(sessions))
	for _, ss := range sessions {
		out = append(out, SessionOut{
			ID:           ss.ID,
			IPAddress:    ss.IPAddress,
			UserAgent:    ss.UserAgent,
			LastActivity: ss.LastActivity,
			CreatedAt:    ss.CreatedAt,
			Current:      ss.AccessJTI == currentJTI,
		})
	}
	return out, nil
}

// ForgotPassword mails a one-hour reset link. Unknown emails are ignored so
// the response does not reveal which accounts exist.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.Validation("email is required")
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Debug(ctx, "password reset for unknown email")
		return nil
	}
	if err != nil {
		return apperr.Internal("load user", err)
	}

	token, _, err := GenerateToken(s.cfg, &user, TokenResetPassword, s.now())
	if err != nil {
		return apperr.Internal("sign reset token", err)
	}
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", s.cfg.AuthPublicURL, token)
	body := fmt.Sprintf("A password reset was requested for your account.\n\nThe link is valid for one hour:\n%s", link)
	if err := s.mailer.Send(ctx, user.Email, "Terroir - Password Reset", body); err != nil {
		return apperr.Internal("send reset email", err)
	}
	return nil
}

// ResetPassword sets a new password from a single-use reset token, clears
// any lockout and revokes every session.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	claims, err := ParseToken(s.cfg, req.Token, TokenResetPassword)
	if err != nil {
		return apperr.Validation("invalid or expired token")
	}
	if err := checkPassword(req.NewPassword); err != nil {
		return err
	}
	if used, err := s.isRevoked(ctx, claims.ID); err != nil {
		return err
	} else if used {
		return apperr.Validation("reset token already used")
	}

	id, _ := claims.UserID()
	user, err := s.userByID(ctx, id)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cost)
	if err != nil {
		return apperr.Internal("hash password", err)
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := revoke(tx, claims.ID, TokenResetPassword, user.ID, now); err != nil {
			return err
		}
		if err := tx.Model(user).Updates(map[string]any{
			"password_hash":    string(hash),
			"is_locked":        false,
			"lockout_attempts": 0,
			"lockout_until":    nil,
		}).Error; err != nil {
			return err
		}
		_, err := revokeAll(tx, user.ID, now)
		return err
	})
	if err != nil {
		return apperr.Internal("reset password", err)
	}
	logging.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}
