package models

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

func ValidRole(r UserRole) bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID              uint     `gorm:"primaryKey"`
	Email           string   `gorm:"size:150;uniqueIndex;not null"`
	PasswordHash    string   `gorm:"size:255;not null"`
	Role            UserRole `gorm:"size:20;not null;default:user;index"`
	EmailVerified   bool     `gorm:"not null;default:false;index"`
	IsLocked        bool     `gorm:"not null;default:false"`
	LockoutAttempts int      `gorm:"not null;default:0"`
	LockoutUntil    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UserSession ties an access/refresh token pair to the login that issued it.
type UserSession struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index;not null"`
	User         User   `gorm:"foreignKey:UserID"`
	AccessJTI    string `gorm:"size:64;uniqueIndex"`
	RefreshJTI   string `gorm:"size:64;uniqueIndex"`
	IPAddress    string `gorm:"size:64"`
	UserAgent    string `gorm:"size:500"`
	LastActivity time.Time
	IsRevoked    bool `gorm:"not null;default:false"`
	RevokedAt    *time.Time
	CreatedAt    time.Time
}

type RevokedToken struct {
	ID        uint   `gorm:"primaryKey"`
	JTI       string `gorm:"size:64;uniqueIndex;not null"`
	TokenType string `gorm:"size:20;not null"` // access | refresh
	UserID    uint   `gorm:"index;not null"`
	RevokedAt time.Time
}
