package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	"terroir-backend/internal/config"
	"terroir-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects with the configured driver and applies pool settings.
func Open(cfg *config.Config) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return nil, fmt.Errorf("database DSN must not be empty")
	}

	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres", "":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// AutoMigrate creates or updates the record store tables.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database handle is nil")
	}
	return db.AutoMigrate(
		&models.Nationality{},
		&models.Guest{},
		&models.Supplier{},
		&models.Season{},
		&models.Ingredient{},
		&models.Dish{},
		&models.WasteLog{},
		&models.DisruptionEvent{},
		&models.Reservation{},
		&models.AuditLog{},
	)
}

// AutoMigrateAuth creates the auth service tables.
func AutoMigrateAuth(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database handle is nil")
	}
	return db.AutoMigrate(
		&models.User{},
		&models.UserSession{},
		&models.RevokedToken{},
	)
}

// Init opens the database, runs migrate and installs the handle as DB.
func Init(cfg *config.Config, migrate func(*gorm.DB) error) {
	db, err := Open(cfg)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}
	if err := migrate(db); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}
	DB = db
	log.Println("Database connected, migration complete.")
}
