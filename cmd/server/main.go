package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"terroir-backend/internal/audit"
	"terroir-backend/internal/auth"
	"terroir-backend/internal/config"
	"terroir-backend/internal/database"
	"terroir-backend/internal/forecast"
	"terroir-backend/internal/intelligence"
	"terroir-backend/internal/logging"
	"terroir-backend/internal/menu"
	"terroir-backend/internal/middleware"
	"terroir-backend/internal/models"
	"terroir-backend/internal/records"
	"terroir-backend/internal/waste"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg := config.MustLoad()
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
	database.Init(cfg, database.AutoMigrate)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler,
		AppName:      "terroir-api",
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.Metrics())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.HeaderRequestID,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "terroir-api"})
	})
	app.Get("/metrics", middleware.MetricsHandler())

	db := database.DB

	// Protected
	api := app.Group("/api", middleware.RateLimit(cfg.RateLimit, cfg.RateLimitBurst), auth.JWTMiddleware(cfg))

	records.Register(api)
	forecast.Register(api, forecast.NewEngine(db))
	menu.Register(api, menu.NewEngine(db))
	waste.Register(api, waste.NewAnalyzer(db))
	intelligence.Register(api, intelligence.NewService(db))

	// Audit logs
	api.Get("/audit-logs", auth.RequireRole(models.RoleAdmin), audit.ListAuditLogsHandler())

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Println("API server listening on port", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
