package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"terroir-backend/internal/auth"
	"terroir-backend/internal/config"
	"terroir-backend/internal/database"
	"terroir-backend/internal/logging"
	"terroir-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg := config.MustLoad()
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
	database.Init(cfg, database.AutoMigrateAuth)

	mailer, err := auth.NewMailer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("[FATAL] mailer: %v", err)
	}
	svc := auth.NewService(database.DB, cfg, mailer)

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler,
		AppName:      "terroir-auth",
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.HeaderRequestID,
		AllowMethods: "GET,HEAD,POST,OPTIONS",
	}))
	app.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateLimitBurst))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "terroir-auth"})
	})

	auth.Register(app, svc)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Println("Auth server listening on port", cfg.AuthHTTPPort)
	if err := app.Listen(":" + cfg.AuthHTTPPort); err != nil {
		log.Fatal(err)
	}
}
