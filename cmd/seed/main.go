package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"terroir-backend/internal/config"
	"terroir-backend/internal/database"
	"terroir-backend/internal/logging"
	"terroir-backend/internal/seed"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "read .env:", err)
		os.Exit(1)
	}

	if err := rootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:  "terroir-seed",
		Usage: "Load the terroir dataset into the record store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, logging.SetLevel(cmd.String("log-level"))
		},
		Commands: []*cli.Command{
			applyCmd(),
			validateCmd(),
			dumpCmd(),
		},
	}
}

var fileFlag = &cli.StringFlag{
	Name:    "file",
	Aliases: []string{"f"},
	Usage:   "YAML dataset to load; the built-in dataset when empty",
}

func loadDataset(path string) (*seed.Dataset, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.LoadFile(path)
}

func applyCmd() *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Migrate the schema and insert missing rows from a dataset",
		Description: `Rows are matched by natural key (season, supplier, ingredient and dish
name, nationality code, guest email) and existing rows are left untouched,
so the command can be repeated safely. Waste log and reservation dates are
relative to today.

  terroir-seed apply
  terroir-seed apply --file terroir.yaml --reset`,
		Flags: []cli.Flag{
			fileFlag,
			&cli.StringFlag{
				Name:    "driver",
				Value:   "postgres",
				Usage:   "database driver (postgres, sqlite)",
				Sources: cli.EnvVars("DATABASE_DRIVER"),
			},
			&cli.StringFlag{
				Name:     "dsn",
				Usage:    "database connection string",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_DSN"),
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "delete every existing record before loading",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ds, err := loadDataset(cmd.String("file"))
			if err != nil {
				return err
			}

			db, err := database.Open(&config.Config{
				DatabaseDriver: cmd.String("driver"),
				DatabaseDSN:    cmd.String("dsn"),
			})
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			if cmd.Bool("reset") {
				logging.Warn(ctx, "deleting existing records")
				if err := seed.Reset(ctx, db); err != nil {
					return err
				}
			}

			sum, err := seed.Apply(ctx, db, ds, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("apply dataset: %w", err)
			}
			logging.Info(ctx, "dataset applied",
				"created", sum.Total(),
				"seasons", sum.Seasons,
				"nationalities", sum.Nationalities,
				"suppliers", sum.Suppliers,
				"ingredients", sum.Ingredients,
				"dishes", sum.Dishes,
				"guests", sum.Guests,
				"reservations", sum.Reservations,
				"disruptions", sum.Disruptions,
				"waste_logs", sum.WasteLogs)
			return nil
		},
	}
}

func validateCmd() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check a dataset without touching the database",
		Flags: []cli.Flag{fileFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ds, err := loadDataset(cmd.String("file"))
			if err != nil {
				return err
			}
			logging.Info(ctx, "dataset is valid",
				"ingredients", len(ds.Ingredients),
				"dishes", len(ds.Dishes),
				"nationalities", len(ds.Nationalities))
			return nil
		},
	}
}

func dumpCmd() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "Print the built-in dataset as a starting point for a custom one",
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, err := cmd.Root().Writer.Write(seed.DefaultYAML())
			return err
		},
	}
}
