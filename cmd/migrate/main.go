// Package main implements the migrate CLI for managing the VonVault schema
// outside of API startup.
//
// Usage:
//
//	go run ./cmd/migrate up
//	go run ./cmd/migrate down --steps=1
//	go run ./cmd/migrate status
//	go run ./cmd/migrate seed
//
// The tool reads DATABASE_URL from environment variables (or .env file via
// godotenv). "seed" replaces the investment_plans table with the plans of the
// built-in membership catalog.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"vonvault/internal/db"
	"vonvault/internal/membership"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := run(ctx, os.Args[1:], os.Getenv("DATABASE_URL"), os.Stdout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// migrator is the subset of the db package used by the CLI, replaced in tests.
type migrator struct {
	up     func(databaseURL string, logger *slog.Logger) error
	down   func(databaseURL string, steps int, logger *slog.Logger) error
	status func(databaseURL string) (db.MigrationStatus, error)
	seed   func(ctx context.Context, databaseURL string) error
}

var defaultMigrator = migrator{
	up:     db.MigrateUp,
	down:   db.MigrateDown,
	status: db.GetMigrationStatus,
	seed:   seedPlans,
}

var errUsage = errors.New("usage: migrate <up|down|status|seed> [--steps=N]")

func run(ctx context.Context, args []string, databaseURL string, out io.Writer, logger *slog.Logger) error {
	return runWith(ctx, defaultMigrator, args, databaseURL, out, logger)
}

func runWith(ctx context.Context, m migrator, args []string, databaseURL string, out io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	steps := fs.Int("steps", 1, "number of migrations to roll back (down only)")
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}

	switch cmd {
	case "up":
		return m.up(databaseURL, logger)
	case "down":
		return m.down(databaseURL, *steps, logger)
	case "status":
		st, err := m.status(databaseURL)
		if err != nil {
			return err
		}
		if !st.Applied {
			fmt.Fprintln(out, "no migrations applied")
			return nil
		}
		fmt.Fprintf(out, "version: %d\ndirty: %t\n", st.Version, st.Dirty)
		return nil
	case "seed":
		if err := m.seed(ctx, databaseURL); err != nil {
			return err
		}
		logger.Info("investment plans seeded")
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func seedPlans(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	return db.SeedPlans(ctx, pool, membership.DefaultCatalog().AllPlans())
}
