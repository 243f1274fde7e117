package main

// Run database migrations:
//   go run ./cmd/migrate            # apply pending
//   go run ./cmd/migrate --command status
//   go run ./cmd/migrate --command down

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"registrar-backend/internal/shared/config"
	"registrar-backend/internal/shared/storage/db"
	"registrar-backend/internal/shared/telemetry"
)

func main() {
	command := pflag.StringP("command", "c", "up", "migration command: up, down or status")
	dsn := pflag.String("database-url", "", "overrides DATABASE_URL")
	pflag.Parse()

	cfg := config.Load()
	telemetry.Init(cfg.Env)
	defer telemetry.Sync()

	url := cfg.DatabaseURL
	if strings.TrimSpace(*dsn) != "" {
		url = *dsn
	}
	if strings.TrimSpace(url) == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(2)
	}

	run, err := migration(*command)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		pflag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, url, opts)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := run(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": *command, "error": err})
		os.Exit(1)
	}
	telemetry.Info("migrate.done", map[string]any{"command": *command})
}

func migration(command string) (func(context.Context, *sql.DB) error, error) {
	switch strings.ToLower(strings.TrimSpace(command)) {
	case "up":
		return db.RunMigrations, nil
	case "down":
		return db.RollbackLast, nil
	case "status":
		return db.MigrationStatus, nil
	default:
		return nil, fmt.Errorf("unknown command %q", command)
	}
}
