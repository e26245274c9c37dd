package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"competitor-knowledge/internal/shared/telemetry"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationLogger routes goose output through telemetry.
type migrationLogger struct{}

func (migrationLogger) Printf(format string, v ...interface{}) {
	telemetry.Info("db.migrate", map[string]any{"message": fmt.Sprintf(format, v...)})
}

func (migrationLogger) Fatalf(format string, v ...interface{}) {
	telemetry.Error("db.migrate", map[string]any{"message": fmt.Sprintf(format, v...)})
}

// RunMigrations applies the embedded products, analyses and price_history migrations.
// A nil database is a no-op so in-memory dev runs can call it unconditionally.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(migrationLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, database, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, database)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	telemetry.Info("db.migrate.done", map[string]any{"version": version})
	return nil
}
