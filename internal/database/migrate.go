package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Goose dialect names
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// Migrate applies all pending migrations for the given dialect
func Migrate(ctx context.Context, db *sql.DB, dialect string) error {
	return RunMigrations(ctx, db, dialect, "up")
}

// RunMigrations runs a goose command (up, down, status, version, redo, reset)
// against the embedded migrations for dialect
func RunMigrations(ctx context.Context, db *sql.DB, dialect, command string, args ...string) error {
	var dir string
	switch dialect {
	case DialectPostgres:
		dir = "migrations/postgres"
	case DialectSQLite:
		dir = "migrations/sqlite"
	default:
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(log.New(log.Writer(), "goose: ", 0))

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	return nil
}
