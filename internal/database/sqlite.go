package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens (or creates) the sqlite database at path and applies
// migrations. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	if path == ":memory:" {
		dsn = "file::memory:?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}

	// sqlite allows a single writer; one connection also keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping sqlite database: %w", err)
	}

	if err := Migrate(ctx, db, DialectSQLite); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite database ready", slog.String("path", path))

	return db, nil
}
