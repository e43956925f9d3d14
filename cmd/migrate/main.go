// Command migrate runs schema migrations outside the API process.
//
//	migrate [up|down|status|version|redo|reset]
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/config"
	"github.com/BradenHooton/gatekeeper/internal/database"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	_ "github.com/lib/pq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	timeout := flag.Duration("timeout", 2*time.Minute, "overall migration timeout")
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", pkglogger.Err(err))
		os.Exit(1)
	}

	db, dialect, err := open(cfg)
	if err != nil {
		logger.Error("failed to open database", pkglogger.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := database.RunMigrations(ctx, db, dialect, command, flag.Args()[min(1, flag.NArg()):]...); err != nil {
		logger.Error("migration failed", slog.String("command", command), pkglogger.Err(err))
		os.Exit(1)
	}

	logger.Info("migration finished", slog.String("command", command), slog.String("dialect", dialect))
}

func open(cfg *config.Config) (*sql.DB, string, error) {
	switch cfg.Gate.StoreDriver {
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.Database.DSN())
		return db, database.DialectPostgres, err
	case config.DriverSQLite:
		db, err := sql.Open("sqlite3", "file:"+cfg.SQLite.Path+"?_busy_timeout=5000")
		return db, database.DialectSQLite, err
	default:
		return nil, "", fmt.Errorf("store driver %q has no schema to migrate", cfg.Gate.StoreDriver)
	}
}
