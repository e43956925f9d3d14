package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/background"
	"github.com/BradenHooton/gatekeeper/internal/config"
	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/metrics"
	middlewareCustom "github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/BradenHooton/gatekeeper/internal/routes"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkgauth "github.com/BradenHooton/gatekeeper/pkg/auth"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/stdlib"
)

// gatedStore is what every account store backend provides
type gatedStore interface {
	services.AccountRepository
	handlers.Pinger
}

// gatedLedger is what every ledger backend provides
type gatedLedger interface {
	services.AttemptLedger
	background.AttemptPruner
	handlers.Pinger
}

// stores bundles the selected backends and how to release them
type stores struct {
	accounts gatedStore
	ledger   gatedLedger
	closers  []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", pkglogger.Err(err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: pkglogger.ParseLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_driver", cfg.Gate.StoreDriver),
		slog.String("ledger_driver", cfg.Gate.LedgerDriver))

	// Initialize storage
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStores(startupCtx, cfg, logger)
	startupCancel()
	if err != nil {
		logger.Error("failed to initialize storage", pkglogger.Err(err))
		os.Exit(1)
	}
	defer st.Close()

	gateConfig := services.GateConfig{
		UserFailThreshold:   cfg.Gate.UserFailThreshold,
		OriginFailThreshold: cfg.Gate.OriginFailThreshold,
		Window:              cfg.Gate.Window(),
		SuspendDuration:     cfg.Gate.SuspendDuration(),
		StoreTimeout:        cfg.Gate.StoreTimeout,
	}
	if err := gateConfig.Validate(); err != nil {
		logger.Error("invalid gate configuration", pkglogger.Err(err))
		os.Exit(1)
	}

	// Initialize security services
	auditLogger := pkglogger.NewAuditLogger(logger)
	appMetrics := metrics.New()

	opts := []services.LoginServiceOption{services.WithDecisionRecorder(appMetrics)}
	if cfg.Email.NotifySuspensions {
		notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 10*time.Second)
		notifier, err := services.NewSESSuspensionNotifier(notifyCtx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		notifyCancel()
		if err != nil {
			logger.Error("failed to initialize suspension notifier", pkglogger.Err(err))
			os.Exit(1)
		}
		opts = append(opts, services.WithSuspensionNotifier(notifier))
	}

	verifier := pkgauth.NewBcryptVerifier(cfg.Auth.BcryptCost)
	loginService := services.NewLoginService(st.accounts, st.ledger, verifier, gateConfig, logger, auditLogger, opts...)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenExpiry)

	// Timing delay for rejected logins
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})

	ipConfig := &pkghttp.IPConfig{
		TrustForwardedFor: cfg.Server.TrustForwardedFor,
		TrustedProxies:    cfg.Server.TrustedProxies,
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(loginService, tokenManager, cfg.Auth.AccessTokenExpiry, timingDelay, ipConfig, logger)
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"store":  st.accounts,
		"ledger": st.ledger,
	}, 2*time.Second, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(cfg.Server.AllowedOrigins))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(appMetrics.Middleware)

	rateLimitConfig := middlewareCustom.DefaultAuthRateLimit()
	rateLimitConfig.RequestsPerMinute = cfg.Server.RequestsPerMinute
	rateLimitConfig.IPConfig = ipConfig

	var metricsHandler http.Handler
	if cfg.Server.MetricsEnabled {
		metricsHandler = appMetrics.Handler()
	}

	// Register routes
	routes.RegisterRoutes(router, authHandler, healthHandler, tokenManager, rateLimitConfig, metricsHandler)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start ledger cleanup; retention covers two windows so no count can change
	cleanupManager := background.NewCleanupManager(st.ledger, logger, cfg.Gate.CleanupInterval, 2*gateConfig.Window)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", pkglogger.Err(err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", pkglogger.Err(err))
		return
	}

	logger.Info("server stopped gracefully")
}

// openStores connects the configured account store and failed attempt ledger
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.Gate.StoreDriver {
	case config.DriverPostgres:
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.closers = append(st.closers, db.Close)

		sqlDB := stdlib.OpenDBFromPool(db.Pool)
		err = database.Migrate(ctx, sqlDB, database.DialectPostgres)
		_ = sqlDB.Close()
		if err != nil {
			st.Close()
			return nil, err
		}

		st.accounts = repositories.NewAccountRepository(db)
		st.ledger = repositories.NewAttemptRepository(db)

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLite.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		st.closers = append(st.closers, func() { _ = db.Close() })

		st.accounts = repositories.NewSQLiteAccountRepository(db)
		st.ledger = repositories.NewSQLiteAttemptRepository(db)

	case config.DriverMemory:
		logger.Warn("using in-memory store; accounts and attempts are lost on restart")
		store := repositories.NewMemoryStore()
		st.accounts = store
		st.ledger = store

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Gate.StoreDriver)
	}

	if cfg.Gate.LedgerDriver == config.DriverRedis {
		client, err := database.NewRedisClient(ctx, &cfg.Redis, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		st.closers = append(st.closers, func() { _ = client.Close() })

		// Keys outlive two windows so pruning never changes a count
		st.ledger = repositories.NewRedisAttemptRepository(client, 2*cfg.Gate.Window())
	}

	return st, nil
}

