package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

type Config struct {
	Database DatabaseConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Server   ServerConfig
	Gate     GateConfig
	Auth     AuthConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string        `env:"DB_HOST" envDefault:"localhost"`
	Port              int           `env:"DB_PORT" envDefault:"5432"`
	User              string        `env:"DB_USER" envDefault:"postgres"`
	Password          string        `env:"DB_PASSWORD"`
	Name              string        `env:"DB_NAME" envDefault:"gatekeeper"`
	SSLMode           string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns          int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	MinConns          int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"5m"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"1m"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:"gatekeeper.db"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type ServerConfig struct {
	Port              string        `env:"PORT" envDefault:"3000"`
	Env               string        `env:"ENV" envDefault:"development"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	ReadTimeout       time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	TrustForwardedFor bool          `env:"TRUST_FORWARDED_FOR" envDefault:"true"`
	TrustedProxies    []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	RequestsPerMinute int           `env:"AUTH_REQUESTS_PER_MINUTE" envDefault:"60"`
	MetricsEnabled    bool          `env:"METRICS_ENABLED" envDefault:"true"`
}

// GateConfig holds the brute-force protection thresholds
type GateConfig struct {
	UserFailThreshold   int           `env:"USER_THRESHOLD" envDefault:"5"`
	OriginFailThreshold int           `env:"IP_THRESHOLD" envDefault:"100"`
	WindowMinutes       int           `env:"WINDOW_MINUTES" envDefault:"5"`
	SuspendMinutes      int           `env:"SUSPEND_MINUTES" envDefault:"15"`
	StoreTimeout        time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
	StoreDriver         string        `env:"STORE_DRIVER" envDefault:"postgres"`
	LedgerDriver        string        `env:"LEDGER_DRIVER"`
	CleanupInterval     time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
}

type AuthConfig struct {
	JWTSecret            string        `env:"JWT_SECRET"`
	JWTIssuer            string        `env:"JWT_ISSUER" envDefault:"gatekeeper"`
	AccessTokenExpiry    time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	BcryptCost           int           `env:"BCRYPT_COST" envDefault:"12"`
	TimingDelayBaseMs    int           `env:"TIMING_DELAY_BASE_MS" envDefault:"100"`
	TimingDelayRandomMs  int           `env:"TIMING_DELAY_RANDOM_MS" envDefault:"50"`
	TimingDelayOnSuccess bool          `env:"TIMING_DELAY_ON_SUCCESS" envDefault:"false"`
}

type EmailConfig struct {
	NotifySuspensions bool   `env:"NOTIFY_SUSPENSIONS" envDefault:"false"`
	AWSRegion         string `env:"AWS_REGION" envDefault:"us-east-1"`
	FromAddress       string `env:"EMAIL_FROM"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.Gate.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.Gate.StoreDriver))
	cfg.Gate.LedgerDriver = strings.ToLower(strings.TrimSpace(cfg.Gate.LedgerDriver))
	if cfg.Gate.LedgerDriver == "" {
		cfg.Gate.LedgerDriver = cfg.Gate.StoreDriver
	}

	if len(cfg.Server.AllowedOrigins) == 0 && cfg.Server.Env != "production" {
		cfg.Server.AllowedOrigins = developmentOrigins()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded configuration for values that would make the
// gate misbehave
func (c *Config) Validate() error {
	if err := c.Gate.Validate(); err != nil {
		return err
	}

	if c.Gate.StoreDriver == DriverPostgres && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required when STORE_DRIVER=postgres")
	}

	if err := validateJWTSecret(c.Auth.JWTSecret, c.Server.Env); err != nil {
		return err
	}

	if c.Email.NotifySuspensions && c.Email.FromAddress == "" {
		return fmt.Errorf("EMAIL_FROM is required when NOTIFY_SUSPENSIONS=true")
	}

	return nil
}

// Validate checks thresholds and storage selection
func (g GateConfig) Validate() error {
	positives := []struct {
		name  string
		value int
	}{
		{"USER_THRESHOLD", g.UserFailThreshold},
		{"IP_THRESHOLD", g.OriginFailThreshold},
		{"WINDOW_MINUTES", g.WindowMinutes},
		{"SUSPEND_MINUTES", g.SuspendMinutes},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be a positive integer (got %d)", p.name, p.value)
		}
	}

	if g.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}

	switch g.StoreDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", g.StoreDriver)
	}

	switch g.LedgerDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
		if g.LedgerDriver != g.StoreDriver {
			return fmt.Errorf("LEDGER_DRIVER %q must match STORE_DRIVER or be redis", g.LedgerDriver)
		}
	case DriverRedis:
	default:
		return fmt.Errorf("unsupported LEDGER_DRIVER %q", g.LedgerDriver)
	}

	return nil
}

// Window returns the lookback window as a duration
func (g GateConfig) Window() time.Duration {
	return time.Duration(g.WindowMinutes) * time.Minute
}

// SuspendDuration returns the suspension length as a duration
func (g GateConfig) SuspendDuration() time.Duration {
	return time.Duration(g.SuspendMinutes) * time.Minute
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, environment string) error {
	if secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	minLength := 16 // Development minimum
	if environment == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, environment, len(secret))
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func developmentOrigins() []string {
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
