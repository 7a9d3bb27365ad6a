package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: access audit goes to the log when nil.
	Redis         RedisConfig
	StoreAPI      StoreAPIConfig
	Session       SessionConfig
	Checkout      CheckoutConfig
	Audit         AuditConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// RedisConfig enables the exchange rate shared between replicas.
type RedisConfig struct {
	URL     string // empty disables sharing
	RateKey string
}

// Enabled reports whether a Redis URL is configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// StoreAPIConfig points at the store backend REST API.
type StoreAPIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// SessionConfig holds session token verification and cookie settings.
type SessionConfig struct {
	JWTSecret    string
	JWTIssuer    string // checked when set
	CookieSecure bool
	CookieMaxAge time.Duration
	GuardMode    string // redirect or fallback
}

// PaymentsConfig switches individual payment methods on or off.
type PaymentsConfig struct {
	Zelle         bool
	PagoMovil     bool
	Transferencia bool
}

// PickupConfig is the store location shown for in-store pickup.
type PickupConfig struct {
	Address string
	Hours   string
	Phone   string
}

// CheckoutConfig holds checkout wizard settings.
type CheckoutConfig struct {
	Payments        PaymentsConfig
	Pickup          PickupConfig
	ExchangeRateTTL time.Duration
	SessionTTL      time.Duration
	MaxSessions     int
	CleanupInterval time.Duration
}

// AuditConfig sizes the asynchronous access audit pipeline.
type AuditConfig struct {
	BufferSize        int
	Workers           int
	Retention         time.Duration // 0 keeps events forever
	RetentionSchedule string        // cron expression or descriptor, e.g. "@hourly"
}

// CORSConfig lists the storefront origins allowed to call the gateway.
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			RateKey: getEnv("REDIS_RATE_KEY", "storefront:exchange-rate"),
		},
		StoreAPI: StoreAPIConfig{
			BaseURL:    getEnv("STORE_API_URL", "http://localhost:4000/api"),
			Timeout:    getEnvAsDuration("STORE_API_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvAsInt("STORE_API_MAX_RETRIES", 2),
			RetryDelay: getEnvAsDuration("STORE_API_RETRY_DELAY", 200*time.Millisecond),
		},
		Session: SessionConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			JWTIssuer:    getEnv("JWT_ISSUER", ""),
			CookieSecure: getEnvAsBool("COOKIE_SECURE", false),
			CookieMaxAge: getEnvAsDuration("COOKIE_MAX_AGE", 24*time.Hour),
			GuardMode:    getEnv("GUARD_MODE", "redirect"),
		},
		Checkout: CheckoutConfig{
			Payments: PaymentsConfig{
				Zelle:         getEnvAsBool("PAYMENT_ZELLE_ENABLED", true),
				PagoMovil:     getEnvAsBool("PAYMENT_PAGOMOVIL_ENABLED", true),
				Transferencia: getEnvAsBool("PAYMENT_TRANSFERENCIA_ENABLED", true),
			},
			Pickup: PickupConfig{
				Address: getEnv("PICKUP_ADDRESS", ""),
				Hours:   getEnv("PICKUP_HOURS", ""),
				Phone:   getEnv("PICKUP_PHONE", ""),
			},
			ExchangeRateTTL: getEnvAsDuration("EXCHANGE_RATE_TTL", 5*time.Minute),
			SessionTTL:      getEnvAsDuration("CHECKOUT_SESSION_TTL", 2*time.Hour),
			MaxSessions:     getEnvAsInt("CHECKOUT_MAX_SESSIONS", 10000),
			CleanupInterval: getEnvAsDuration("CHECKOUT_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Audit: AuditConfig{
			BufferSize:        getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			Workers:           getEnvAsInt("AUDIT_WORKERS", 2),
			Retention:         getEnvAsDuration("AUDIT_RETENTION", 90*24*time.Hour),
			RetentionSchedule: getEnv("AUDIT_RETENTION_SCHEDULE", "@hourly"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database is optional, but DB_* settings must be complete when used
	if c.Database != nil && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Redis.Enabled() {
		if _, err := redis.ParseURL(c.Redis.URL); err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
	}

	u, err := url.Parse(c.StoreAPI.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("store API URL must be an absolute URL: %q", c.StoreAPI.BaseURL)
	}

	if c.IsProduction() && c.Session.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required in production")
	}

	if c.Audit.Retention > 0 {
		if _, err := cron.ParseStandard(c.Audit.RetentionSchedule); err != nil {
			return fmt.Errorf("invalid audit retention schedule %q: %w", c.Audit.RetentionSchedule, err)
		}
	}

	p := c.Checkout.Payments
	if !p.Zelle && !p.PagoMovil && !p.Transferencia {
		return fmt.Errorf("at least one payment method must be enabled")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Returns nil when neither DATABASE_URL nor DB_HOST is set.
func loadDatabaseConfig() *DatabaseConfig {
	pool := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		pool.ConnectionString = dbURL
		return &pool
	}
	host := getEnv("DB_HOST", "")
	if host == "" {
		return nil
	}
	pool.Host = host
	pool.Port = getEnvAsInt("DB_PORT", 5432)
	pool.User = getEnv("DB_USER", "")
	pool.Password = getEnv("DB_PASSWORD", "")
	pool.Database = getEnv("DB_NAME", "")
	pool.SSLMode = getEnv("DB_SSLMODE", "disable")
	return &pool
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
