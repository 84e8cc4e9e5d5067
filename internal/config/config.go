package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	CORS      CORSConfig
	Redis     RedisConfig
	Events    EventsConfig
	Billing   BillingConfig
	Sweep     SweepConfig
	RateLimit RateLimitConfig
	Analytics AnalyticsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver        string
	AutoMigrate   bool
	MigrationsDir string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	PoolMin  int
	PoolMax  int
}

// DSN builds the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// RedisConfig configures the optional redis event sink. An empty URL disables it.
type RedisConfig struct {
	URL     string
	Channel string
}

// EventsConfig configures the asynchronous event dispatcher.
type EventsConfig struct {
	BufferSize  int
	MaxAttempts int
	RetryDelay  time.Duration
}

// BillingConfig configures late fee assessment.
type BillingConfig struct {
	GraceDays          int
	LateFeeBasisPoints int64
}

// SweepConfig configures the background expiry sweep.
type SweepConfig struct {
	Enabled  bool
	Schedule string
}

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// AnalyticsConfig configures the read-only analytics snapshot.
type AnalyticsConfig struct {
	ZScoreThreshold float64
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("STORE_AUTO_MIGRATE", true)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "propease")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("REDIS_CHANNEL", "propease.events")
	v.SetDefault("EVENTS_BUFFER_SIZE", 256)
	v.SetDefault("EVENTS_MAX_ATTEMPTS", 3)
	v.SetDefault("EVENTS_RETRY_DELAY", "200ms")
	v.SetDefault("BILLING_GRACE_DAYS", 5)
	v.SetDefault("BILLING_LATE_FEE_BPS", 500)
	v.SetDefault("SWEEP_ENABLED", true)
	v.SetDefault("SWEEP_SCHEDULE", "@every 1h")
	v.SetDefault("RATE_LIMIT_RPS", 20.0)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("ANALYTICS_Z_THRESHOLD", 1.5)

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(v.GetString("STORE_DRIVER")),
			AutoMigrate:   v.GetBool("STORE_AUTO_MIGRATE"),
			MigrationsDir: v.GetString("STORE_MIGRATIONS_DIR"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Redis: RedisConfig{
			URL:     v.GetString("REDIS_URL"),
			Channel: v.GetString("REDIS_CHANNEL"),
		},
		Events: EventsConfig{
			BufferSize:  v.GetInt("EVENTS_BUFFER_SIZE"),
			MaxAttempts: v.GetInt("EVENTS_MAX_ATTEMPTS"),
			RetryDelay:  v.GetDuration("EVENTS_RETRY_DELAY"),
		},
		Billing: BillingConfig{
			GraceDays:          v.GetInt("BILLING_GRACE_DAYS"),
			LateFeeBasisPoints: v.GetInt64("BILLING_LATE_FEE_BPS"),
		},
		Sweep: SweepConfig{
			Enabled:  v.GetBool("SWEEP_ENABLED"),
			Schedule: v.GetString("SWEEP_SCHEDULE"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:             v.GetInt("RATE_LIMIT_BURST"),
		},
		Analytics: AnalyticsConfig{
			ZScoreThreshold: v.GetFloat64("ANALYTICS_Z_THRESHOLD"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store.Driver)
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	if c.Events.BufferSize < 1 {
		return fmt.Errorf("EVENTS_BUFFER_SIZE must be at least 1")
	}
	if c.Events.MaxAttempts < 1 {
		return fmt.Errorf("EVENTS_MAX_ATTEMPTS must be at least 1")
	}

	if c.Billing.GraceDays < 0 {
		return fmt.Errorf("BILLING_GRACE_DAYS must be non-negative")
	}
	if c.Billing.LateFeeBasisPoints < 0 || c.Billing.LateFeeBasisPoints > 10000 {
		return fmt.Errorf("BILLING_LATE_FEE_BPS must be between 0 and 10000")
	}

	if c.Sweep.Enabled && c.Sweep.Schedule == "" {
		return fmt.Errorf("SWEEP_SCHEDULE is required when SWEEP_ENABLED is set")
	}

	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1")
	}

	return nil
}

func (d DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if d.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if d.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if d.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if d.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if d.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if d.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if d.PoolMin > d.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
