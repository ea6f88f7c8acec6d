// Package config provides centralized configuration management. Settings come
// from environment variables with defaults applied and validation run on
// startup so misconfiguration fails fast.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Ingest        IngestConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RateLimitPerSecond of 0 disables the limiter.
	RateLimitPerSecond int `env:"SERVER_RATE_LIMIT_PER_SECOND" default:"0"`
	RateLimitBurst     int `env:"SERVER_RATE_LIMIT_BURST" default:"0"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"25"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"5"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"5m"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"10m"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string { return d.URL }

// IngestConfig holds upload processing settings.
type IngestConfig struct {
	// MaxUploadBytes caps the request body of file uploads (default 50 MiB).
	MaxUploadBytes int64 `env:"INGEST_MAX_UPLOAD_BYTES" default:"52428800"`
}

// ObservabilityConfig holds metrics settings.
type ObservabilityConfig struct {
	MetricsEnabled bool `env:"METRICS_ENABLED" default:"true"`
}

// ProfilingConfig holds pprof settings.
type ProfilingConfig struct {
	Enabled bool `env:"PPROF_ENABLED" default:"false"`
	Port    int  `env:"PPROF_PORT" default:"6060"`
}

// Validate checks cross-field constraints the tag loader cannot express.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns)
	}
	if c.Ingest.MaxUploadBytes <= 0 {
		return fmt.Errorf("INGEST_MAX_UPLOAD_BYTES must be positive")
	}
	if c.Server.RateLimitPerSecond > 0 && c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("SERVER_RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}
	return nil
}
