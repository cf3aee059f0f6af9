// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Redis    RedisConfig
	Security SecurityConfig
	Logging  LoggingConfig
	History  HistoryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE
	// and long synchronous imports)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for short API requests (default: 30s).
	// Import and progress routes are exempt.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// StatementTimeout bounds every statement run inside a batch transaction (default: 30s)
	StatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" default:"30s"`
}

// UploadConfig holds CSV import settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of import jobs running at once (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a job slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// BatchSize is the default number of items committed per transaction (default: 500)
	BatchSize int `env:"UPLOAD_BATCH_SIZE" default:"500"`

	// MaxBatchSize caps caller-supplied batch size overrides (default: 5000)
	MaxBatchSize int `env:"UPLOAD_MAX_BATCH_SIZE" default:"5000"`

	// MaxRetries is the number of attempts made per batch before it is failed (default: 3)
	MaxRetries int `env:"UPLOAD_MAX_RETRIES" default:"3"`

	// RetryDelay is the linear backoff base between batch attempts (default: 1s)
	RetryDelay time.Duration `env:"UPLOAD_RETRY_DELAY" default:"1s"`

	// Timeout is the maximum duration for a single import job (default: 30m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"30m"`

	// ProgressRetention is how long finished jobs keep their last progress event
	// for late subscribers (default: 5m)
	ProgressRetention time.Duration `env:"UPLOAD_PROGRESS_RETENTION" default:"5m"`
}

// RedisConfig holds settings for the cross-instance progress channel.
type RedisConfig struct {
	// Enabled turns on Redis fan-out of progress events (default: false)
	Enabled bool `env:"REDIS_ENABLED" default:"false"`

	// Addr is the Redis host:port (default: localhost:6379)
	Addr string `env:"REDIS_ADDR" default:"localhost:6379"`

	// Password is the Redis password (default: empty)
	Password string `env:"REDIS_PASSWORD"`

	// DB is the Redis logical database (default: 0)
	DB int `env:"REDIS_DB" default:"0"`

	// Channel is the pub/sub channel progress events are published on
	Channel string `env:"REDIS_PROGRESS_CHANNEL" default:"csv-upload-progress"`

	// PublishTimeout bounds a single publish call (default: 500ms)
	PublishTimeout time.Duration `env:"REDIS_PUBLISH_TIMEOUT" default:"500ms"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey rejects requests without a valid X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// HistoryConfig holds import job history retention settings.
type HistoryConfig struct {
	// RetentionDays is how long finished job summaries are kept (default: 90)
	RetentionDays int `env:"HISTORY_RETENTION_DAYS" default:"90"`

	// CheckInterval is how often the retention job runs (default: 24h)
	CheckInterval time.Duration `env:"HISTORY_CHECK_INTERVAL" default:"24h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
