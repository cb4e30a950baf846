// Package config provides centralized configuration management for the
// decoding service. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Decode   DecodeConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Storage  StorageConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envDefault:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, decode responses stream)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Persisting decoded rows is
	// disabled when it is empty. DB_URL is accepted as an alternative.
	URL string `env:"DATABASE_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" envDefault:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" envDefault:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// ConnectRetries is how many times to retry the first connection (default: 3)
	ConnectRetries int `env:"DB_CONNECT_RETRIES" envDefault:"3"`

	// ConnectRetryInterval is the wait between connection attempts (default: 5s)
	ConnectRetryInterval time.Duration `env:"DB_CONNECT_RETRY_INTERVAL" envDefault:"5s"`

	// AutoMigrate applies pending migrations on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool { return c.URL != "" }

// DecodeConfig holds flat-file decoding limits.
type DecodeConfig struct {
	// MaxFileSize is the maximum allowed input size in bytes (default: 100MB)
	MaxFileSize int64 `env:"DECODE_MAX_FILE_SIZE" envDefault:"104857600"`

	// MaxLines stops a decode after this many lines, 0 means unlimited (default: 0)
	MaxLines int `env:"DECODE_MAX_LINES" envDefault:"0"`

	// MaxLineLength marks longer lines as unresolvable (default: 1MB)
	MaxLineLength int `env:"DECODE_MAX_LINE_LENGTH" envDefault:"1048576"`

	// MaxConcurrent is the maximum number of parallel decodes (default: 5)
	MaxConcurrent int `env:"DECODE_MAX_CONCURRENT" envDefault:"5"`

	// MaxWaitTime is how long to wait for a decode slot (default: 30s)
	MaxWaitTime time.Duration `env:"DECODE_MAX_WAIT_TIME" envDefault:"30s"`

	// BatchSize is the number of records copied per database batch (default: 1000)
	BatchSize int `env:"DECODE_BATCH_SIZE" envDefault:"1000"`

	// Timeout is the maximum duration for a single decode (default: 10m)
	Timeout time.Duration `env:"DECODE_TIMEOUT" envDefault:"10m"`

	// Encoding is the default input character set (default: utf-8)
	Encoding string `env:"DECODE_ENCODING" envDefault:"utf-8"`

	// PreviewRows caps the records returned inline by the API (default: 100)
	PreviewRows int `env:"DECODE_PREVIEW_ROWS" envDefault:"100"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"100"`

	// DecodeLimit is requests per minute for decode endpoints (default: 10)
	DecodeLimit int `env:"RATE_LIMIT_DECODE" envDefault:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys is a comma-separated list of accepted X-API-Key values
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey rejects API requests without a valid key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" envDefault:"false"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" envDefault:"true"`
}

// StorageConfig holds object storage settings for S3 sources.
type StorageConfig struct {
	// Bucket is the default bucket for s3:// sources without one
	Bucket string `env:"S3_BUCKET"`

	// Region is the AWS region (default: us-east-1)
	Region string `env:"S3_REGION" envDefault:"us-east-1"`

	// AccessKeyID and SecretAccessKey are optional static credentials
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`

	// Endpoint overrides the S3 endpoint, e.g. for MinIO
	Endpoint string `env:"S3_ENDPOINT"`

	// ForcePathStyle uses path-style addressing (default: false)
	ForcePathStyle bool `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
}

// Enabled reports whether S3 sources can be used.
func (c *StorageConfig) Enabled() bool { return c.Bucket != "" || c.Endpoint != "" }

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
