// Package config provides centralized configuration management for the catalogue server.
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
	Store    StoreConfig
	Auth     AuthConfig
	Images   ImagesConfig
	Audit    AuditConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig holds settings for the flat-file table store.
type StoreConfig struct {
	// DataDir is the directory holding the table CSV files.
	DataDir string `env:"CATALOG_DATA_DIR" default:"public/docs"`

	// JournalEnabled turns on the write-ahead journal used for crash recovery.
	JournalEnabled bool `env:"CATALOG_JOURNAL_ENABLED" default:"true"`

	// JournalPath is the bbolt file backing the journal.
	JournalPath string `env:"CATALOG_JOURNAL_PATH" default:"catalog.journal"`

	// KeyLength is the length of generated edition keys (default: 6)
	KeyLength int `env:"CATALOG_KEY_LENGTH" default:"6"`

	// KeyAttempts bounds regeneration when a generated key is already taken.
	KeyAttempts int `env:"CATALOG_KEY_ATTEMPTS" default:"10"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Disabled skips token validation and acts as DevUser. Local development only.
	Disabled bool   `env:"AUTH_DISABLED" default:"false"`
	DevUser  string `env:"AUTH_DEV_USER" default:"dev"`

	// AllowedUsers are GitHub logins permitted to edit (case-insensitive).
	AllowedUsers []string `env:"AUTH_ALLOWED_USERS"`

	GitHubAPIURL string        `env:"AUTH_GITHUB_API_URL" default:"https://api.github.com"`
	CacheTTL     time.Duration `env:"AUTH_CACHE_TTL" default:"5m"`
}

// ImagesConfig holds title page / frontispiece image storage settings.
type ImagesConfig struct {
	// Driver selects the backend: fs or s3 (default: fs)
	Driver string `env:"IMAGES_DRIVER" default:"fs"`

	Dir       string `env:"IMAGES_DIR" default:"public/tps"`
	URLPrefix string `env:"IMAGES_URL_PREFIX" default:"/tps/"`

	// MaxFileSize is the maximum upload size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMAGES_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent bounds parallel uploads; further uploads wait up to UploadWait.
	MaxConcurrent int           `env:"IMAGES_MAX_CONCURRENT" default:"4"`
	UploadWait    time.Duration `env:"IMAGES_UPLOAD_WAIT" default:"30s"`

	S3Bucket    string `env:"IMAGES_S3_BUCKET"`
	S3Region    string `env:"IMAGES_S3_REGION" default:"us-east-1"`
	S3Endpoint  string `env:"IMAGES_S3_ENDPOINT"`
	S3PathStyle bool   `env:"IMAGES_S3_PATH_STYLE" default:"false"`

	// Static credentials for MinIO and similar. Empty uses the AWS default chain.
	S3AccessKeyID     string `env:"IMAGES_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"IMAGES_S3_SECRET_ACCESS_KEY"`
}

// AuditConfig holds the optional Postgres audit sink settings.
type AuditConfig struct {
	// DatabaseURL enables the Postgres sink when set.
	// Supports both AUDIT_DATABASE_URL and DATABASE_URL.
	DatabaseURL string `env:"AUDIT_DATABASE_URL" envAlt:"DATABASE_URL"`

	MaxConns int `env:"AUDIT_DB_MAX_CONNS" default:"4"`

	// RetentionDays purges older entries; 0 keeps everything.
	RetentionDays int           `env:"AUDIT_RETENTION_DAYS" default:"0"`
	PurgeInterval time.Duration `env:"AUDIT_PURGE_INTERVAL" default:"24h"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File, when set, receives a copy of every log line.
	File string `env:"LOG_FILE"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
