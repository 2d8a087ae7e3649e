package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := os.Getenv(envName)
		if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
			value = os.Getenv(alt)
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		// Comma-separated, whitespace trimmed, empties dropped
		var result []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if strings.TrimSpace(c.Store.DataDir) == "" {
		errs = append(errs, "CATALOG_DATA_DIR is required")
	}
	if c.Store.JournalEnabled && strings.TrimSpace(c.Store.JournalPath) == "" {
		errs = append(errs, "CATALOG_JOURNAL_PATH is required when the journal is enabled")
	}
	if c.Store.KeyLength < 4 || c.Store.KeyLength > 32 {
		errs = append(errs, fmt.Sprintf("CATALOG_KEY_LENGTH (%d) must be 4-32", c.Store.KeyLength))
	}
	if c.Store.KeyAttempts <= 0 {
		errs = append(errs, "CATALOG_KEY_ATTEMPTS must be positive")
	}

	if !c.Auth.Disabled && len(c.Auth.AllowedUsers) == 0 {
		errs = append(errs, "AUTH_ALLOWED_USERS is empty; configure at least one user or set AUTH_DISABLED")
	}
	if c.Auth.Disabled && strings.TrimSpace(c.Auth.DevUser) == "" {
		errs = append(errs, "AUTH_DEV_USER is required when AUTH_DISABLED is true")
	}
	if c.Auth.CacheTTL < 0 {
		errs = append(errs, "AUTH_CACHE_TTL must be non-negative")
	}

	switch strings.ToLower(c.Images.Driver) {
	case "fs":
		if c.Images.Dir == "" {
			errs = append(errs, "IMAGES_DIR is required for the fs driver")
		}
	case "s3":
		if c.Images.S3Bucket == "" {
			errs = append(errs, "IMAGES_S3_BUCKET is required for the s3 driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("IMAGES_DRIVER (%q) must be one of: fs, s3", c.Images.Driver))
	}
	if c.Images.MaxFileSize <= 0 {
		errs = append(errs, "IMAGES_MAX_FILE_SIZE must be positive")
	}

	if c.Images.MaxConcurrent <= 0 {
		errs = append(errs, "IMAGES_MAX_CONCURRENT must be positive")
	}
	if (c.Images.S3AccessKeyID == "") != (c.Images.S3SecretAccessKey == "") {
		errs = append(errs, "IMAGES_S3_ACCESS_KEY_ID and IMAGES_S3_SECRET_ACCESS_KEY must be set together")
	}

	if c.Audit.DatabaseURL != "" && c.Audit.MaxConns <= 0 {
		errs = append(errs, "AUDIT_DB_MAX_CONNS must be positive")
	}
	if c.Audit.RetentionDays < 0 {
		errs = append(errs, "AUDIT_RETENTION_DAYS must be non-negative")
	}
	if c.Audit.RetentionDays > 0 && c.Audit.PurgeInterval <= 0 {
		errs = append(errs, "AUDIT_PURGE_INTERVAL must be positive when retention is set")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("METRICS_PATH (%q) must start with /", c.Metrics.Path))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The audit database URL and S3 secret are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Store: {DataDir: %q, Journal: %v}, ", c.Store.DataDir, c.Store.JournalEnabled)
	fmt.Fprintf(&b, "Auth: {Disabled: %v, AllowedUsers: %d}, ", c.Auth.Disabled, len(c.Auth.AllowedUsers))
	if c.Images.S3SecretAccessKey != "" {
		fmt.Fprintf(&b, "Images: {Driver: %q, S3Secret: [MASKED]}, ", c.Images.Driver)
	} else {
		fmt.Fprintf(&b, "Images: {Driver: %q}, ", c.Images.Driver)
	}
	if c.Audit.DatabaseURL != "" {
		b.WriteString("Audit: {URL: [MASKED]}, ")
	} else {
		b.WriteString("Audit: {URL: \"\"}, ")
	}
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
