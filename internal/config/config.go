// Package config loads and validates the API server configuration. Values
// come from environment variables, with an optional koanf-loaded YAML file
// supplying lower-precedence overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis (rate limiting; optional, falls back to in-memory)
	RedisAddr string `koanf:"redis_addr"`

	// MapTiler (tile surface under the editor)
	MapTilerAPIKey string `koanf:"maptiler_api_key"`

	// PNG export
	ExportDir string `koanf:"export_dir"`

	// S3-compatible object storage for export artifacts (optional)
	S3BucketName      string `koanf:"s3_bucket_name"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3PublicBaseURL   string `koanf:"s3_public_base_url"`

	// CORS origins allowed to call the API (empty disables CORS headers)
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled  bool   `koanf:"tracing_enabled"`
	TracingEndpoint string `koanf:"tracing_endpoint"`
	TracingProtocol string `koanf:"tracing_protocol"` // grpc or http
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL       = errors.New("DATABASE_URL is required")
	ErrMissingMapTilerAPIKey    = errors.New("MAPTILER_API_KEY is required")
	ErrMissingS3BucketName      = errors.New("S3_BUCKET_NAME is required")
	ErrMissingS3AccessKeyID     = errors.New("S3_ACCESS_KEY_ID is required")
	ErrMissingS3SecretAccessKey = errors.New("S3_SECRET_ACCESS_KEY is required")
	ErrMissingS3Endpoint        = errors.New("S3_ENDPOINT is required")
	ErrInvalidTracingProtocol   = errors.New("TRACING_PROTOCOL must be grpc or http")
	ErrInvalidPort              = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultExportDir       = "exports"
	DefaultTracingProtocol = "grpc"
)

// firstEnv returns the first non-empty value among the named environment
// variables.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// pick returns the first non-empty candidate. Callers list the environment
// value first, then the file value, then any default.
func pick(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// Load reads configuration from environment variables and an optional YAML
// config file, with the environment taking precedence. It returns the loaded
// config and any validation errors.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// MAPNEST_PORT wins over the generic PORT most platforms inject
	port := DefaultPort
	if k.Int("port") != 0 {
		port = k.Int("port")
	}
	if raw := firstEnv("MAPNEST_PORT", "PORT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			loadErrs = append(loadErrs, ErrInvalidPort)
		} else {
			port = n
		}
	}

	tracingEnabled := k.Bool("tracing_enabled")
	if raw := os.Getenv("TRACING_ENABLED"); raw != "" {
		tracingEnabled = isTruthy(raw)
	}

	cfg := &Config{
		Port:               port,
		Env:                pick(firstEnv("MAPNEST_ENV", "ENV", "GO_ENV"), k.String("env"), DefaultEnv),
		DatabaseURL:        pick(os.Getenv("DATABASE_URL"), k.String("database_url")),
		RedisAddr:          pick(os.Getenv("REDIS_ADDR"), k.String("redis_addr")),
		MapTilerAPIKey:     pick(os.Getenv("MAPTILER_API_KEY"), k.String("maptiler_api_key")),
		ExportDir:          pick(os.Getenv("EXPORT_DIR"), k.String("export_dir"), DefaultExportDir),
		S3BucketName:       pick(os.Getenv("S3_BUCKET_NAME"), k.String("s3_bucket_name")),
		S3AccessKeyID:      pick(os.Getenv("S3_ACCESS_KEY_ID"), k.String("s3_access_key_id")),
		S3SecretAccessKey:  pick(os.Getenv("S3_SECRET_ACCESS_KEY"), k.String("s3_secret_access_key")),
		S3Endpoint:         pick(os.Getenv("S3_ENDPOINT"), k.String("s3_endpoint")),
		S3PublicBaseURL:    pick(os.Getenv("S3_PUBLIC_BASE_URL"), k.String("s3_public_base_url")),
		CORSAllowedOrigins: parseOriginList(pick(os.Getenv("CORS_ALLOWED_ORIGINS"), k.String("cors_allowed_origins"))),
		TracingEnabled:     tracingEnabled,
		TracingEndpoint:    pick(os.Getenv("TRACING_ENDPOINT"), k.String("tracing_endpoint")),
		TracingProtocol:    pick(os.Getenv("TRACING_PROTOCOL"), k.String("tracing_protocol"), DefaultTracingProtocol),
	}

	return cfg, append(loadErrs, cfg.Validate()...)
}

// isTruthy parses the boolean spellings accepted for flag-style env vars.
func isTruthy(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// parseOriginList splits a comma-separated origin list, trimming whitespace
// and dropping empty entries.
func parseOriginList(s string) []string {
	var origins []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			origins = append(origins, part)
		}
	}
	return origins
}

// Validate checks that all required configuration values are present.
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.MapTilerAPIKey == "" {
		errs = append(errs, ErrMissingMapTilerAPIKey)
	}

	// S3 is optional as a whole, but a partial block is a deployment
	// mistake, so once any field is set the required ones are enforced.
	if c.S3BucketName != "" || c.S3AccessKeyID != "" || c.S3SecretAccessKey != "" || c.S3Endpoint != "" {
		if c.S3BucketName == "" {
			errs = append(errs, ErrMissingS3BucketName)
		}
		if c.S3AccessKeyID == "" {
			errs = append(errs, ErrMissingS3AccessKeyID)
		}
		if c.S3SecretAccessKey == "" {
			errs = append(errs, ErrMissingS3SecretAccessKey)
		}
		if c.S3Endpoint == "" {
			errs = append(errs, ErrMissingS3Endpoint)
		}
	}

	if c.TracingProtocol != "grpc" && c.TracingProtocol != "http" {
		errs = append(errs, ErrInvalidTracingProtocol)
	}

	return errs
}

// S3Configured reports whether export uploads should go to object storage.
func (c *Config) S3Configured() bool {
	return c.S3BucketName != ""
}

// LogSummary returns the configuration with all secrets masked, suitable
// for the startup log line.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                 strconv.Itoa(c.Port),
		"env":                  c.Env,
		"database_url":         maskDatabaseURL(c.DatabaseURL),
		"redis_addr":           c.RedisAddr,
		"maptiler_api_key":     maskSecret(c.MapTilerAPIKey),
		"export_dir":           c.ExportDir,
		"s3_bucket_name":       c.S3BucketName,
		"s3_access_key_id":     maskSecret(c.S3AccessKeyID),
		"s3_secret_access_key": maskSecret(c.S3SecretAccessKey),
		"s3_endpoint":          c.S3Endpoint,
		"s3_public_base_url":   c.S3PublicBaseURL,
		"cors_allowed_origins": strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":      strconv.FormatBool(c.TracingEnabled),
		"tracing_endpoint":     c.TracingEndpoint,
		"tracing_protocol":     c.TracingProtocol,
	}
}

// maskSecret keeps the first 4 characters of a secret so operators can tell
// keys apart, and hides the rest. Short secrets are fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL replaces the password component of a connection URL.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return s
	}
	u.User = url.UserPassword(u.User.Username(), "****")
	return u.String()
}
