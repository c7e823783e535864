// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override, SPREADY_* prefix)
//  2. Config file (~/.spready/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Backend: analysis backend base URL, request timeout, rate limit
//   - Supabase: authentication project settings (see supabase section)
//   - State: directory for the persisted client state
//   - Log: level and output format
//   - Tracing: OTLP trace export (see tracing section)
//
// Security: Sensitive data (the Supabase anon key) is never logged; config
// directory uses 0750 permissions.
// Validation: Range checks in validation.go with clear error messages.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidBackendURL indicates the backend base URL is invalid.
	ErrInvalidBackendURL = errors.New("invalid backend URL")

	// ErrInvalidTimeout indicates the request timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid request timeout")

	// ErrInvalidRateLimit indicates the request rate limit is out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrIncompleteSupabase indicates the Supabase settings are partially set.
	ErrIncompleteSupabase = errors.New("incomplete Supabase configuration")

	// ErrInvalidTracingEndpoint indicates tracing is enabled without an endpoint.
	ErrInvalidTracingEndpoint = errors.New("invalid tracing endpoint")
)

const (
	// DefaultBackendURL is the analysis backend used when nothing is configured.
	DefaultBackendURL = "http://localhost:8000"

	// DefaultRequestTimeoutSeconds bounds a single backend request. Agent
	// questions can legitimately run long.
	DefaultRequestTimeoutSeconds = 120

	// MaxRequestTimeoutSeconds is the absolute request timeout ceiling.
	MaxRequestTimeoutSeconds = 600
)

// SupabaseConfig identifies the Supabase project used for authentication.
// All three fields empty means anonymous mode: requests carry no credential.
type SupabaseConfig struct {
	ProjectReference string `mapstructure:"project_reference" json:"project_reference"`
	AnonKey          string `mapstructure:"anon_key" json:"anon_key"` // SENSITIVE: masked in MarshalJSON
	URL              string `mapstructure:"url" json:"url"`           // Optional self-hosted GoTrue URL
}

// Enabled reports whether an authentication project is configured.
func (s SupabaseConfig) Enabled() bool {
	return s.AnonKey != "" && (s.ProjectReference != "" || s.URL != "")
}

// MarshalJSON masks the anon key.
func (s SupabaseConfig) MarshalJSON() ([]byte, error) {
	type alias SupabaseConfig
	a := alias(s)
	a.AnonKey = maskSecret(a.AnonKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal supabase config: %w", err)
	}
	return data, nil
}

// TracingConfig controls OTLP trace export.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"` // OTLP/HTTP collector, host:port
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (keys, tokens), update MarshalJSON.
type Config struct {
	// Backend connection
	BackendURL            string  `mapstructure:"backend_url" json:"backend_url"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`
	RateLimit             float64 `mapstructure:"rate_limit" json:"rate_limit"` // requests per second, 0 disables limiting

	// Client state persistence (current session, refresh token)
	StateDir string `mapstructure:"state_dir" json:"state_dir"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"` // debug, info, warn, error
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	Supabase SupabaseConfig `mapstructure:"supabase" json:"supabase"`
	Tracing  TracingConfig  `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.spready/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".spready")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v, configDir)
	bindEnvVariables(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("backend_url", DefaultBackendURL)
	v.SetDefault("request_timeout_seconds", DefaultRequestTimeoutSeconds)
	v.SetDefault("rate_limit", 0.0)

	v.SetDefault("state_dir", filepath.Join(configDir, "state"))

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "spready")
	v.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("backend_url", "SPREADY_BACKEND_URL")
	mustBind("request_timeout_seconds", "SPREADY_REQUEST_TIMEOUT_SECONDS")
	mustBind("rate_limit", "SPREADY_RATE_LIMIT")
	mustBind("state_dir", "SPREADY_STATE_DIR")
	mustBind("log_level", "SPREADY_LOG_LEVEL")
	mustBind("log_json", "SPREADY_LOG_JSON")

	mustBind("supabase.project_reference", "SPREADY_SUPABASE_PROJECT_REF")
	mustBind("supabase.anon_key", "SPREADY_SUPABASE_ANON_KEY")
	mustBind("supabase.url", "SPREADY_SUPABASE_URL")

	mustBind("tracing.enabled", "SPREADY_TRACING_ENABLED")
	mustBind("tracing.endpoint", "SPREADY_TRACING_ENDPOINT")
	mustBind("tracing.environment", "SPREADY_TRACING_ENV")
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full block U+2588) to avoid substring matching:
// - "****" fails when a secret contains "*"
// - "[REDACTED]" fails when a secret contains "A", "D", "E", etc.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - Supabase.AnonKey (via SupabaseConfig.MarshalJSON)
//
// When adding new sensitive fields, update this method or the nested struct's
// MarshalJSON.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	data, err := json.Marshal(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
