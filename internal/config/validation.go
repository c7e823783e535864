package config

import (
	"fmt"
	"net/url"
	"slices"
)

// validLogLevels are the accepted log_level values.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Backend URL validation
	if c.BackendURL == "" {
		return fmt.Errorf("%w: backend_url cannot be empty", ErrInvalidBackendURL)
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBackendURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidBackendURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidBackendURL, c.BackendURL)
	}

	// 2. Request timeout validation
	if c.RequestTimeoutSeconds < 1 || c.RequestTimeoutSeconds > MaxRequestTimeoutSeconds {
		return fmt.Errorf("%w: must be between 1 and %d seconds, got %d",
			ErrInvalidTimeout, MaxRequestTimeoutSeconds, c.RequestTimeoutSeconds)
	}

	// 3. Rate limit validation (0 disables limiting)
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: must be >= 0, got %.2f", ErrInvalidRateLimit, c.RateLimit)
	}

	// 4. Log level validation
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidLogLevel, c.LogLevel, validLogLevels)
	}

	// 5. Supabase validation: either fully configured or fully absent.
	// A project reference without a key (or the reverse) would fail at
	// runtime in a confusing way; reject it here instead.
	if err := c.Supabase.validate(); err != nil {
		return err
	}

	// 6. Tracing validation
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("%w: tracing.endpoint is required when tracing is enabled",
			ErrInvalidTracingEndpoint)
	}

	return nil
}

func (s SupabaseConfig) validate() error {
	hasRef := s.ProjectReference != "" || s.URL != ""
	hasKey := s.AnonKey != ""

	if hasRef && !hasKey {
		return fmt.Errorf("%w: supabase.anon_key is required when a project is configured",
			ErrIncompleteSupabase)
	}
	if hasKey && !hasRef {
		return fmt.Errorf("%w: supabase.project_reference or supabase.url is required with an anon key",
			ErrIncompleteSupabase)
	}
	return nil
}
