package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RetryConfig configures retry behavior for idempotent requests.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for backend reads.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// WithRetry retries transient failures of GET requests with exponential
// backoff. Writes are never retried: the backend offers no idempotency keys,
// and a duplicated message is worse than a failed one.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = &cfg }
}

// retryableError reports whether err is transient. Only typed errors are
// inspected: a NetworkError always is, an APIError when the server signals
// throttling or a server-side fault.
func retryableError(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}

// fetchWithRetry runs attempt with exponential backoff for GETs.
func (c *Client) fetchWithRetry(ctx context.Context, method, path string, body any) ([]byte, error) {
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		data, err := c.attempt(ctx, method, path, body)
		if err == nil {
			return data, nil
		}
		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableError(err) {
			return nil, err
		}

		// Last attempt - don't sleep
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"method", method,
			"path", path,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, &NetworkError{URL: c.baseURL + path, Err: ctx.Err()}
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("%s %s after %d retries (elapsed: %v): %w",
		method, path, c.retry.MaxRetries, time.Since(start), lastErr)
}
