// Package backend talks to the NeuroFinance REST backend.
//
// The package has two layers:
//
//   - Client: a thin JSON-over-HTTP client bound to a base URL. It attaches a
//     bearer token obtained from an asynchronous TokenProvider before every
//     request; a public variant never attaches credentials.
//   - Service: typed session/message operations on top of Client, with a
//     short-lived read cache for the session list.
//
// Transport failures surface as *NetworkError, non-2xx responses as
// *APIError carrying the server's detail message.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/neurofinance/spready/internal/log"
)

// DefaultBaseURL is where a locally running backend listens.
const DefaultBaseURL = "http://localhost:8000"

const defaultTimeout = 120 * time.Second

// TokenProvider returns the current access token for the authenticated user,
// or "" when no user is signed in. It is invoked before every outgoing
// request. A provider error is non-fatal: the request proceeds without a
// credential and may then fail authorization server-side.
type TokenProvider func(ctx context.Context) (string, error)

// Client is a JSON HTTP client bound to a backend base URL.
//
// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	limiter    *rate.Limiter
	retry      *RetryConfig
	logger     log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTokenProvider sets the async bearer-token source.
func WithTokenProvider(tp TokenProvider) Option {
	return func(c *Client) { c.tokens = tp }
}

// WithHTTPClient replaces the underlying *http.Client. Mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the request logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimit throttles outgoing requests to rps requests per second with
// the given burst. Zero rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithTracing wraps the transport so every request carries an OpenTelemetry
// span. The global tracer provider must be configured separately (see
// internal/observability).
func WithTracing() Option {
	return func(c *Client) {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		// Copy to avoid mutating a shared http.Client.
		hc := *c.httpClient
		hc.Transport = otelhttp.NewTransport(base)
		c.httpClient = &hc
	}
}

// NewClient creates a client for the given base URL. An empty baseURL falls
// back to DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewPublicClient creates a client that never attaches credentials, for
// endpoints that must work unauthenticated (health checks, served artifacts).
func NewPublicClient(baseURL string, opts ...Option) *Client {
	c := NewClient(baseURL, opts...)
	c.tokens = nil
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends one JSON request. body is marshaled when non-nil; the response
// body is unmarshaled into out when out is non-nil and the response has one.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	data, err := c.fetch(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// Fetch performs a GET and returns the raw response body. Used for non-JSON
// payloads such as served HTML artifacts.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	return c.fetch(ctx, http.MethodGet, path, nil)
}

// fetch sends a request and returns the raw response body, retrying GETs
// when retries are configured.
func (c *Client) fetch(ctx context.Context, method, path string, body any) ([]byte, error) {
	if c.retry != nil && method == http.MethodGet {
		return c.fetchWithRetry(ctx, method, path, body)
	}
	return c.attempt(ctx, method, path, body)
}

// attempt sends a single request.
func (c *Client) attempt(ctx context.Context, method, path string, body any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &NetworkError{URL: c.baseURL + path, Err: err}
		}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens(ctx)
		switch {
		case err != nil:
			// Token acquisition failure never blocks the request attempt.
			c.logger.Debug("token provider failed, sending unauthenticated", "error", err)
		case token != "":
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(data, resp.StatusCode),
		}
	}
	return data, nil
}

// errorDetail extracts the backend's {"detail": "..."} message, falling back
// to the HTTP status text.
func errorDetail(body []byte, status int) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return http.StatusText(status)
}
