package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTokenProvider(func(ctx context.Context) (string, error) {
		return "tok-123", nil
	}))

	if err := c.do(context.Background(), http.MethodGet, "/sessions", nil, nil); err != nil {
		t.Fatalf("do() error = %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-123")
	}
}

func TestClient_TokenProviderFailureIsNonFatal(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTokenProvider(func(ctx context.Context) (string, error) {
		return "", errors.New("auth service down")
	}))

	// The request must still be attempted, just without a credential.
	if err := c.do(context.Background(), http.MethodGet, "/sessions", nil, nil); err != nil {
		t.Fatalf("do() error = %v, want nil", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestClient_EmptyTokenSendsNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTokenProvider(func(ctx context.Context) (string, error) {
		return "", nil
	}))

	if err := c.do(context.Background(), http.MethodGet, "/health", nil, nil); err != nil {
		t.Fatalf("do() error = %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestPublicClient_NeverAttachesCredentials(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	// Even when constructed with a token provider option, the public variant
	// strips it.
	c := NewPublicClient(srv.URL, WithTokenProvider(func(ctx context.Context) (string, error) {
		return "must-not-appear", nil
	}))

	if err := c.do(context.Background(), http.MethodGet, "/health", nil, nil); err != nil {
		t.Fatalf("do() error = %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty for public client", gotAuth)
	}
}

func TestClient_APIErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": "session_id is required"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.do(context.Background(), http.MethodPost, "/ask", askRequest{}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("do() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusUnprocessableEntity)
	}
	if apiErr.Detail != "session_id is required" {
		t.Errorf("Detail = %q, want server detail", apiErr.Detail)
	}
}

func TestClient_APIErrorWithoutDetailUsesStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`oops`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.do(context.Background(), http.MethodGet, "/sessions", nil, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("do() error = %v, want *APIError", err)
	}
	if apiErr.Detail != http.StatusText(http.StatusInternalServerError) {
		t.Errorf("Detail = %q, want status text", apiErr.Detail)
	}
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Refuse connections.

	c := NewClient(srv.URL)
	err := c.do(context.Background(), http.MethodGet, "/sessions", nil, nil)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("do() error = %v, want *NetworkError", err)
	}
	if netErr.Unwrap() == nil {
		t.Error("NetworkError.Unwrap() = nil, want wrapped cause")
	}
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient("")
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), DefaultBaseURL)
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://example.com/")
	if c.BaseURL() != "http://example.com" {
		t.Errorf("BaseURL() = %q, want trailing slash trimmed", c.BaseURL())
	}
}
