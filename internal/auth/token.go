// Package auth sources bearer tokens from Supabase GoTrue.
//
// The backend trusts Supabase-issued access tokens. TokenSource wraps the
// gotrue-go client with a small state machine: sign in once with email and
// password, then keep serving the cached access token and refresh it
// transparently when it nears expiry. The refresh token is persisted to the
// state store so a login survives client restarts.
//
// Authentication is optional. An unconfigured or signed-out source yields an
// empty token without error; requests then go out anonymously, which the
// backend may or may not accept.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/neurofinance/spready/internal/log"
	"github.com/neurofinance/spready/internal/state"
)

// KeyRefreshToken is the state-store key holding the persisted refresh token.
const KeyRefreshToken = "supabaseRefreshToken"

// refreshMargin renews the access token this long before it actually
// expires, so in-flight requests never carry a token that dies mid-request.
const refreshMargin = 30 * time.Second

// gotrueAPI is the slice of the gotrue-go client this package consumes.
// Defined here so tests can substitute a fake.
type gotrueAPI interface {
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
	RefreshToken(refreshToken string) (*types.TokenResponse, error)
}

// Config identifies the Supabase project.
type Config struct {
	// ProjectReference is the Supabase project ref (subdomain).
	ProjectReference string
	// AnonKey is the project's public anon API key.
	AnonKey string
	// URL overrides the GoTrue endpoint, for self-hosted deployments.
	URL string
}

// Enabled reports whether the configuration names a Supabase project.
func (c Config) Enabled() bool {
	return c.ProjectReference != "" || c.URL != ""
}

// TokenSource provides the current access token for the REST client.
// Its Token method satisfies backend.TokenProvider.
//
// TokenSource is safe for concurrent use.
type TokenSource struct {
	api    gotrueAPI
	store  *state.Store
	logger log.Logger
	now    func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// New creates a TokenSource. A disabled config returns a source whose Token
// is always empty; callers don't need to special-case it.
func New(cfg Config, store *state.Store, logger log.Logger) *TokenSource {
	if logger == nil {
		logger = log.NewNop()
	}

	t := &TokenSource{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	if cfg.Enabled() {
		client := gotrue.New(cfg.ProjectReference, cfg.AnonKey)
		if cfg.URL != "" {
			client = client.WithCustomGoTrueURL(cfg.URL)
		}
		t.api = client
	}
	if store != nil {
		t.refreshToken = state.Get(store, KeyRefreshToken, "")
	}
	return t
}

// SignIn authenticates with email and password and stores the resulting
// session. The refresh token is persisted so later runs stay signed in.
func (t *TokenSource) SignIn(ctx context.Context, email, password string) error {
	if t.api == nil {
		return fmt.Errorf("authentication is not configured")
	}

	resp, err := t.api.SignInWithEmailPassword(email, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	t.adopt(resp)
	t.logger.Info("signed in", "user", email)
	return nil
}

// SignOut drops all tokens, locally and from the state store.
func (t *TokenSource) SignOut() {
	t.mu.Lock()
	t.accessToken = ""
	t.refreshToken = ""
	t.expiresAt = time.Time{}
	t.mu.Unlock()

	if t.store != nil {
		_ = state.Set(t.store, KeyRefreshToken, "")
	}
}

// Token returns the current access token, refreshing it when it is within
// refreshMargin of expiry. An unauthenticated source returns ("", nil):
// failure to produce a token must never block the request attempt.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if t.api == nil {
		return "", nil
	}

	t.mu.Lock()
	token := t.accessToken
	fresh := token != "" && t.now().Before(t.expiresAt.Add(-refreshMargin))
	refresh := t.refreshToken
	t.mu.Unlock()

	if fresh {
		return token, nil
	}
	if refresh == "" {
		return "", nil
	}

	resp, err := t.api.RefreshToken(refresh)
	if err != nil {
		// A dead refresh token means the login expired. Degrade to
		// anonymous rather than failing the caller's request.
		t.logger.Warn("token refresh failed, continuing unauthenticated", "error", err)
		t.SignOut()
		return "", nil
	}

	t.adopt(resp)
	return resp.AccessToken, nil
}

// adopt installs a token response as the current session.
func (t *TokenSource) adopt(resp *types.TokenResponse) {
	expiresAt := t.now().Add(time.Duration(resp.ExpiresIn) * time.Second)

	t.mu.Lock()
	t.accessToken = resp.AccessToken
	t.refreshToken = resp.RefreshToken
	t.expiresAt = expiresAt
	t.mu.Unlock()

	if t.store != nil {
		if err := state.Set(t.store, KeyRefreshToken, resp.RefreshToken); err != nil {
			t.logger.Warn("persisting refresh token failed", "error", err)
		}
	}
}
