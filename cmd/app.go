package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/neurofinance/spready/internal/artifact"
	"github.com/neurofinance/spready/internal/auth"
	"github.com/neurofinance/spready/internal/backend"
	"github.com/neurofinance/spready/internal/chat"
	"github.com/neurofinance/spready/internal/config"
	"github.com/neurofinance/spready/internal/log"
	"github.com/neurofinance/spready/internal/observability"
	"github.com/neurofinance/spready/internal/state"
)

// shutdownTimeout bounds cleanup work (trace flush) on exit.
const shutdownTimeout = 5 * time.Second

// app holds the wired dependency graph shared by all commands.
type app struct {
	cfg     *config.Config
	logger  log.Logger
	store   *state.Store
	tokens  *auth.TokenSource
	service *backend.Service
	manager *chat.Manager
	fetcher *artifact.Fetcher

	tracingShutdown func(context.Context) error
}

// buildApp loads configuration and wires the full dependency graph:
// config -> logger -> state store -> token source -> backend client ->
// service -> conversation manager + artifact fetcher.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	a := &app{cfg: cfg, logger: logger}

	if cfg.Tracing.Enabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			Environment: cfg.Tracing.Environment,
		}, logger)
		if err != nil {
			// Tracing is an optional concern; a broken collector config
			// should not keep the client from starting.
			logger.Warn("tracing setup failed, continuing without", "error", err)
		} else {
			a.tracingShutdown = shutdown
		}
	}

	a.store = state.Open(cfg.StateDir, logger.With("component", "state"))
	a.tokens = auth.New(auth.Config{
		ProjectReference: cfg.Supabase.ProjectReference,
		AnonKey:          cfg.Supabase.AnonKey,
		URL:              cfg.Supabase.URL,
	}, a.store, logger.With("component", "auth"))

	clientOpts := []backend.Option{
		backend.WithLogger(logger.With("component", "backend")),
		backend.WithTokenProvider(a.tokens.Token),
		backend.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		}),
		backend.WithRetry(backend.DefaultRetryConfig()),
	}
	if cfg.Tracing.Enabled {
		clientOpts = append(clientOpts, backend.WithTracing())
	}
	if cfg.RateLimit > 0 {
		clientOpts = append(clientOpts, backend.WithRateLimit(cfg.RateLimit, int(cfg.RateLimit)+1))
	}

	client := backend.NewClient(cfg.BackendURL, clientOpts...)
	public := backend.NewPublicClient(cfg.BackendURL,
		backend.WithLogger(logger.With("component", "backend")))

	a.service = backend.NewService(client, logger.With("component", "backend"),
		backend.WithPublicClient(public))
	a.manager = chat.NewManager(a.service, a.store, logger.With("component", "chat"))
	a.fetcher = artifact.NewFetcher(public, logger.With("component", "artifact"))

	return a, nil
}

// Close releases the state watcher and flushes pending traces.
func (a *app) Close() {
	if a.manager != nil {
		if err := a.manager.Close(); err != nil {
			a.logger.Warn("closing conversation manager failed", "error", err)
		}
	} else if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing state store failed", "error", err)
		}
	}
	if a.tracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracingShutdown(ctx); err != nil {
			a.logger.Warn("trace flush failed", "error", err)
		}
	}
}

// parseLogLevel maps a config log level to slog. Validation already rejected
// unknown values; default to info for safety.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
