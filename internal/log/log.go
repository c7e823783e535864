// Package log provides the logging infrastructure for the spready client.
//
// Loggers are injected, never global: each component receives a log.Logger
// via its constructor and narrows it with With("component", ...). Because
// the terminal UI owns stdout, all output goes to stderr; redirect stderr
// to a file to capture logs from an interactive run.
//
// Usage:
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	svc := backend.NewService(client, logger.With("component", "backend"))
//	mgr := chat.NewManager(svc, store, logger.With("component", "chat"))
//
// Tests use log.NewNop(), or log.NewWithWriter with a bytes.Buffer when
// they assert on output.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger. The alias keeps full slog
// compatibility (With, LogAttrs, handlers) without a wrapper interface;
// components should accept log.Logger as a dependency.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format)
	JSON bool

	// AddSource adds source file information to log entries. Default: false
	AddSource bool
}

// New creates a logger writing to os.Stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger that writes to w. Useful for tests and
// custom output destinations.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	return slog.New(newHandler(w, cfg))
}

func newHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.JSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// NewNop creates a logger that discards all output. Test use only:
// production code that logs nowhere is undebuggable.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
