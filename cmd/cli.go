package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/neurofinance/spready/internal/tui"
)

// runTUI initializes the dependency graph and starts the interactive
// interface.
func runTUI(parent context.Context) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	return tui.Run(ctx, a.manager, a.fetcher)
}
