package tui

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/neurofinance/spready/internal/artifact"
	"github.com/neurofinance/spready/internal/chat"
)

// Run starts the terminal interface and blocks until the user exits.
func Run(ctx context.Context, manager *chat.Manager, fetcher *artifact.Fetcher) error {
	model, err := New(ctx, manager, fetcher)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err = program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}
