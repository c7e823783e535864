package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neurofinance/spready/internal/backend"
	"github.com/neurofinance/spready/internal/state"
)

var askNewSession bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question and print the answer",
	Long: `Ask sends a single question to the analysis backend and prints the
answer, outside the interactive interface. The question joins the current
conversation unless --new starts a fresh one, so a later 'spready' run shows
the full exchange.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askNewSession, "new", false, "start a new conversation for this question")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	if err := a.manager.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}
	if askNewSession {
		if sess := a.manager.CreateNewSession(ctx); sess == nil {
			return fmt.Errorf("failed to create a new conversation: %s", a.manager.Snapshot().Err)
		}
	}

	sessionID := a.manager.CurrentSessionID()
	// Record the question first so other clients can see it, then ask.
	if _, err := a.service.AddMessage(ctx, sessionID, question, backend.SenderUser); err != nil {
		return fmt.Errorf("failed to record question: %w", err)
	}
	resp, err := a.service.Ask(ctx, sessionID, question)
	if err != nil {
		return fmt.Errorf("failed to get an answer: %w", err)
	}

	fmt.Println(resp.Answer)
	if len(resp.HTMLFiles) > 0 {
		fmt.Println()
		fmt.Printf("Generated files (in %s):\n", resp.OutputFolder)
		for _, f := range resp.HTMLFiles {
			fmt.Printf("  %s\n", f)
		}
	}

	// Keep the sidebar of other clients current.
	if _, err := a.service.UpdateSession(ctx, sessionID, resp.HTMLFiles, resp.OutputFolder, question); err != nil {
		a.logger.Warn("session update after answer failed", "error", err)
	}
	if a.store != nil {
		_ = state.Set(a.store, state.KeyCurrentSession, sessionID)
	}

	return nil
}
