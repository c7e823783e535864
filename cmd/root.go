// Package cmd wires the spready commands: the interactive TUI, one-shot
// asks, session listing, authentication, and backend health checks.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "spready",
	Short: "Spready - financial analysis assistant for your spreadsheets",
	Long: `Spready is a terminal client for the NeuroFinance analysis backend.
It keeps your conversations in sync across terminals, renders generated
charts and tables as text, and remembers which conversation you were in.

Running spready without arguments opens the interactive interface.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
