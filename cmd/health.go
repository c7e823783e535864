package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the analysis backend is reachable",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.Health(cmd.Context()); err != nil {
		return fmt.Errorf("backend at %s is not healthy: %w", a.cfg.BackendURL, err)
	}
	fmt.Printf("Backend at %s is healthy\n", a.cfg.BackendURL)
	return nil
}
