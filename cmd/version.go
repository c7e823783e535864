package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neurofinance/spready/internal/config"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("Spready %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Configuration: invalid (%v)\n", err)
		return nil
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Backend: %s\n", cfg.BackendURL)
	fmt.Printf("  State directory: %s\n", cfg.StateDir)
	if cfg.Supabase.Enabled() {
		fmt.Println("  Authentication: configured")
	} else {
		fmt.Println("  Authentication: anonymous")
	}
	fmt.Printf("  Tracing: %v\n", cfg.Tracing.Enabled)
	return nil
}
