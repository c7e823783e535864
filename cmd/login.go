package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in so requests carry your credentials",
	Long: `Login authenticates against the configured Supabase project and stores
the refresh token in the local state directory. Later runs refresh the access
token automatically; when refreshing fails, the client falls back to
anonymous requests.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard stored credentials",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.Supabase.Enabled() {
		return fmt.Errorf("no Supabase project configured; set supabase.project_reference and supabase.anon_key in ~/.spready/config.yaml")
	}

	email := args[0]
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	if err := a.tokens.SignIn(ctx, email, string(password)); err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	fmt.Printf("Signed in as %s\n", email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	a.tokens.SignOut()
	fmt.Println("Signed out. Requests are anonymous again.")
	return nil
}
