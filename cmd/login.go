package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newLoginCmd creates the 'login' subcommand, which refreshes the saved session.
func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Signs in and saves the session cookies",
		Long: `Opens a browser on the login page unless the saved session still works,
waits for you to sign in and stores the cookies for later runs.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App, _ []string) error {
			if err := appInstance.Login(cmd.Context()); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := appInstance.SaveSession(cmd.Context()); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		}),
	}
}
