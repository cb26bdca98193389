package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newLogoutCmd creates the 'logout' subcommand. Deleting the session file is
// the remedy when exports keep failing.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Deletes the saved session",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App, _ []string) error {
			if err := appInstance.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session deleted. The next run will ask you to log in.")
			return nil
		}),
	}
}
