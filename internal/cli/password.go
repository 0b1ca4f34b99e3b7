package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var setPasswordEncoded string

// setPasswordCmd replaces the stored credential. The store clears any
// outstanding recovery token in the same write, so a pending reset link
// stops working once the password changes.
var setPasswordCmd = &cobra.Command{
	Use:   "set-password <username>",
	Short: "Set a new password for an account",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		encoded, err := resolveEncodedPassword(setPasswordEncoded)
		if err != nil {
			return err
		}
		if err := app.store.SetPassword(ctx, args[0], encoded); err != nil {
			return err
		}
		cmd.Printf("%s password updated\n", args[0])
		return nil
	}),
}

func init() {
	setPasswordCmd.Flags().StringVar(&setPasswordEncoded, "encoded-password", "", "already-encoded password (skips the prompt)")
	rootCmd.AddCommand(setPasswordCmd)
}
