package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable <username>",
	Short: "Enable an account",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		if err := app.store.SetEnabled(ctx, args[0]); err != nil {
			return err
		}
		cmd.Printf("%s enabled\n", args[0])
		return nil
	}),
}

var disableCmd = &cobra.Command{
	Use:   "disable <username>",
	Short: "Disable an account",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		if err := app.store.SetDisabled(ctx, args[0]); err != nil {
			return err
		}
		cmd.Printf("%s disabled\n", args[0])
		return nil
	}),
}

var setAttemptsCmd = &cobra.Command{
	Use:   "set-attempts <username> <count>",
	Short: "Set the remaining login attempts counter",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		if err := app.store.SetAttemptsLeft(ctx, args[0], n); err != nil {
			return err
		}
		cmd.Printf("%s attempts left set to %d\n", args[0], n)
		return nil
	}),
}

var decrementAttemptsCmd = &cobra.Command{
	Use:   "decrement-attempts <username>",
	Short: "Decrement the remaining login attempts counter",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		if err := app.store.DecrementAttemptsLeft(ctx, args[0]); err != nil {
			return err
		}
		cmd.Printf("%s attempts left decremented\n", args[0])
		return nil
	}),
}

var grantAuthorityCmd = &cobra.Command{
	Use:   "grant-authority <username> <authority>",
	Short: "Grant an authority to an account",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		if err := app.store.SetAuthority(ctx, args[0], args[1]); err != nil {
			return err
		}
		cmd.Printf("%s granted %s\n", args[0], args[1])
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(enableCmd, disableCmd, setAttemptsCmd, decrementAttemptsCmd, grantAuthorityCmd)
}
