package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/authstore/internal/links"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage one-time recovery tokens",
}

var linkAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Issue a fresh recovery token, replacing any outstanding one",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		token, err := app.store.AddLink(ctx, args[0])
		if err != nil {
			return err
		}
		cmd.Println(token)
		return nil
	}),
}

var linkRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Invalidate the outstanding recovery token, if any",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		removed, err := app.store.RemoveLink(ctx, args[0])
		if err != nil {
			return err
		}
		if removed {
			cmd.Printf("%s recovery token removed\n", args[0])
		} else {
			cmd.Printf("%s had no recovery token\n", args[0])
		}
		return nil
	}),
}

var linkShowCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Print the outstanding recovery token and its issue date",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		link, err := app.store.GetLink(ctx, args[0])
		if err != nil {
			return err
		}
		if link == nil {
			cmd.Printf("%s has no recovery token\n", args[0])
			return nil
		}
		cmd.Printf("%s issued %s\n", link.Token, link.Date.Format("2006-01-02 15:04:05 MST"))
		return nil
	}),
}

var resolveTokenCmd = &cobra.Command{
	Use:   "resolve-token <token>",
	Short: "Find the account holding a recovery token",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		username, err := app.store.ResolveUsernameByToken(ctx, args[0])
		if err != nil {
			return err
		}
		cmd.Println(username)
		return nil
	}),
}

// resetLinkCmd issues a recovery token and wraps it in a signed JWT suitable
// for embedding in a password reset URL.
var resetLinkCmd = &cobra.Command{
	Use:   "reset-link <username>",
	Short: "Issue a recovery token and print it as a signed reset link token",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		token, err := app.store.AddLink(ctx, args[0])
		if err != nil {
			return err
		}
		signed, err := links.BuildResetLinkToken(args[0], token, []byte(app.cfg.SecretKey), app.cfg.ResetLinkValidityDuration)
		if err != nil {
			return err
		}
		cmd.Println(signed)
		return nil
	}),
}

func init() {
	linkCmd.AddCommand(linkAddCmd, linkRemoveCmd, linkShowCmd)
	rootCmd.AddCommand(linkCmd, resolveTokenCmd, resetLinkCmd)
}
