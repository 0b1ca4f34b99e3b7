package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/authstore/internal/accounts"
)

var (
	createFirstName       string
	createLastName        string
	createAttempts        int
	createAuthorities     []string
	createEncodedPassword string
)

// createUserCmd creates an account that starts disabled, to be enabled once
// the user completes whatever activation flow the caller runs.
var createUserCmd = &cobra.Command{
	Use:   "create-user <username>",
	Short: "Create a new account (initially disabled)",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		encoded, err := resolveEncodedPassword(createEncodedPassword)
		if err != nil {
			return err
		}

		account, err := app.store.CreateUser(ctx, accounts.NewAccount{
			Username:          args[0],
			EncodedPassword:   encoded,
			LoginAttemptsLeft: createAttempts,
			FirstName:         createFirstName,
			LastName:          createLastName,
			Authorities:       createAuthorities,
		})
		if err != nil {
			return err
		}

		cmd.Printf("created %s (attempts left: %d)\n", account.Username, account.LoginAttemptsLeft)
		return nil
	}),
}

var deleteUserCmd = &cobra.Command{
	Use:   "delete-user <username>",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		if err := app.store.DeleteUser(ctx, args[0]); err != nil {
			return err
		}
		cmd.Printf("deleted %s\n", args[0])
		return nil
	}),
}

var showUserCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Print an account as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		account, err := app.store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(account, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(b))
		return nil
	}),
}

var existsCmd = &cobra.Command{
	Use:   "exists <username>",
	Short: "Report whether an account exists",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		ok, err := app.store.UserExists(ctx, args[0])
		if err != nil {
			return err
		}
		if ok {
			cmd.Printf("%s exists\n", args[0])
		} else {
			cmd.Printf("%s does not exist\n", args[0])
		}
		return nil
	}),
}

func init() {
	createUserCmd.Flags().StringVar(&createFirstName, "first-name", "", "first name")
	createUserCmd.Flags().StringVar(&createLastName, "last-name", "", "last name")
	createUserCmd.Flags().IntVar(&createAttempts, "attempts", 5, "initial login attempts left")
	createUserCmd.Flags().StringSliceVar(&createAuthorities, "authority", nil, "granted authority (repeatable)")
	createUserCmd.Flags().StringVar(&createEncodedPassword, "encoded-password", "", "already-encoded password (skips the prompt)")

	rootCmd.AddCommand(createUserCmd, deleteUserCmd, showUserCmd, existsCmd)
}
