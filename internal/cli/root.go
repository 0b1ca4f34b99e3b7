package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "authstore",
	Short: "Administration tool for the authentication account store",
	Long: `authstore manages the account records behind an authentication service:
credentials, lockout counters, enable flags and one-time recovery tokens.

The backing document store is selected with the global -k flag
("memory", "postgres" or "redis"); connection settings come from
defaults, an optional JSON config file (-c) and flags.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("backend", "k", "", "document store backend (memory, postgres or redis)")
	pf.StringP("config", "c", "", "JSON config file")
	pf.StringP("dsn", "d", "", "database DSN")
	pf.StringP("redis-addr", "a", "", "redis address (host:port)")
	pf.StringP("secret", "s", "", "reset link secret key")
	pf.IntP("link-validity", "t", 0, "reset link validity, minutes")
	pf.StringP("s3-user", "u", "", "S3 root user")
	pf.StringP("s3-password", "p", "", "S3 root password")
	pf.StringP("s3-bucket", "b", "", "S3 bucket")
	pf.StringP("s3-region", "g", "", "S3 region")
	pf.StringP("s3-endpoint", "e", "", "S3 base endpoint")
}

// Execute adds all child commands to the root command and runs it.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp wraps a command body with app construction and teardown.
func withApp(run func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		app, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return run(ctx, app, cmd, args)
	}
}
