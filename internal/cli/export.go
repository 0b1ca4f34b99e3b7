package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/authstore/internal/accounts"
	"github.com/dmitrijs2005/authstore/internal/common"
	"github.com/dmitrijs2005/authstore/internal/docstore"
	"github.com/dmitrijs2005/authstore/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upload a snapshot of all accounts to the object store",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, app *App, cmd *cobra.Command, args []string) error {
		lister, ok := app.docs.(docstore.Lister)
		if !ok {
			return fmt.Errorf("%w: backend %q cannot enumerate documents", common.ErrInvalidArgument, app.cfg.Backend)
		}

		exporter := export.NewExporter(lister, accounts.Kind, export.S3Settings{
			RootUser:     app.cfg.S3RootUser,
			RootPassword: app.cfg.S3RootPassword,
			Bucket:       app.cfg.S3Bucket,
			Region:       app.cfg.S3Region,
			BaseEndpoint: app.cfg.S3BaseEndpoint,
		}, app.logger)

		key, count, err := exporter.Export(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("uploaded %d accounts to %s\n", count, key)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
