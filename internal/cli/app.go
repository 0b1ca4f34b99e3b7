// Package cli implements the authstore administration commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/authstore/internal/accounts"
	"github.com/dmitrijs2005/authstore/internal/common"
	"github.com/dmitrijs2005/authstore/internal/config"
	"github.com/dmitrijs2005/authstore/internal/docstore"
	"github.com/dmitrijs2005/authstore/internal/docstore/postgres"
	"github.com/dmitrijs2005/authstore/internal/docstore/redisstore"
	"github.com/dmitrijs2005/authstore/internal/logging"
)

// App carries the wired dependencies every command works against.
type App struct {
	cfg    *config.Config
	logger logging.Logger
	docs   docstore.Store
	store  *accounts.Store

	closers []func() error
}

var loadConfig = config.LoadConfig

func newApp(ctx context.Context, cmd *cobra.Command) (*App, error) {
	cfg := loadConfig()
	applyFlagOverrides(cmd, cfg)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app := &App{cfg: cfg, logger: logger}

	docs, err := app.newDocStore(ctx)
	if err != nil {
		return nil, err
	}

	app.docs = docs
	app.store = accounts.NewStore(docs, logger)
	return app, nil
}

// applyFlagOverrides copies the root flags the user set onto the loaded
// config, so the long forms work alongside the short forms that
// config.LoadConfig parses from os.Args. The -c/--config file itself is
// consumed inside LoadConfig before this runs.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd == nil {
		return
	}
	fl := cmd.Root().PersistentFlags()

	if fl.Changed("backend") {
		cfg.Backend, _ = fl.GetString("backend")
	}
	if fl.Changed("dsn") {
		cfg.DatabaseDSN, _ = fl.GetString("dsn")
	}
	if fl.Changed("redis-addr") {
		cfg.RedisAddr, _ = fl.GetString("redis-addr")
	}
	if fl.Changed("secret") {
		cfg.SecretKey, _ = fl.GetString("secret")
	}
	if fl.Changed("link-validity") {
		minutes, _ := fl.GetInt("link-validity")
		cfg.ResetLinkValidityDuration = time.Duration(minutes) * time.Minute
	}
	if fl.Changed("s3-user") {
		cfg.S3RootUser, _ = fl.GetString("s3-user")
	}
	if fl.Changed("s3-password") {
		cfg.S3RootPassword, _ = fl.GetString("s3-password")
	}
	if fl.Changed("s3-bucket") {
		cfg.S3Bucket, _ = fl.GetString("s3-bucket")
	}
	if fl.Changed("s3-region") {
		cfg.S3Region, _ = fl.GetString("s3-region")
	}
	if fl.Changed("s3-endpoint") {
		cfg.S3BaseEndpoint, _ = fl.GetString("s3-endpoint")
	}
}

func (a *App) newDocStore(ctx context.Context) (docstore.Store, error) {
	switch a.cfg.Backend {
	case "memory":
		return docstore.NewInMemoryStore(), nil
	case "postgres":
		db, err := postgres.Open(a.cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return nil, err
		}
		return postgres.NewStore(db), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		a.closers = append(a.closers, client.Close)
		return redisstore.NewStore(client), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", common.ErrInvalidArgument, a.cfg.Backend)
	}
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn(context.Background(), "error closing resource", "error", err)
		}
	}
}
