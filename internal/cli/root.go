// Package cli defines the cobra command tree for passmarket.
package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Freeeeeet/passmarket/internal/app"
	"github.com/Freeeeeet/passmarket/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "passmarket",
		Short:         "Booking calendar engine for the pass marketplace",
		Long:          "Runs the inquiry API, the Telegram bot and the notification archiver for the pass marketplace.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newParseDatesCmd(),
	)

	return root
}

// bootstrap loads config, builds the logger and opens the pool. The caller
// closes the pool and syncs the logger.
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.EnvFileLoaded {
		logger.Debug("Loaded .env file")
	}

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, fmt.Errorf("create db pool: %w", err)
	}

	return cfg, logger, pool, nil
}
