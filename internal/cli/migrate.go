package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Freeeeeet/passmarket/internal/app"
)

func newMigrateCmd() *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply all pending migrations embedded in the binary and print the resulting schema version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			_, logger, pool, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			defer func() { _ = logger.Sync() }()

			migrator, err := app.NewMigrator(pool, logger)
			if err != nil {
				return err
			}
			defer func() { _ = migrator.Close() }()

			if statusOnly {
				return printMigrationStatus(cmd, migrator)
			}

			if err := migrator.Run(ctx); err != nil {
				return err
			}

			version, err := migrator.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "print the schema version and pending migrations without applying them")

	return cmd
}

func printMigrationStatus(cmd *cobra.Command, migrator *app.Migrator) error {
	ctx := cmd.Context()

	version, err := migrator.Version(ctx)
	if err != nil {
		return err
	}
	pending, err := migrator.Pending(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "schema version %d\n", version)
	if len(pending) == 0 {
		fmt.Fprintln(out, "no pending migrations")
		return nil
	}
	for _, v := range pending {
		fmt.Fprintf(out, "pending %d\n", v)
	}
	return nil
}
