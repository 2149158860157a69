package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the catalog schema migrations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, flush, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer flush()

			a, err := app.New(cfg, logger)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to build application", err)
			}
			if err := a.Migrate(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "migration failed", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", cfg.DatabaseDriver)
			return err
		},
	}
}
