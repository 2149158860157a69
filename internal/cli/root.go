// Package cli implements the fern command line.
package cli

import (
	"fmt"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fern CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fern",
		Short: "fern merges duplicate catalog entities",
		Long: `fern folds a duplicate artist, album or song into the record that survives it.

Every record attached to the duplicate is moved, deduplicated or deleted
according to the entity kind's merge plan, in one transaction.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !ectolinq.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "optional dotenv file read before the environment")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewPlansCommand(opts))

	return cmd
}

// setup loads configuration and builds the process logger.
func setup(opts *RootOptions) (*config.Config, ectologger.Logger, func(), error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	logger, flush, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	return cfg, logger, flush, nil
}
