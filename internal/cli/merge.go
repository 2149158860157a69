package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
)

// MergeOptions holds the merge command flags.
type MergeOptions struct {
	Kind   string
	Source string
	Target string
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{}

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge one duplicate entity into another",
		Long: `Merge the source entity into the target entity.

The target survives. The command exits 1 when the merge is rejected or
rolled back, printing the error category.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseEntityKind(opts.Kind)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --kind", err)
			}

			cfg, logger, flush, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer flush()

			a, err := app.New(cfg, logger)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to build application", err)
			}
			if err := a.Start(cmd.Context()); err != nil {
				return WrapExitError(ExitCommandError, "failed to start", err)
			}
			defer a.Stop(context.WithoutCancel(cmd.Context()))

			result := a.Engine.Merge(cmd.Context(), kind, opts.Source, opts.Target)
			if err := writeMergeResult(cmd.OutOrStdout(), rootOpts.Format, result); err != nil {
				return err
			}
			if !result.OK {
				return NewExitError(ExitFailure, "merge failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "entity kind (artist|album|song)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "id of the duplicate to remove")
	cmd.Flags().StringVar(&opts.Target, "target", "", "id of the entity that survives")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func writeMergeResult(w io.Writer, format string, result merging.Result) error {
	if format == "json" {
		return writeJSON(w, result)
	}

	if !result.OK {
		_, err := fmt.Fprintf(w, "merge failed (%s): %s\n", result.Error.Code, result.Error.Message)
		return err
	}

	fmt.Fprintf(w, "merged into %s %s\n", result.Survivor.Kind, result.Survivor.ID)
	relations := make([]string, 0, len(result.Stats))
	for relation := range result.Stats {
		relations = append(relations, relation)
	}
	sort.Strings(relations)
	for _, relation := range relations {
		fmt.Fprintf(w, "  %-24s %d\n", relation, result.Stats[relation])
	}
	return nil
}
