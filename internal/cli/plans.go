package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/merging"
)

// NewPlansCommand creates the plans command group.
func NewPlansCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect merge plans",
	}

	var dir string
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "directory of plan files (defaults to PLANS_PATH or the built-in plans)")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "Print the merge plan of every entity kind",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := app.LoadPlans(dir)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load plans", err)
			}
			return writePlans(cmd.OutOrStdout(), rootOpts.Format, plans)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Compare the merge plans with the live schema",
		Long: `Compare every merge plan with the foreign keys and polymorphic tables of the
catalog database. Exits 1 when a referencing column is not handled by a plan.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, flush, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer flush()
			if dir != "" {
				cfg.PlansPath = dir
			}

			a, err := app.New(cfg, logger)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to build application", err)
			}
			if err := a.OpenDatabase(cmd.Context()); err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer a.CloseDatabase(cmd.Context())

			results, err := merging.CheckAllCoverage(cmd.Context(), a.Plans, a.Schema)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to inspect schema", err)
			}
			if err := writeCoverage(cmd.OutOrStdout(), rootOpts.Format, results); err != nil {
				return err
			}
			for _, coverage := range results {
				if !coverage.Complete() {
					return NewExitError(ExitFailure, "merge plans are incomplete")
				}
			}
			return nil
		},
	})

	return cmd
}

func writePlans(w io.Writer, format string, plans merging.Plans) error {
	if format == "json" {
		items := make([]*merging.Plan, 0, len(plans))
		for _, kind := range plans.Kinds() {
			plan, _ := plans.Get(kind)
			items = append(items, plan)
		}
		return writeJSON(w, items)
	}

	for _, kind := range plans.Kinds() {
		plan, _ := plans.Get(kind)
		fmt.Fprintf(w, "%s (%s)\n", plan.Kind, plan.Table)
		for _, step := range plan.Steps {
			fmt.Fprintf(w, "  %-24s %s\n", step.Relation, step.Strategy)
		}
	}
	return nil
}

func writeCoverage(w io.Writer, format string, results []merging.Coverage) error {
	if format == "json" {
		return writeJSON(w, results)
	}

	for _, coverage := range results {
		if coverage.Complete() {
			fmt.Fprintf(w, "%s: ok (%d references)\n", coverage.Kind, len(coverage.Covered))
			continue
		}
		fmt.Fprintf(w, "%s: missing %s\n", coverage.Kind, strings.Join(coverage.Missing, ", "))
	}
	return nil
}
