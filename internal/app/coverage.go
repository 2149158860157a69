package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/merging"
)

// CheckCoverage compares every plan with the live schema. Gaps are logged,
// and fail startup when PLAN_COVERAGE_STRICT is set.
func (a *App) CheckCoverage(ctx context.Context) error {
	results, err := merging.CheckAllCoverage(ctx, a.Plans, a.Schema)
	if err != nil {
		return err
	}

	var gaps []string
	for _, coverage := range results {
		if coverage.Complete() {
			continue
		}
		a.Logger.WithContext(ctx).WithFields(map[string]any{
			"kind":    coverage.Kind,
			"missing": coverage.Missing,
		}).Warn("Merge plan does not handle every referencing column")
		gaps = append(gaps, fmt.Sprintf("%s: %s", coverage.Kind, strings.Join(coverage.Missing, ", ")))
	}

	if len(gaps) > 0 && a.Config.PlanCoverageStrict {
		return fmt.Errorf("merge plans are incomplete: %s", strings.Join(gaps, "; "))
	}
	return nil
}
