package merging

import (
	"context"
	"sort"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/internal/repositories/schema"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// polymorphicColumn is the owner column of every (entity_kind, entity_id) table.
const polymorphicColumn = "entity_id"

// SchemaInspector lists every column that can reference an entity.
type SchemaInspector interface {
	ForeignKeys(ctx context.Context, table string) ([]schema.Reference, error)
	PolymorphicTables(ctx context.Context) ([]string, error)
}

// Coverage compares a plan against the live schema.
type Coverage struct {
	Kind    models.EntityKind `json:"kind"`
	Covered []string          `json:"covered"`
	Missing []string          `json:"missing"`
}

// Complete reports whether every referencing column is handled by the plan.
func (c Coverage) Complete() bool {
	return len(c.Missing) == 0
}

// CheckCoverage reports the referencing columns the plan does not handle.
// Any such column is data the merge would orphan or fail on.
func CheckCoverage(ctx context.Context, plan *Plan, inspector SchemaInspector) (Coverage, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.CheckCoverage")
	defer span.End()

	fks, err := inspector.ForeignKeys(ctx, plan.Table)
	if err != nil {
		return Coverage{}, err
	}
	polymorphic, err := inspector.PolymorphicTables(ctx)
	if err != nil {
		return Coverage{}, err
	}

	required := ectolinq.Map(fks, func(ref schema.Reference) string {
		return database.Column(ref.Table, ref.Column)
	})
	for _, table := range polymorphic {
		required = append(required, database.Column(table, polymorphicColumn))
	}

	handled := plan.References()
	coverage := Coverage{Kind: plan.Kind, Covered: []string{}, Missing: []string{}}
	for _, ref := range required {
		if ectolinq.Contains(coverage.Covered, ref) || ectolinq.Contains(coverage.Missing, ref) {
			continue
		}
		if ectolinq.Contains(handled, ref) {
			coverage.Covered = append(coverage.Covered, ref)
		} else {
			coverage.Missing = append(coverage.Missing, ref)
		}
	}
	sort.Strings(coverage.Covered)
	sort.Strings(coverage.Missing)
	return coverage, nil
}

// CheckAllCoverage runs CheckCoverage for every plan in kind order.
func CheckAllCoverage(ctx context.Context, plans Plans, inspector SchemaInspector) ([]Coverage, error) {
	results := make([]Coverage, 0, len(plans))
	for _, kind := range plans.Kinds() {
		plan, _ := plans.Get(kind)
		coverage, err := CheckCoverage(ctx, plan, inspector)
		if err != nil {
			return nil, err
		}
		results = append(results, coverage)
	}
	return results, nil
}
