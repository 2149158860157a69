package merging

import (
	"context"

	"github.com/Ramsey-B/fern/internal/repositories/relation"
)

// RelationStore runs set-based statements on tables that reference an entity.
type RelationStore interface {
	Reassign(ctx context.Context, sel relation.Selector, sourceID, targetID string) (int64, error)
	DeleteShadowed(ctx context.Context, sel relation.Selector, keys []string, sourceID, targetID string) (int64, error)
	Delete(ctx context.Context, sel relation.Selector, ownerID string, column string, values ...any) (int64, error)
	HasFlagged(ctx context.Context, sel relation.Selector, ownerID string, flag string) (bool, error)
	ClearFlag(ctx context.Context, sel relation.Selector, ownerID string, flag string) (int64, error)
	CarryFlag(ctx context.Context, sel relation.Selector, keys []string, flag string, sourceID, targetID string) (int64, error)
}

// EntityStore reads and writes the entity rows themselves.
type EntityStore interface {
	Lock(ctx context.Context, table string, ids ...string) error
	GetInt(ctx context.Context, table string, id string, column string) (*int64, error)
	Update(ctx context.Context, table string, id string, columns map[string]any) error
	Delete(ctx context.Context, table string, id string) error
}

// run carries one merge through its steps.
type run struct {
	plan      *Plan
	source    string
	target    string
	relations RelationStore
	entities  EntityStore

	// pending holds scalar updates for the target, written in one statement
	// after every step has run.
	pending map[string]any
}

type strategyFunc func(ctx context.Context, r *run, step Step) (int64, error)

var strategies = map[StrategyType]strategyFunc{
	StrategyReassignUnique:     reassignUnique,
	StrategyReassignAll:        reassignAll,
	StrategySingletonPreserve:  singletonPreserve,
	StrategyNumericReconcile:   numericReconcile,
	StrategyDirectedGraphMerge: directedGraphMerge,
	StrategyCascade:            cascade,
}

func (r *run) apply(ctx context.Context, step Step) (int64, error) {
	fn, ok := strategies[step.Strategy]
	if !ok {
		return 0, newError(ErrorCodeUnknown, "relation %s: unknown strategy %q", step.Relation, step.Strategy)
	}
	return fn(ctx, r, step)
}

func selector(step Step, column string) relation.Selector {
	sel := relation.Selector{Table: step.Table, Column: column}
	if len(step.Scope) > 0 {
		sel.Scope = make(map[string]any, len(step.Scope))
		for k, v := range step.Scope {
			sel.Scope[k] = v
		}
	}
	return sel
}

// reassignUnique drops source rows the target already has, then moves the rest.
func reassignUnique(ctx context.Context, r *run, step Step) (int64, error) {
	sel := selector(step, step.Column)
	deleted, err := r.relations.DeleteShadowed(ctx, sel, step.Keys, r.source, r.target)
	if err != nil {
		return 0, err
	}
	moved, err := r.relations.Reassign(ctx, sel, r.source, r.target)
	if err != nil {
		return 0, err
	}
	return deleted + moved, nil
}

func reassignAll(ctx context.Context, r *run, step Step) (int64, error) {
	return r.relations.Reassign(ctx, selector(step, step.Column), r.source, r.target)
}

// singletonPreserve keeps the target's flagged row when it has one; otherwise
// the source's flag travels with its row. A flagged source row shadowed by a
// target row hands the flag to that row before it is dropped.
func singletonPreserve(ctx context.Context, r *run, step Step) (int64, error) {
	sel := selector(step, step.Column)

	targetFlagged, err := r.relations.HasFlagged(ctx, sel, r.target, step.Flag)
	if err != nil {
		return 0, err
	}
	if targetFlagged {
		if _, err := r.relations.ClearFlag(ctx, sel, r.source, step.Flag); err != nil {
			return 0, err
		}
	}

	var deleted int64
	if len(step.Keys) > 0 {
		if !targetFlagged {
			if _, err := r.relations.CarryFlag(ctx, sel, step.Keys, step.Flag, r.source, r.target); err != nil {
				return 0, err
			}
		}
		if deleted, err = r.relations.DeleteShadowed(ctx, sel, step.Keys, r.source, r.target); err != nil {
			return 0, err
		}
	}

	moved, err := r.relations.Reassign(ctx, sel, r.source, r.target)
	if err != nil {
		return 0, err
	}
	return deleted + moved, nil
}

// numericReconcile records a pending update when the source value beats the
// target's. Counts 1 when the target changes.
func numericReconcile(ctx context.Context, r *run, step Step) (int64, error) {
	sourceValue, err := r.entities.GetInt(ctx, r.plan.Table, r.source, step.Field)
	if err != nil {
		return 0, err
	}
	if sourceValue == nil {
		return 0, nil
	}

	targetValue, err := r.entities.GetInt(ctx, r.plan.Table, r.target, step.Field)
	if err != nil {
		return 0, err
	}

	if targetValue != nil && !better(step.Comparator, *sourceValue, *targetValue) {
		return 0, nil
	}

	r.pending[step.Field] = *sourceValue
	return 1, nil
}

func better(cmp Comparator, candidate, current int64) bool {
	switch cmp {
	case ComparatorMax:
		return candidate > current
	default:
		return candidate < current
	}
}

// directedGraphMerge reconciles edges where the entity is the subject, then
// edges where it is the object. Edges between source and target would become
// self-loops and are dropped in both directions.
func directedGraphMerge(ctx context.Context, r *run, step Step) (int64, error) {
	var total int64

	outbound := selector(step, step.FromColumn)
	n, err := r.relations.Delete(ctx, outbound, r.source, step.ToColumn, r.source, r.target)
	if err != nil {
		return 0, err
	}
	total += n

	outKeys := append([]string{step.ToColumn}, step.Keys...)
	if n, err = r.relations.DeleteShadowed(ctx, outbound, outKeys, r.source, r.target); err != nil {
		return 0, err
	}
	total += n

	if n, err = r.relations.Reassign(ctx, outbound, r.source, r.target); err != nil {
		return 0, err
	}
	total += n

	inbound := selector(step, step.ToColumn)
	if n, err = r.relations.Delete(ctx, inbound, r.source, step.FromColumn, r.target); err != nil {
		return 0, err
	}
	total += n

	inKeys := append([]string{step.FromColumn}, step.Keys...)
	if n, err = r.relations.DeleteShadowed(ctx, inbound, inKeys, r.source, r.target); err != nil {
		return 0, err
	}
	total += n

	if n, err = r.relations.Reassign(ctx, inbound, r.source, r.target); err != nil {
		return 0, err
	}
	return total + n, nil
}

// cascade removes rows that belong only to the source. It runs when the
// source is destroyed.
func cascade(ctx context.Context, r *run, step Step) (int64, error) {
	return r.relations.Delete(ctx, selector(step, step.Column), r.source, "")
}
