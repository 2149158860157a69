// Package relation runs set-based statements against tables that reference a
// catalog entity. Every method joins the transaction carried by ctx.
package relation

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const shadowAlias = "shadow"

// Selector names the owner column of a relation table. Scope adds constant
// equality filters, used by polymorphic tables keyed on entity_kind.
type Selector struct {
	Table  string
	Column string
	Scope  map[string]any
}

// Repository handles attached record persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new relation repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// scopeConds renders the scope filters with the builder's Equal so arguments
// stay bound to that builder.
func scopeConds(equal func(field string, value any) string, prefix string, scope map[string]any) []string {
	columns := make([]string, 0, len(scope))
	for column := range scope {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	exprs := make([]string, 0, len(columns))
	for _, column := range columns {
		field := column
		if prefix != "" {
			field = database.Column(prefix, column)
		}
		exprs = append(exprs, equal(field, scope[column]))
	}
	return exprs
}

func (r *Repository) exec(ctx context.Context, query string, args []any, sel Selector, action string) (int64, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"table":  sel.Table,
			"column": sel.Column,
		}).Errorf("Failed to %s", action)
		return 0, repositories.WriteError(err, "failed to %s in %s", action, sel.Table)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// Reassign rewrites the owner column of every row owned by sourceID to targetID.
func (r *Repository) Reassign(ctx context.Context, sel Selector, sourceID, targetID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.Reassign")
	defer span.End()

	ub := r.db.Flavor().NewUpdateBuilder()
	ub.Update(sel.Table)
	ub.Set(ub.Assign(sel.Column, targetID))
	ub.Where(append([]string{ub.Equal(sel.Column, sourceID)}, scopeConds(ub.Equal, "", sel.Scope)...)...)

	query, args := ub.Build()
	return r.exec(ctx, query, args, sel, "reassign rows")
}

// DeleteShadowed deletes the rows owned by sourceID for which targetID already
// owns a row with equal values in every key column.
func (r *Repository) DeleteShadowed(ctx context.Context, sel Selector, keys []string, sourceID, targetID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.DeleteShadowed")
	defer span.End()

	flavor := r.db.Flavor()

	sub := flavor.NewSelectBuilder()
	sub.Select("1")
	sub.From(sub.As(sel.Table, shadowAlias))
	match := append([]string{sub.Equal(database.Column(shadowAlias, sel.Column), targetID)}, scopeConds(sub.Equal, shadowAlias, sel.Scope)...)
	for _, key := range keys {
		match = append(match, database.Equals(database.Column(shadowAlias, key), database.Column(sel.Table, key)))
	}
	sub.Where(match...)

	db := flavor.NewDeleteBuilder()
	db.DeleteFrom(sel.Table)
	conds := append([]string{db.Equal(sel.Column, sourceID)}, scopeConds(db.Equal, "", sel.Scope)...)
	conds = append(conds, fmt.Sprintf("EXISTS (%s)", db.Var(sub)))
	db.Where(conds...)

	query, args := db.Build()
	return r.exec(ctx, query, args, sel, "delete duplicate rows")
}

// Delete removes rows owned by ownerID. When column is set, only rows whose
// column matches one of values are removed.
func (r *Repository) Delete(ctx context.Context, sel Selector, ownerID string, column string, values ...any) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.Delete")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(sel.Table)
	conds := append([]string{db.Equal(sel.Column, ownerID)}, scopeConds(db.Equal, "", sel.Scope)...)
	if column != "" {
		conds = append(conds, db.In(column, values...))
	}
	db.Where(conds...)

	query, args := db.Build()
	return r.exec(ctx, query, args, sel, "delete rows")
}

// HasFlagged reports whether ownerID owns a row with flag set.
func (r *Repository) HasFlagged(ctx context.Context, sel Selector, ownerID string, flag string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.HasFlagged")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(sel.Table)
	sb.Where(append([]string{sb.Equal(sel.Column, ownerID), sb.Equal(flag, true)}, scopeConds(sb.Equal, "", sel.Scope)...)...)

	query, args := sb.Build()
	var count int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &count, query, args...); err != nil {
		return false, repositories.WriteError(err, "failed to read %s.%s", sel.Table, flag)
	}
	return count > 0, nil
}

// ClearFlag unsets flag on every row owned by ownerID.
func (r *Repository) ClearFlag(ctx context.Context, sel Selector, ownerID string, flag string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.ClearFlag")
	defer span.End()

	ub := r.db.Flavor().NewUpdateBuilder()
	ub.Update(sel.Table)
	ub.Set(ub.Assign(flag, false))
	ub.Where(append([]string{ub.Equal(sel.Column, ownerID), ub.Equal(flag, true)}, scopeConds(ub.Equal, "", sel.Scope)...)...)

	query, args := ub.Build()
	return r.exec(ctx, query, args, sel, "clear "+flag)
}

// CarryFlag sets flag on the targetID rows that shadow a flagged sourceID row,
// matching on every key column the way DeleteShadowed does.
func (r *Repository) CarryFlag(ctx context.Context, sel Selector, keys []string, flag string, sourceID, targetID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.CarryFlag")
	defer span.End()

	flavor := r.db.Flavor()

	sub := flavor.NewSelectBuilder()
	sub.Select("1")
	sub.From(sub.As(sel.Table, shadowAlias))
	match := []string{
		sub.Equal(database.Column(shadowAlias, sel.Column), sourceID),
		sub.Equal(database.Column(shadowAlias, flag), true),
	}
	match = append(match, scopeConds(sub.Equal, shadowAlias, sel.Scope)...)
	for _, key := range keys {
		match = append(match, database.Equals(database.Column(shadowAlias, key), database.Column(sel.Table, key)))
	}
	sub.Where(match...)

	ub := flavor.NewUpdateBuilder()
	ub.Update(sel.Table)
	ub.Set(ub.Assign(flag, true))
	conds := append([]string{ub.Equal(sel.Column, targetID)}, scopeConds(ub.Equal, "", sel.Scope)...)
	conds = append(conds, fmt.Sprintf("EXISTS (%s)", ub.Var(sub)))
	ub.Where(conds...)

	query, args := ub.Build()
	return r.exec(ctx, query, args, sel, "carry "+flag)
}

// Count returns the number of rows owned by ownerID.
func (r *Repository) Count(ctx context.Context, sel Selector, ownerID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "relation.Repository.Count")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(sel.Table)
	sb.Where(append([]string{sb.Equal(sel.Column, ownerID)}, scopeConds(sb.Equal, "", sel.Scope)...)...)

	query, args := sb.Build()
	var count int64
	if err := database.Conn(ctx, r.db).GetContext(ctx, &count, query, args...); err != nil {
		return 0, repositories.WriteError(err, "failed to count %s", sel.Table)
	}
	return count, nil
}
