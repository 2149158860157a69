package entity

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository reads and writes catalog entity rows. Tables are passed in by the
// caller and must already be validated identifiers.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Lock loads the given rows, taking row locks in id order where supported,
// and returns 404 naming the first id that does not exist.
func (r *Repository) Lock(ctx context.Context, table string, ids ...string) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Lock")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("id")
	sb.From(table)
	sb.Where(sb.In("id", ectolinq.Map(ids, func(id string) any { return id })...))
	sb.OrderBy("id")
	database.LockForUpdate(sb, r.db.Flavor())

	query, args := sb.Build()
	var found []string
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &found, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("Failed to lock entities")
		return repositories.WriteError(err, "failed to lock %s", table)
	}

	for _, id := range ids {
		if !ectolinq.Contains(found, id) {
			return httperror.NewHTTPErrorf(http.StatusNotFound, "%s %s not found", table, id)
		}
	}
	return nil
}

// Exists reports whether a row with id exists.
func (r *Repository) Exists(ctx context.Context, table string, id string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Exists")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var count int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &count, query, args...); err != nil {
		return false, repositories.WriteError(err, "failed to check %s %s", table, id)
	}
	return count > 0, nil
}

// GetInt reads a nullable integer column.
func (r *Repository) GetInt(ctx context.Context, table string, id string, column string) (*int64, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.GetInt")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(column)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var value sql.NullInt64
	if err := database.Conn(ctx, r.db).GetContext(ctx, &value, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "%s %s not found", table, id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"table": table, "column": column}).Error("Failed to read entity column")
		return nil, repositories.WriteError(err, "failed to read %s.%s", table, column)
	}

	if !value.Valid {
		return nil, nil
	}
	return &value.Int64, nil
}

// Update assigns columns on one row and bumps updated_at.
func (r *Repository) Update(ctx context.Context, table string, id string, columns map[string]any) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Update")
	defer span.End()

	if len(columns) == 0 {
		return nil
	}

	ub := r.db.Flavor().NewUpdateBuilder()
	ub.Update(table)
	assignments := make([]string, 0, len(columns)+1)
	for column, value := range columns {
		assignments = append(assignments, ub.Assign(column, value))
	}
	assignments = append(assignments, ub.Assign("updated_at", time.Now().UTC()))
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("Failed to update entity")
		return repositories.WriteError(err, "failed to update %s %s", table, id)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "%s %s not found", table, id)
	}
	return nil
}

// Delete removes one row. A foreign key still pointing at it fails with 409.
func (r *Repository) Delete(ctx context.Context, table string, id string) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Delete")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("Failed to delete entity")
		return repositories.WriteError(err, "failed to delete %s %s", table, id)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "%s %s not found", table, id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"table": table, "id": id}).Debug("Deleted entity")
	return nil
}
