// Package schema introspects the live catalog schema.
package schema

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Reference is one column that points at an entity table.
type Reference struct {
	Table  string `json:"table" db:"table_name"`
	Column string `json:"column" db:"column_name"`
}

const (
	pgForeignKeys = `
		SELECT kcu.table_name AS table_name, kcu.column_name AS column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = current_schema()
			AND ccu.table_name = ?
		ORDER BY 1, 2`

	sqliteForeignKeys = `
		SELECT m.name AS table_name, p."from" AS column_name
		FROM sqlite_master m
		JOIN pragma_foreign_key_list(m.name) p
		WHERE m.type = 'table' AND p."table" = ?
		ORDER BY 1, 2`

	pgPolymorphicTables = `
		SELECT table_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND column_name IN ('entity_kind', 'entity_id')
		GROUP BY table_name
		HAVING COUNT(DISTINCT column_name) = 2
		ORDER BY table_name`

	sqlitePolymorphicTables = `
		SELECT m.name
		FROM sqlite_master m
		JOIN pragma_table_info(m.name) c
		WHERE m.type = 'table' AND c.name IN ('entity_kind', 'entity_id')
		GROUP BY m.name
		HAVING COUNT(DISTINCT c.name) = 2
		ORDER BY m.name`
)

// Repository reads foreign key metadata from the store's catalog.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new schema repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) pick(pg, sqlite string) string {
	if r.db.DriverName() == database.DriverSQLite {
		return sqlite
	}
	return r.db.Rebind(pg)
}

// ForeignKeys lists every column holding a foreign key to table.
func (r *Repository) ForeignKeys(ctx context.Context, table string) ([]Reference, error) {
	ctx, span := tracing.StartSpan(ctx, "schema.Repository.ForeignKeys")
	defer span.End()

	refs := []Reference{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &refs, r.pick(pgForeignKeys, sqliteForeignKeys), table); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("Failed to read foreign keys")
		return nil, repositories.WriteError(err, "failed to read foreign keys of %s", table)
	}
	return refs, nil
}

// PolymorphicTables lists tables that reference entities through an
// (entity_kind, entity_id) pair instead of a foreign key.
func (r *Repository) PolymorphicTables(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "schema.Repository.PolymorphicTables")
	defer span.End()

	tables := []string{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &tables, r.pick(pgPolymorphicTables, sqlitePolymorphicTables)); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read polymorphic tables")
		return nil, repositories.WriteError(err, "failed to read polymorphic tables")
	}
	return tables, nil
}
