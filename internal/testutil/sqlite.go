// Package testutil provides databases and fixtures for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/db"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/logging"
)

// Logger returns a logger that discards everything.
func Logger() ectologger.Logger {
	return logging.Silent()
}

// TempDB opens a migrated SQLite catalog in t.TempDir.
func TempDB(t *testing.T) database.DB {
	t.Helper()

	logger := Logger()
	conn, err := database.Open(context.Background(), database.ConnectionConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "fern.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	Migrate(t, conn)
	return conn
}

// Migrate applies the embedded migrations for the connection's driver.
func Migrate(t *testing.T, conn database.DB) {
	t.Helper()

	fsys, dir := db.Migrations(conn.DriverName())
	err := database.NewMigrationService(Logger(), &database.MigrationConfig{
		FS:                  fsys,
		MigrationFolderPath: dir,
	}).MigrateDB(conn)
	require.NoError(t, err)
}

// Insert writes one row.
func Insert(t *testing.T, conn database.DB, table string, row map[string]any) {
	t.Helper()

	cols := make([]string, 0, len(row))
	vals := make([]any, 0, len(row))
	for col, val := range row {
		cols = append(cols, col)
		vals = append(vals, val)
	}

	ib := conn.Flavor().NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(cols...)
	ib.Values(vals...)

	query, args := ib.Build()
	_, err := conn.ExecContext(context.Background(), query, args...)
	require.NoError(t, err, "insert into %s", table)
}

// Count returns the number of rows in table matching every column = value pair.
func Count(t *testing.T, conn database.DB, table string, where map[string]any) int {
	t.Helper()

	sb := conn.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(table)
	sb.Where(conds(sb, where)...)

	query, args := sb.Build()
	var count int
	require.NoError(t, conn.GetContext(context.Background(), &count, query, args...))
	return count
}

// Column reads one column of the row with id.
func Column[T any](t *testing.T, conn database.DB, table, id, column string) T {
	t.Helper()

	sb := conn.Flavor().NewSelectBuilder()
	sb.Select(column)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var value T
	require.NoError(t, conn.GetContext(context.Background(), &value, query, args...))
	return value
}

func conds(sb *sqlbuilder.SelectBuilder, where map[string]any) []string {
	exprs := make([]string, 0, len(where)+1)
	exprs = append(exprs, "1 = 1")
	for col, val := range where {
		exprs = append(exprs, sb.Equal(col, val))
	}
	return exprs
}
