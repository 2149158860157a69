package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/database"
)

func TestGetTx(t *testing.T) {
	conn := testutil.TempDB(t)
	logger := testutil.Logger()
	ctx := context.Background()

	t.Run("commit persists writes", func(t *testing.T) {
		txCtx, tx, err := database.GetTx(ctx, logger, conn, nil)
		require.NoError(t, err)
		assert.True(t, tx.IsOwner())

		_, err = database.Conn(txCtx, conn).ExecContext(txCtx, "INSERT INTO categories (id, name) VALUES ('c1', 'rock')")
		require.NoError(t, err)
		require.NoError(t, tx.Commit(txCtx))
		assert.False(t, tx.IsOpen())

		assert.Equal(t, 1, testutil.Count(t, conn, "categories", map[string]any{"id": "c1"}))
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		txCtx, tx, err := database.GetTx(ctx, logger, conn, nil)
		require.NoError(t, err)

		_, err = database.Conn(txCtx, conn).ExecContext(txCtx, "INSERT INTO categories (id, name) VALUES ('c2', 'jazz')")
		require.NoError(t, err)
		require.NoError(t, tx.Rollback(txCtx))

		assert.Equal(t, 0, testutil.Count(t, conn, "categories", map[string]any{"id": "c2"}))
	})

	t.Run("nested handle joins without owning", func(t *testing.T) {
		txCtx, tx, err := database.GetTx(ctx, logger, conn, nil)
		require.NoError(t, err)

		innerCtx, inner, err := database.GetTx(txCtx, logger, conn, nil)
		require.NoError(t, err)
		assert.False(t, inner.IsOwner())

		_, err = database.Conn(innerCtx, conn).ExecContext(innerCtx, "INSERT INTO categories (id, name) VALUES ('c3', 'folk')")
		require.NoError(t, err)

		// neither call may end the outer transaction
		require.NoError(t, inner.Commit(innerCtx))
		require.NoError(t, inner.Rollback(innerCtx))
		assert.True(t, tx.IsOpen())

		require.NoError(t, tx.Rollback(txCtx))
		assert.False(t, inner.IsOpen())
		assert.Equal(t, 0, testutil.Count(t, conn, "categories", map[string]any{"id": "c3"}))
	})

	t.Run("closing twice is a no-op", func(t *testing.T) {
		txCtx, tx, err := database.GetTx(ctx, logger, conn, nil)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(txCtx))
		assert.NoError(t, tx.Commit(txCtx))
		assert.NoError(t, tx.Rollback(txCtx))
	})
}

func TestIsConstraintViolation(t *testing.T) {
	conn := testutil.TempDB(t)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx, "INSERT INTO categories (id, name) VALUES ('c1', 'rock')")
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, "INSERT INTO categories (id, name) VALUES ('c2', 'rock')")
	require.Error(t, err)
	assert.True(t, database.IsConstraintViolation(err))
	assert.NotEmpty(t, database.ConstraintName(err))

	_, err = conn.ExecContext(ctx, "INSERT INTO album_artists (id, album_id, artist_id) VALUES ('x', 'missing', 'missing')")
	require.Error(t, err)
	assert.True(t, database.IsConstraintViolation(err), "foreign keys are enforced")

	_, err = conn.ExecContext(ctx, "SELECT * FROM no_such_table")
	require.Error(t, err)
	assert.False(t, database.IsConstraintViolation(err))
	assert.False(t, database.IsConstraintViolation(nil))
}
