package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/schema"
	"github.com/Ramsey-B/fern/internal/testutil"
)

func TestRepository_ForeignKeys(t *testing.T) {
	conn := testutil.TempDB(t)
	repo := schema.NewRepository(conn, testutil.Logger())

	refs, err := repo.ForeignKeys(context.Background(), "artists")
	require.NoError(t, err)
	assert.ElementsMatch(t, []schema.Reference{
		{Table: "album_artists", Column: "artist_id"},
		{Table: "artist_relationships", Column: "from_artist_id"},
		{Table: "artist_relationships", Column: "to_artist_id"},
		{Table: "credits", Column: "artist_id"},
		{Table: "song_artists", Column: "artist_id"},
	}, refs)

	refs, err = repo.ForeignKeys(context.Background(), "no_such_table")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestRepository_PolymorphicTables(t *testing.T) {
	conn := testutil.TempDB(t)
	repo := schema.NewRepository(conn, testutil.Logger())

	tables, err := repo.PolymorphicTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"categorizations", "external_links", "identifiers", "images", "ranked_items"}, tables)
}
