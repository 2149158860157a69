package relation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/relation"
	"github.com/Ramsey-B/fern/internal/testutil"
)

func TestRepository_Reassign(t *testing.T) {
	conn := testutil.TempDB(t)
	c := testutil.NewCatalog(t, conn)
	repo := relation.NewRepository(conn, testutil.Logger())
	ctx := context.Background()

	source := c.Artist("Beatles", nil)
	target := c.Artist("The Beatles", nil)
	song := c.Song("Help!", nil, nil)
	c.Credit(song, source, "writer")
	c.Credit(song, source, "producer")
	c.Credit(song, target, "writer")

	n, err := repo.Reassign(ctx, relation.Selector{Table: "credits", Column: "artist_id"}, source, target)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, testutil.Count(t, conn, "credits", map[string]any{"artist_id": source}))
	assert.Equal(t, 3, testutil.Count(t, conn, "credits", map[string]any{"artist_id": target}))
}

func TestRepository_ReassignScoped(t *testing.T) {
	conn := testutil.TempDB(t)
	c := testutil.NewCatalog(t, conn)
	repo := relation.NewRepository(conn, testutil.Logger())
	ctx := context.Background()

	// an album and an artist may share an id space; scope keeps them apart
	c.ExternalLink("artist", "a1", "https://example.com/artist")
	c.ExternalLink("album", "a1", "https://example.com/album")

	sel := relation.Selector{Table: "external_links", Column: "entity_id", Scope: map[string]any{"entity_kind": "artist"}}
	n, err := repo.Reassign(ctx, sel, "a1", "a2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, testutil.Count(t, conn, "external_links", map[string]any{"entity_kind": "album", "entity_id": "a1"}))
	assert.Equal(t, 1, testutil.Count(t, conn, "external_links", map[string]any{"entity_kind": "artist", "entity_id": "a2"}))
}

func TestRepository_DeleteShadowed(t *testing.T) {
	conn := testutil.TempDB(t)
	c := testutil.NewCatalog(t, conn)
	repo := relation.NewRepository(conn, testutil.Logger())
	ctx := context.Background()

	source := c.Artist("Prince", nil)
	target := c.Artist("Prince Rogers Nelson", nil)
	shared := c.Song("Purple Rain", nil, nil)
	only := c.Song("Kiss", nil, nil)

	c.SongArtist(shared, source, "primary")
	c.SongArtist(shared, source, "featured")
	c.SongArtist(only, source, "primary")
	c.SongArtist(shared, target, "primary")

	sel := relation.Selector{Table: "song_artists", Column: "artist_id"}
	n, err := repo.DeleteShadowed(ctx, sel, []string{"song_id", "role"}, source, target)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the (shared, primary) row is shadowed")

	n, err = repo.Reassign(ctx, sel, source, target)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 3, testutil.Count(t, conn, "song_artists", map[string]any{"artist_id": target}))
}

func TestRepository_DeleteShadowedScoped(t *testing.T) {
	conn := testutil.TempDB(t)
	c := testutil.NewCatalog(t, conn)
	repo := relation.NewRepository(conn, testutil.Logger())
	ctx := context.Background()

	rock := c.Category("rock")
	c.Categorization("song", "s1", rock)
	c.Categorization("song", "s2", rock)
	// same ids under another kind must not count as shadowing
	c.Categorization("album", "s1", rock)

	sel := relation.Selector{Table: "categorizations", Column: "entity_id", Scope: map[string]any{"entity_kind": "album"}}
	n, err := repo.DeleteShadowed(ctx, sel, []string{"category_id"}, "s1", "s2")
	require.NoError(t, err)
	assert.Zero(t, n)

	sel.Scope["entity_kind"] = "song"
	n, err = repo.DeleteShadowed(ctx, sel, []string{"category_id"}, "s1", "s2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, testutil.Count(t, conn, "categorizations", map[string]any{"entity_id": "s1"}))
}

func TestRepository_Delete(t *testing.T) {
	conn := testutil.TempDB(t)
	c := testutil.NewCatalog(t, conn)
	repo := relation.NewRepository(conn, testutil.Logger())
	ctx := context.Background()

	a := c.Artist("A", nil)
	b := c.Artist("B", nil)
	d := c.Artist("D", nil)
	c.ArtistRelationship(a, b, "member_of")
	c.ArtistRelationship(a, d, "member_of")

	sel := relation.Selector{Table: "artist_relationships", Column: "from_artist_id"}

	n, err := repo.Delete(ctx, sel, a, "to_artist_id", b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Delete(ctx, sel, a, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, testutil.Count(t, conn, "artist_relationships", nil))
}

func TestRepository_Flags(t *testing.T) {
	conn := testutil.TempDB(t)
	c := testutil.NewCatalog(t, conn)
	repo := relation.NewRepository(conn, testutil.Logger())
	ctx := context.Background()

	c.Image("artist", "a1", "https://img/1", true)
	c.Image("artist", "a1", "https://img/2", false)
	c.Image("artist", "a2", "https://img/3", false)

	sel := relation.Selector{Table: "images", Column: "entity_id", Scope: map[string]any{"entity_kind": "artist"}}

	flagged, err := repo.HasFlagged(ctx, sel, "a1", "is_primary")
	require.NoError(t, err)
	assert.True(t, flagged)

	flagged, err = repo.HasFlagged(ctx, sel, "a2", "is_primary")
	require.NoError(t, err)
	assert.False(t, flagged)

	n, err := repo.ClearFlag(ctx, sel, "a1", "is_primary")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := repo.Count(ctx, sel, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Zero(t, testutil.Count(t, conn, "images", map[string]any{"is_primary": true}))
}

func TestRepository_CarryFlag(t *testing.T) {
	conn := testutil.TempDB(t)
	c := testutil.NewCatalog(t, conn)
	repo := relation.NewRepository(conn, testutil.Logger())
	ctx := context.Background()

	c.Image("artist", "a1", "https://img/shared", true)
	c.Image("artist", "a1", "https://img/other", false)
	shared := c.Image("artist", "a2", "https://img/shared", false)
	c.Image("artist", "a2", "https://img/own", false)
	// same url under another kind is out of scope
	c.Image("album", "a2", "https://img/shared", false)

	sel := relation.Selector{Table: "images", Column: "entity_id", Scope: map[string]any{"entity_kind": "artist"}}
	n, err := repo.CarryFlag(ctx, sel, []string{"url"}, "is_primary", "a1", "a2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, testutil.Count(t, conn, "images", map[string]any{"id": shared, "is_primary": true}))
	assert.Equal(t, 1, testutil.Count(t, conn, "images", map[string]any{"entity_id": "a2", "is_primary": true}))

	// an unflagged source row carries nothing
	c.Image("artist", "a3", "https://img/own", false)
	n, err = repo.CarryFlag(ctx, sel, []string{"url"}, "is_primary", "a3", "a2")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, testutil.Count(t, conn, "images", map[string]any{"entity_id": "a2", "is_primary": true}))
}

func TestRepository_ReassignConflict(t *testing.T) {
	conn := testutil.TempDB(t)
	c := testutil.NewCatalog(t, conn)
	repo := relation.NewRepository(conn, testutil.Logger())

	album := c.Album("Abbey Road", nil)
	source := c.Artist("Beatles", nil)
	target := c.Artist("The Beatles", nil)
	c.AlbumArtist(album, source)
	c.AlbumArtist(album, target)

	// without deduplication the unique constraint fires
	_, err := repo.Reassign(context.Background(), relation.Selector{Table: "album_artists", Column: "artist_id"}, source, target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constraint violation")
}
