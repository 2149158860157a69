package testutil

import (
	"testing"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// Catalog seeds catalog rows with generated ids.
type Catalog struct {
	t  *testing.T
	db database.DB
}

func NewCatalog(t *testing.T, conn database.DB) *Catalog {
	return &Catalog{t: t, db: conn}
}

func (c *Catalog) insert(table string, row map[string]any) string {
	c.t.Helper()
	if _, ok := row["id"]; !ok {
		row["id"] = uuid.New().String()
	}
	Insert(c.t, c.db, table, row)
	return row["id"].(string)
}

// Artist inserts an artist. formedYear may be nil.
func (c *Catalog) Artist(name string, formedYear any) string {
	return c.insert("artists", map[string]any{"name": name, "formed_year": formedYear})
}

func (c *Catalog) Album(title string, releaseYear any) string {
	return c.insert("albums", map[string]any{"title": title, "release_year": releaseYear})
}

func (c *Catalog) Song(title string, releaseYear, durationMS any) string {
	return c.insert("songs", map[string]any{"title": title, "release_year": releaseYear, "duration_ms": durationMS})
}

func (c *Catalog) AlbumArtist(albumID, artistID string) string {
	return c.insert("album_artists", map[string]any{"album_id": albumID, "artist_id": artistID})
}

func (c *Catalog) SongArtist(songID, artistID, role string) string {
	return c.insert("song_artists", map[string]any{"song_id": songID, "artist_id": artistID, "role": role})
}

func (c *Catalog) AlbumSong(albumID, songID string) string {
	return c.insert("album_songs", map[string]any{"album_id": albumID, "song_id": songID})
}

func (c *Catalog) Credit(songID, artistID, role string) string {
	return c.insert("credits", map[string]any{"song_id": songID, "artist_id": artistID, "role": role})
}

func (c *Catalog) ArtistRelationship(fromID, toID, relType string) string {
	return c.insert("artist_relationships", map[string]any{"from_artist_id": fromID, "to_artist_id": toID, "relationship_type": relType})
}

func (c *Catalog) SongRelationship(fromID, toID, relType string) string {
	return c.insert("song_relationships", map[string]any{"from_song_id": fromID, "to_song_id": toID, "relationship_type": relType})
}

func (c *Catalog) Identifier(kind, entityID, idType, value string) string {
	return c.insert("identifiers", map[string]any{"entity_kind": kind, "entity_id": entityID, "identifier_type": idType, "value": value})
}

func (c *Catalog) Category(name string) string {
	return c.insert("categories", map[string]any{"name": name})
}

func (c *Catalog) Categorization(kind, entityID, categoryID string) string {
	return c.insert("categorizations", map[string]any{"entity_kind": kind, "entity_id": entityID, "category_id": categoryID})
}

func (c *Catalog) ExternalLink(kind, entityID, url string) string {
	return c.insert("external_links", map[string]any{"entity_kind": kind, "entity_id": entityID, "url": url})
}

func (c *Catalog) Image(kind, entityID, url string, primary bool) string {
	return c.insert("images", map[string]any{"entity_kind": kind, "entity_id": entityID, "url": url, "is_primary": primary})
}

func (c *Catalog) RankingConfiguration(name string) string {
	return c.insert("ranking_configurations", map[string]any{"name": name})
}

func (c *Catalog) RankedItem(configurationID, kind, entityID string) string {
	return c.insert("ranked_items", map[string]any{"ranking_configuration_id": configurationID, "entity_kind": kind, "entity_id": entityID})
}
