package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/merging"
)

// sqliteEnv points every command at a fresh SQLite file with the optional
// integrations switched off.
func sqliteEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fern.db")
	for key, value := range map[string]string{
		"DB_DRIVER":                "sqlite3",
		"DB_PATH":                  path,
		"DB_MIGRATE_ON_START":      "false",
		"REDIS_ENABLED":            "false",
		"EVENTS_ENABLED":           "false",
		"GRAPH_PROJECTION_ENABLED": "false",
		"OTLP_ENABLED":             "false",
		"AUTH_ENABLED":             "false",
		"PLANS_PATH":               "",
		"LOG_LEVEL":                "error",
		"STARTUP_MAX_ATTEMPTS":     "1",
	} {
		t.Setenv(key, value)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_SQLite(t *testing.T) {
	path := sqliteEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "migrated sqlite3 database\n", out)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "none.env"))
	require.NoError(t, err)
	require.Equal(t, path, cfg.DatabasePath)
	conn, err := database.Open(context.Background(), app.ConnectionConfig(cfg), testutil.Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	catalog := testutil.NewCatalog(t, conn)
	source := catalog.Artist("Prince", 1978)
	target := catalog.Artist("Prince", nil)
	album := catalog.Album("Purple Rain", 1984)
	catalog.AlbumArtist(album, source)

	t.Run("plans check", func(t *testing.T) {
		out, err := run(t, "plans", "check")
		require.NoError(t, err)
		assert.Contains(t, out, "artist: ok")
		assert.Contains(t, out, "song: ok")
	})

	t.Run("merge", func(t *testing.T) {
		out, err := run(t, "--format", "json", "merge", "--kind", "artist", "--source", source, "--target", target)
		require.NoError(t, err)

		var result merging.Result
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.True(t, result.OK)
		assert.Equal(t, target, result.Survivor.ID)
		assert.Equal(t, 1, result.Stats["album_artists"])
		assert.Equal(t, 1, result.Stats["formed_year"])

		assert.Zero(t, testutil.Count(t, conn, "artists", map[string]any{"id": source}))
		assert.Equal(t, 1, testutil.Count(t, conn, "album_artists", map[string]any{"artist_id": target}))
	})

	t.Run("rejected merge exits 1", func(t *testing.T) {
		out, err := run(t, "merge", "--kind", "artist", "--source", target, "--target", target)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "merge failed (self_merge)")
	})

	t.Run("bad kind exits 2", func(t *testing.T) {
		_, err := run(t, "merge", "--kind", "playlist", "--source", source, "--target", target)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}
