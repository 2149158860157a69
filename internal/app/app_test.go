package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/testutil"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/queue"
	"github.com/Ramsey-B/fern/pkg/routes/merge"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppName:                       "fern-test",
		Version:                       "test",
		DatabaseDriver:                "sqlite3",
		DatabasePath:                  filepath.Join(t.TempDir(), "fern.db"),
		DatabaseMigrateOnStart:        true,
		DatabaseMigrationAutoRollback: true,
		StartupMaxAttempts:            1,
		RecalculationDelay:            time.Minute,
		AllowOrigins:                  []string{"*"},
		AllowMethods:                  []string{http.MethodGet, http.MethodPost},
	}
}

func startApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(cfg, testutil.Logger())
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func TestLoadPlans(t *testing.T) {
	t.Run("embedded", func(t *testing.T) {
		plans, err := LoadPlans("")
		require.NoError(t, err)
		assert.Equal(t, []models.EntityKind{models.EntityKindAlbum, models.EntityKindArtist, models.EntityKindSong}, plans.Kinds())
	})

	t.Run("directory", func(t *testing.T) {
		dir := t.TempDir()
		plan := "kind: song\ntable: songs\nsteps:\n  - relation: credits\n    strategy: reassign_all\n    table: credits\n    column: song_id\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "song.yaml"), []byte(plan), 0o600))

		plans, err := LoadPlans(dir)
		require.NoError(t, err)
		assert.Equal(t, []models.EntityKind{models.EntityKindSong}, plans.Kinds())
	})
}

func TestMigrationConfig(t *testing.T) {
	cfg := sqliteConfig(t)
	mc := MigrationConfig(cfg)
	assert.NotNil(t, mc.FS, "embedded migrations are used when no folder is set")
	assert.Equal(t, "sqlite", mc.MigrationFolderPath)

	cfg.DatabaseMigrationFolderPath = "/srv/migrations"
	mc = MigrationConfig(cfg)
	assert.Nil(t, mc.FS)
	assert.Equal(t, "/srv/migrations", mc.MigrationFolderPath)
}

func TestApp_StartWithoutRedis(t *testing.T) {
	a := startApp(t, sqliteConfig(t))

	require.NotNil(t, a.Engine)
	assert.IsType(t, &queue.LogQueue{}, a.Queue)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.Producer)
	assert.Nil(t, a.Graph)
	assert.NoError(t, a.CheckCoverage(context.Background()))

	require.NotNil(t, a.Container)
	ctx, err := ectoinject.SetActiveContainer(context.Background(), a.Container.GetContainerID())
	require.NoError(t, err)
	_, merger, err := ectoinject.GetContext[merge.Merger](ctx)
	require.NoError(t, err)
	assert.Same(t, a.Engine, merger)
	_, plans, err := ectoinject.GetContext[merging.Plans](ctx)
	require.NoError(t, err)
	assert.Equal(t, a.Plans.Kinds(), plans.Kinds())
}

func TestApp_Router(t *testing.T) {
	a := startApp(t, sqliteConfig(t))
	catalog := testutil.NewCatalog(t, a.DB)
	source := catalog.Song("Kiss", 1986, nil)
	target := catalog.Song("Kiss", 1986, 226000)
	album := catalog.Album("Parade", 1986)
	catalog.AlbumSong(album, source)

	e, checker := a.NewRouter(nil)
	checker.SetReady(true)

	serve := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "curator-7")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(http.MethodPost, "/api/v1/merges", `{"kind":"song","source_id":"`+source+`","target_id":"`+target+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result merging.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.OK)
	assert.Equal(t, 1, result.Stats["album_songs"])

	rec = serve(http.MethodGet, "/api/v1/merges/song/"+target+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history merge.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Items, 1)
	assert.Equal(t, source, history.Items[0].SourceID)
	require.NotNil(t, history.Items[0].MergedBy)
	assert.Equal(t, "curator-7", *history.Items[0].MergedBy)

	rec = serve(http.MethodPost, "/api/v1/merges", `{"kind":"song","source_id":"`+source+`","target_id":"`+target+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, "the source is gone")

	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/plans/song", "").Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/v1/health/ready", "").Code)
}

func TestNewEngine_RecordsJobs(t *testing.T) {
	conn := testutil.TempDB(t)
	plans, err := merging.DefaultPlans()
	require.NoError(t, err)

	catalog := testutil.NewCatalog(t, conn)
	source := catalog.Album("Sign o' the Times", 1987)
	target := catalog.Album("Sign o' the Times", 1987)
	cfg := catalog.RankingConfiguration("best albums")
	catalog.RankedItem(cfg, "album", source)

	q := &testutil.RecordingQueue{}
	engine := NewEngine(conn, plans, q, 30*time.Second, testutil.Logger())

	result := engine.Merge(context.Background(), models.EntityKindAlbum, source, target)
	require.True(t, result.OK, "%+v", result.Error)
	assert.ElementsMatch(t, []string{
		"reindex_entity:album:" + target,
		"recalculate_ranking_configuration:" + cfg + ":weights",
		"recalculate_ranking_configuration:" + cfg + ":rankings",
	}, q.Keys())
}
