package merge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeMerger struct {
	result merging.Result
	kind   models.EntityKind
	source string
	target string
}

func (f *fakeMerger) Merge(_ context.Context, kind models.EntityKind, sourceID, targetID string) merging.Result {
	f.kind, f.source, f.target = kind, sourceID, targetID
	return f.result
}

type fakeAudits struct {
	items []models.MergeAudit
	ref   models.EntityRef
	limit int
	err   error
}

func (f *fakeAudits) ListByEntity(_ context.Context, ref models.EntityRef, limit int) ([]models.MergeAudit, error) {
	f.ref, f.limit = ref, limit
	return f.items, f.err
}

// container registers the handler collaborators in a fresh container and
// returns its id. A nil collaborator is left unregistered.
func container(t *testing.T, merger Merger, audits AuditLister) string {
	t.Helper()
	c, err := ectoinject.NewDIContainer(ectocontainer.DIContainerConfig{
		ID:           "merge-test-" + uuid.NewString(),
		LoggerConfig: &ectocontainer.DIContainerLoggerConfig{Enabled: false},
	})
	require.NoError(t, err)
	require.NoError(t, ectoinject.RegisterInstance[ectologger.Logger](c, logging.Silent()))
	if merger != nil {
		require.NoError(t, ectoinject.RegisterInstance[Merger](c, merger))
	}
	if audits != nil {
		require.NoError(t, ectoinject.RegisterInstance[AuditLister](c, audits))
	}
	return c.GetContainerID()
}

func serve(t *testing.T, merger Merger, audits AuditLister, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logging.Silent())
	e.Use(middleware.Container(container(t, merger, audits)))
	Register(e.Group("/merges"))

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name   string
		result merging.Result
		want   int
	}{
		{name: "ok", result: merging.Result{OK: true}, want: http.StatusOK},
		{name: "self merge", result: merging.Result{Error: &merging.Error{Code: merging.ErrorCodeSelfMerge}}, want: http.StatusBadRequest},
		{name: "not found", result: merging.Result{Error: &merging.Error{Code: merging.ErrorCodeNotFound}}, want: http.StatusNotFound},
		{name: "constraint", result: merging.Result{Error: &merging.Error{Code: merging.ErrorCodeConstraintViolation}}, want: http.StatusConflict},
		{name: "unknown", result: merging.Result{Error: &merging.Error{Code: merging.ErrorCodeUnknown}}, want: http.StatusInternalServerError},
		{name: "failed without error", result: merging.Result{}, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.result))
		})
	}
}

func TestHandler_Merge(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		merger := &fakeMerger{result: merging.Result{
			OK:       true,
			Survivor: &models.EntityRef{Kind: models.EntityKindArtist, ID: "t"},
			Stats:    map[string]int{"album_artists": 2},
		}}
		rec := serve(t, merger, &fakeAudits{}, http.MethodPost, "/merges", `{"kind":"Artists","source_id":"s","target_id":"t"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.EntityKindArtist, merger.kind)
		assert.Equal(t, "s", merger.source)
		assert.Equal(t, "t", merger.target)

		var result merging.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.True(t, result.OK)
		assert.Equal(t, 2, result.Stats["album_artists"])
	})

	t.Run("failure keeps the result body", func(t *testing.T) {
		merger := &fakeMerger{result: merging.Result{
			Stats: map[string]int{},
			Error: &merging.Error{Code: merging.ErrorCodeNotFound, Message: "artists s not found"},
		}}
		rec := serve(t, merger, &fakeAudits{}, http.MethodPost, "/merges", `{"kind":"artist","source_id":"s","target_id":"t"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var result merging.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.False(t, result.OK)
		require.NotNil(t, result.Error)
		assert.Equal(t, merging.ErrorCodeNotFound, result.Error.Code)
	})

	for name, body := range map[string]string{
		"malformed":      `{"kind":`,
		"missing target": `{"kind":"artist","source_id":"s"}`,
		"unknown kind":   `{"kind":"playlist","source_id":"s","target_id":"t"}`,
	} {
		t.Run(name, func(t *testing.T) {
			merger := &fakeMerger{}
			rec := serve(t, merger, &fakeAudits{}, http.MethodPost, "/merges", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, merger.kind, "merge must not run")
		})
	}
}

func TestHandler_History(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantLimit int
	}{
		{name: "default limit", target: "/merges/songs/s1/history", wantCode: http.StatusOK, wantLimit: defaultHistoryLimit},
		{name: "explicit limit", target: "/merges/song/s1/history?limit=5", wantCode: http.StatusOK, wantLimit: 5},
		{name: "capped limit", target: "/merges/song/s1/history?limit=10000", wantCode: http.StatusOK, wantLimit: maxHistoryLimit},
		{name: "bad limit", target: "/merges/song/s1/history?limit=0", wantCode: http.StatusBadRequest},
		{name: "bad kind", target: "/merges/playlist/s1/history", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audits := &fakeAudits{items: []models.MergeAudit{{ID: "m1", EntityKind: models.EntityKindSong, SourceID: "s0", TargetID: "s1"}}}
			rec := serve(t, &fakeMerger{}, audits, http.MethodGet, tt.target, "")

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			assert.Equal(t, tt.wantLimit, audits.limit)
			assert.Equal(t, models.EntityRef{Kind: models.EntityKindSong, ID: "s1"}, audits.ref)

			var body HistoryResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Items, 1)
			assert.Equal(t, "m1", body.Items[0].ID)
		})
	}

	t.Run("store failure", func(t *testing.T) {
		audits := &fakeAudits{err: errors.New("connection reset")}
		rec := serve(t, &fakeMerger{}, audits, http.MethodGet, "/merges/song/s1/history", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandler_Unregistered(t *testing.T) {
	rec := serve(t, nil, nil, http.MethodPost, "/merges", `{"kind":"artist","source_id":"s","target_id":"t"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "service unavailable")

	rec = serve(t, nil, nil, http.MethodGet, "/merges/song/s1/history", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
