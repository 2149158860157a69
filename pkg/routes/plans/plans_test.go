package plans

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
)

func get(t *testing.T, plans merging.Plans, target string) *httptest.ResponseRecorder {
	t.Helper()
	c, err := ectoinject.NewDIContainer(ectocontainer.DIContainerConfig{
		ID:           "plans-test-" + uuid.NewString(),
		LoggerConfig: &ectocontainer.DIContainerLoggerConfig{Enabled: false},
	})
	require.NoError(t, err)
	if plans != nil {
		require.NoError(t, ectoinject.RegisterInstance[merging.Plans](c, plans))
	}

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logging.Silent())
	e.Use(middleware.Container(c.GetContainerID()))
	Register(e.Group("/plans"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandler(t *testing.T) {
	plans, err := merging.DefaultPlans()
	require.NoError(t, err)

	t.Run("list", func(t *testing.T) {
		rec := get(t, plans, "/plans")
		require.Equal(t, http.StatusOK, rec.Code)

		var body ListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Items, len(plans))
		for i, kind := range plans.Kinds() {
			assert.Equal(t, kind, body.Items[i].Kind)
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := get(t, plans, "/plans/albums")
		require.Equal(t, http.StatusOK, rec.Code)

		var plan merging.Plan
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
		assert.Equal(t, models.EntityKindAlbum, plan.Kind)
		assert.Equal(t, "albums", plan.Table)
		assert.NotEmpty(t, plan.Steps)
	})

	t.Run("unknown kind", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(t, plans, "/plans/playlist").Code)
	})

	t.Run("kind without a plan", func(t *testing.T) {
		only := merging.Plans{models.EntityKindArtist: plans[models.EntityKindArtist]}
		assert.Equal(t, http.StatusNotFound, get(t, only, "/plans/song").Code)
	})

	t.Run("plans not registered", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, get(t, nil, "/plans").Code)
		assert.Equal(t, http.StatusInternalServerError, get(t, nil, "/plans/song").Code)
	})
}
