// Package plans serves the merge plans the engine runs.
package plans

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Register registers plan inspection routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.GET("/:kind", Get)
}

// ListResponse lists every plan in kind order
type ListResponse struct {
	Items []*merging.Plan `json:"items"`
}

func List(c echo.Context) error {
	_, plans, err := ectoinject.GetContext[merging.Plans](c.Request().Context())
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	items := make([]*merging.Plan, 0, len(plans))
	for _, kind := range plans.Kinds() {
		plan, _ := plans.Get(kind)
		items = append(items, plan)
	}
	return c.JSON(http.StatusOK, ListResponse{Items: items})
}

func Get(c echo.Context) error {
	kind, err := models.ParseEntityKind(c.Param("kind"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	_, plans, err := ectoinject.GetContext[merging.Plans](c.Request().Context())
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	plan, ok := plans.Get(kind)
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "no merge plan for %s", kind)
	}
	return c.JSON(http.StatusOK, plan)
}
