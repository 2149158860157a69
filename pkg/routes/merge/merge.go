// Package merge exposes the merge engine and its audit trail over HTTP.
package merge

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var validate = validator.New()

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Merger runs one merge.
type Merger interface {
	Merge(ctx context.Context, kind models.EntityKind, sourceID, targetID string) merging.Result
}

// AuditLister reads the merge audit trail.
type AuditLister interface {
	ListByEntity(ctx context.Context, ref models.EntityRef, limit int) ([]models.MergeAudit, error)
}

// Register registers merge routes
func Register(g *echo.Group) {
	g.POST("", Merge)
	g.GET("/:kind/:id/history", History)
}

// MergeRequest is the body of POST /merges
type MergeRequest struct {
	Kind     string `json:"kind" validate:"required"`
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
}

// HistoryResponse lists audits touching one entity
type HistoryResponse struct {
	Items []models.MergeAudit `json:"items"`
}

// StatusCode maps a merge result onto the HTTP status returned with it.
func StatusCode(result merging.Result) int {
	if result.OK {
		return http.StatusOK
	}
	if result.Error == nil {
		return http.StatusInternalServerError
	}
	return result.Error.StatusCode()
}

// Merge folds source_id into target_id. The body is always a merging.Result.
func Merge(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "merge_handler.Merge")
	defer span.End()

	var req MergeRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	kind, err := models.ParseEntityKind(req.Kind)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, merger, err := ectoinject.GetContext[Merger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result := merger.Merge(ctx, kind, req.SourceID, req.TargetID)

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil && !result.OK && result.Error != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"kind":      kind,
			"source_id": req.SourceID,
			"target_id": req.TargetID,
			"code":      result.Error.Code,
		}).Info("Merge rejected")
	}

	return c.JSON(StatusCode(result), result)
}

// History returns the merges in which the entity was source or target.
func History(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "merge_handler.History")
	defer span.End()

	kind, err := models.ParseEntityKind(c.Param("kind"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
	}

	ctx, audits, err := ectoinject.GetContext[AuditLister](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	items, err := audits.ListByEntity(ctx, models.EntityRef{Kind: kind, ID: c.Param("id")}, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, HistoryResponse{Items: items})
}
