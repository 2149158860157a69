package mergeaudit

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "merge_audits"

var columns = []string{"id", "entity_kind", "source_id", "target_id", "stats", "merged_by", "created_at"}

// Repository handles merge audit persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merge audit repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create records a merge. Call it inside the merge transaction.
func (r *Repository) Create(ctx context.Context, audit *models.MergeAudit) (*models.MergeAudit, error) {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.Create")
	defer span.End()

	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}
	if audit.Stats.Data == nil {
		audit.Stats.Data = map[string]int{}
	}
	audit.CreatedAt = time.Now().UTC()

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(audit.ID, string(audit.EntityKind), audit.SourceID, audit.TargetID, audit.Stats, audit.MergedBy, audit.CreatedAt)

	query, args := ib.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create merge audit")
		return nil, repositories.WriteError(err, "failed to create merge audit")
	}

	return audit, nil
}

// ListByEntity returns the merges where the entity was source or survivor, newest first.
func (r *Repository) ListByEntity(ctx context.Context, ref models.EntityRef, limit int) ([]models.MergeAudit, error) {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.ListByEntity")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("entity_kind", string(ref.Kind)),
		sb.Or(sb.Equal("target_id", ref.ID), sb.Equal("source_id", ref.ID)),
	)
	sb.OrderBy("created_at").Desc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	audits := []models.MergeAudit{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &audits, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list merge audits")
		return nil, repositories.WriteError(err, "failed to list merge audits for %s", ref)
	}
	return audits, nil
}
