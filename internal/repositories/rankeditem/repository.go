package rankeditem

import (
	"context"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "ranked_items"

// Repository handles ranked item persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new ranked item repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ConfigurationIDs returns the distinct ranking configurations that rank any of
// the given entities, sorted by id.
func (r *Repository) ConfigurationIDs(ctx context.Context, kind models.EntityKind, entityIDs ...string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "rankeditem.Repository.ConfigurationIDs")
	defer span.End()

	if len(entityIDs) == 0 {
		return []string{}, nil
	}

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("ranking_configuration_id")
	sb.Distinct()
	sb.From(table)
	sb.Where(
		sb.Equal("entity_kind", string(kind)),
		sb.In("entity_id", ectolinq.Map(entityIDs, func(id string) any { return id })...),
	)
	sb.OrderBy("ranking_configuration_id")

	query, args := sb.Build()
	ids := []string{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("entity_kind", kind).Error("Failed to list ranking configurations")
		return nil, repositories.WriteError(err, "failed to list ranking configurations")
	}
	return ids, nil
}

// ListByEntity returns the ranked items placing one entity.
func (r *Repository) ListByEntity(ctx context.Context, ref models.EntityRef) ([]models.RankedItem, error) {
	ctx, span := tracing.StartSpan(ctx, "rankeditem.Repository.ListByEntity")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("id", "ranking_configuration_id", "entity_kind", "entity_id", "rank", "score")
	sb.From(table)
	sb.Where(sb.Equal("entity_kind", string(ref.Kind)), sb.Equal("entity_id", ref.ID))
	sb.OrderBy("ranking_configuration_id")

	query, args := sb.Build()
	items := []models.RankedItem{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &items, query, args...); err != nil {
		return nil, repositories.WriteError(err, "failed to list ranked items for %s", ref)
	}
	return items, nil
}
