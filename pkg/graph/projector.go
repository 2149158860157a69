package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Writer runs a managed write transaction.
type Writer interface {
	ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error)
}

// Projector applies committed merges to the graph mirror. Nodes are labelled
// by kind and joined by RELATED edges carrying the relationship type.
type Projector struct {
	writer Writer
	logger ectologger.Logger
}

func NewProjector(writer Writer, logger ectologger.Logger) *Projector {
	return &Projector{writer: writer, logger: logger}
}

func (p *Projector) Name() string {
	return "graph_projection"
}

// Label returns the node label for kind ("artist" -> "Artist").
func Label(kind models.EntityKind) string {
	s := kind.String()
	if s == "" {
		return "Entity"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Statements returns the Cypher that folds the source node into the target.
// Edges between the two are dropped rather than turned into self-loops.
func Statements(kind models.EntityKind) []string {
	label := Label(kind)
	return []string{
		fmt.Sprintf(`
			MERGE (t:%s {id: $target_id})
			SET t.merged_ids = coalesce(t.merged_ids, []) + $source_id`, label),
		fmt.Sprintf(`
			MATCH (s:%[1]s {id: $source_id})-[r:RELATED]->(o)
			WHERE o.id <> $target_id
			MATCH (t:%[1]s {id: $target_id})
			MERGE (t)-[:RELATED {type: r.type}]->(o)`, label),
		fmt.Sprintf(`
			MATCH (o)-[r:RELATED]->(s:%[1]s {id: $source_id})
			WHERE o.id <> $target_id
			MATCH (t:%[1]s {id: $target_id})
			MERGE (o)-[:RELATED {type: r.type}]->(t)`, label),
		fmt.Sprintf(`
			MATCH (s:%s {id: $source_id})
			DETACH DELETE s`, label),
	}
}

// AfterMerge mirrors outcome in one graph transaction.
func (p *Projector) AfterMerge(ctx context.Context, outcome *merging.Outcome) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.AfterMerge")
	defer span.End()

	params := map[string]any{
		"source_id": outcome.Source.ID,
		"target_id": outcome.Target.ID,
	}

	_, err := p.writer.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, cypher := range Statements(outcome.Kind) {
			result, err := tx.Run(ctx, cypher, params)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		metrics.RecordGraphProjection(outcome.Kind.String(), "error")
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"kind":      outcome.Kind,
			"source_id": outcome.Source.ID,
			"target_id": outcome.Target.ID,
		}).Error("Failed to project merge into graph")
		return fmt.Errorf("failed to project merge into graph: %w", err)
	}

	metrics.RecordGraphProjection(outcome.Kind.String(), "success")
	return nil
}
