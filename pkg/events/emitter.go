// Package events announces committed merges to other services.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const EventEntityMerged = "entity.merged"

// Publisher writes entity events to the bus.
type Publisher interface {
	PublishEntityEvent(ctx context.Context, event *kafka.EntityEvent) error
}

// Emitter publishes an entity.merged event after each committed merge.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

func (e *Emitter) Name() string {
	return "entity_merged_event"
}

// AfterMerge emits the entity.merged event for outcome.
func (e *Emitter) AfterMerge(ctx context.Context, outcome *merging.Outcome) error {
	return e.EmitEntityMerged(ctx, outcome)
}

// EmitEntityMerged emits an entity merged event keyed by the survivor
func (e *Emitter) EmitEntityMerged(ctx context.Context, outcome *merging.Outcome) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntityMerged")
	defer span.End()

	data, err := json.Marshal(map[string]any{
		"schema_version":    kafka.SchemaVersion,
		"audit_id":          outcome.AuditID,
		"stats":             outcome.Stats,
		"configuration_ids": outcome.Scope.ConfigurationIDs,
		"merged_by":         outcome.MergedBy,
	})
	if err != nil {
		return err
	}

	event := &kafka.EntityEvent{
		EventType:      EventEntityMerged,
		EntityID:       outcome.Target.ID,
		EntityKind:     outcome.Kind.String(),
		Data:           data,
		SourceEntities: []string{outcome.Source.ID},
		Timestamp:      outcome.MergedAt,
	}

	if err := e.publisher.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.merged event")
		return err
	}

	return nil
}
