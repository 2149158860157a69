// Package queue hands downstream work to the external workers.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/redis"
)

// Job is the envelope consumed by the indexing and ranking workers.
type Job = redis.JobMessage

const (
	// JobReindexEntity asks the search indexer to refresh one entity
	JobReindexEntity = "reindex_entity"
	// JobRecalculateRankingConfiguration asks the ranking worker to recompute a configuration
	JobRecalculateRankingConfiguration = "recalculate_ranking_configuration"

	StageWeights  = "weights"
	StageRankings = "rankings"

	// DefaultStream is the stream the workers consume
	DefaultStream = "fern:jobs"
)

// Enqueuer accepts a job, optionally delayed. Jobs sharing a Key may be
// coalesced while they wait.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job, delay time.Duration) error
}

// NewReindexJob builds a reindex_entity job
func NewReindexJob(kind, id string) *Job {
	return &Job{
		Key:  fmt.Sprintf("%s:%s:%s", JobReindexEntity, kind, id),
		Type: JobReindexEntity,
		Payload: map[string]any{
			"id":   id,
			"kind": kind,
		},
	}
}

// NewRecalculateJob builds a recalculate_ranking_configuration job for stage
func NewRecalculateJob(configurationID, stage string) *Job {
	return &Job{
		Key:  fmt.Sprintf("%s:%s:%s", JobRecalculateRankingConfiguration, configurationID, stage),
		Type: JobRecalculateRankingConfiguration,
		Payload: map[string]any{
			"id":    configurationID,
			"stage": stage,
		},
	}
}
