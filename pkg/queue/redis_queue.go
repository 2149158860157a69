package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// RedisQueue publishes immediate jobs to a Redis stream and parks delayed
// jobs in a sorted set until the Promoter moves them.
type RedisQueue struct {
	streams *redis.Streams
	delayed *redis.DelayedSet
	stream  string
	logger  ectologger.Logger
	now     func() time.Time
}

// NewRedisQueue creates a queue writing to stream
func NewRedisQueue(client *redis.Client, stream string, logger ectologger.Logger) *RedisQueue {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisQueue{
		streams: redis.NewStreams(client),
		delayed: redis.NewDelayedSet(client, DelayedKey(stream)),
		stream:  stream,
		logger:  logger,
		now:     time.Now,
	}
}

// DelayedKey is the sorted set holding delayed jobs for stream
func DelayedKey(stream string) string {
	return stream + ":delayed"
}

// Enqueue publishes job now, or schedules it after delay. A delayed job with
// the same Key as one still waiting replaces it and pushes its due time out.
func (q *RedisQueue) Enqueue(ctx context.Context, job *Job, delay time.Duration) error {
	ctx, span := tracing.StartSpan(ctx, "queue.RedisQueue.Enqueue")
	defer span.End()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now().UTC()
	}

	if delay <= 0 {
		if _, err := q.streams.Publish(ctx, q.stream, job); err != nil {
			metrics.RecordJobEnqueued(job.Type, "error")
			return fmt.Errorf("failed to publish %s: %w", job.Type, err)
		}
		metrics.RecordJobEnqueued(job.Type, "published")
		return nil
	}

	member := job.Key
	if member == "" {
		member = job.ID
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.delayed.Schedule(ctx, member, payload, q.now().Add(delay)); err != nil {
		metrics.RecordJobEnqueued(job.Type, "error")
		return err
	}

	q.logger.WithContext(ctx).WithFields(map[string]any{
		"job_type": job.Type,
		"job_key":  member,
		"delay":    delay.String(),
	}).Debug("Scheduled delayed job")
	metrics.RecordJobEnqueued(job.Type, "delayed")
	return nil
}
