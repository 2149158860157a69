package scope

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/queue"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DefaultRecalculationDelay lets a burst of merges against one configuration
// settle into a single rankings pass.
const DefaultRecalculationDelay = time.Minute

// Scheduler is the only place merge follow-up work is enqueued.
type Scheduler struct {
	queue  queue.Enqueuer
	delay  time.Duration
	logger ectologger.Logger
}

func NewScheduler(q queue.Enqueuer, delay time.Duration, logger ectologger.Logger) *Scheduler {
	if delay <= 0 {
		delay = DefaultRecalculationDelay
	}
	return &Scheduler{
		queue:  q,
		delay:  delay,
		logger: logger,
	}
}

// Schedule enqueues a weights recalculation now and a delayed rankings
// recalculation for every configuration in s. It keeps going after a failed
// enqueue and returns the joined errors.
func (s *Scheduler) Schedule(ctx context.Context, sc Scope) error {
	ctx, span := tracing.StartSpan(ctx, "scope.Scheduler.Schedule")
	defer span.End()

	var errs []error
	for _, id := range sc.ConfigurationIDs {
		if err := s.queue.Enqueue(ctx, queue.NewRecalculateJob(id, queue.StageWeights), 0); err != nil {
			errs = append(errs, fmt.Errorf("configuration %s weights: %w", id, err))
		}
		if err := s.queue.Enqueue(ctx, queue.NewRecalculateJob(id, queue.StageRankings), s.delay); err != nil {
			errs = append(errs, fmt.Errorf("configuration %s rankings: %w", id, err))
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"kind":           sc.Kind,
		"configurations": len(sc.ConfigurationIDs),
		"failed":         len(errs),
	}).Debug("Scheduled ranking recalculation")

	return errors.Join(errs...)
}

// ReindexTarget enqueues a reindex of the surviving entity.
func (s *Scheduler) ReindexTarget(ctx context.Context, ref models.EntityRef) error {
	ctx, span := tracing.StartSpan(ctx, "scope.Scheduler.ReindexTarget")
	defer span.End()

	if err := s.queue.Enqueue(ctx, queue.NewReindexJob(ref.Kind.String(), ref.ID), 0); err != nil {
		return fmt.Errorf("reindex %s: %w", ref, err)
	}
	return nil
}
