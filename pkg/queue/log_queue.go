package queue

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

// LogQueue only logs jobs. It stands in when Redis is disabled so local runs
// and the CLI can still merge.
type LogQueue struct {
	logger ectologger.Logger
}

func NewLogQueue(logger ectologger.Logger) *LogQueue {
	return &LogQueue{logger: logger}
}

func (q *LogQueue) Enqueue(ctx context.Context, job *Job, delay time.Duration) error {
	q.logger.WithContext(ctx).WithFields(map[string]any{
		"job_type": job.Type,
		"job_key":  job.Key,
		"payload":  job.Payload,
		"delay":    delay.String(),
	}).Info("Job not queued, Redis is disabled")
	metrics.RecordJobEnqueued(job.Type, "logged")
	return nil
}
