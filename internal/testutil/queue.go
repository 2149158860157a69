package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/fern/pkg/queue"
)

// EnqueuedJob is one call to RecordingQueue.Enqueue.
type EnqueuedJob struct {
	Job   *queue.Job
	Delay time.Duration
}

// RecordingQueue keeps every job it is given. When Err is set it records
// nothing and fails every call.
type RecordingQueue struct {
	mu   sync.Mutex
	jobs []EnqueuedJob
	Err  error
}

func (q *RecordingQueue) Enqueue(ctx context.Context, job *queue.Job, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.jobs = append(q.jobs, EnqueuedJob{Job: job, Delay: delay})
	return nil
}

// Jobs returns a copy of the recorded jobs.
func (q *RecordingQueue) Jobs() []EnqueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]EnqueuedJob(nil), q.jobs...)
}

// Keys returns the recorded job keys in enqueue order.
func (q *RecordingQueue) Keys() []string {
	jobs := q.Jobs()
	keys := make([]string, 0, len(jobs))
	for _, j := range jobs {
		keys = append(keys, j.Job.Key)
	}
	return keys
}
