package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	// ErrPromoterAlreadyRunning is returned when Start is called twice
	ErrPromoterAlreadyRunning = errors.New("promoter already running")
)

const (
	DefaultPollInterval = time.Second
	DefaultLockTTL      = 30 * time.Second
	DefaultBatchSize    = 100

	promoteLockKey = "promoter"
)

// PromoterConfig holds configuration for the Promoter
type PromoterConfig struct {
	Stream       string
	PollInterval time.Duration
	LockTTL      time.Duration
	BatchSize    int64
}

// Promoter moves due delayed jobs onto the job stream. A Redis lock keeps
// replicas from promoting the same batch twice.
type Promoter struct {
	streams *redis.Streams
	delayed *redis.DelayedSet
	locker  *redis.Locker
	config  PromoterConfig
	logger  ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.Mutex
}

// NewPromoter creates a promoter for config.Stream
func NewPromoter(client *redis.Client, config PromoterConfig, logger ectologger.Logger) *Promoter {
	if config.Stream == "" {
		config.Stream = DefaultStream
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	return &Promoter{
		streams: redis.NewStreams(client),
		delayed: redis.NewDelayedSet(client, DelayedKey(config.Stream)),
		locker:  redis.NewLocker(client, config.Stream+":lock:"),
		config:  config,
		logger:  logger,
	}
}

// Start runs the poll loop in the background
func (p *Promoter) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrPromoterAlreadyRunning
	}
	p.running = true
	// fresh channels per run so a stopped promoter can be started again
	p.stopCh = make(chan struct{})
	p.stoppedC = make(chan struct{})

	p.logger.WithContext(ctx).Infof("Starting delayed job promoter: stream=%s poll_interval=%s",
		p.config.Stream, p.config.PollInterval)

	go p.pollLoop(ctx, p.stopCh, p.stoppedC)
	return nil
}

// Stop ends the poll loop and waits for it to exit
func (p *Promoter) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, stoppedC := p.stopCh, p.stoppedC
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-stoppedC:
		p.logger.WithContext(ctx).Info("Delayed job promoter stopped")
	case <-ctx.Done():
		p.logger.WithContext(ctx).Warn("Delayed job promoter shutdown timed out")
		return ctx.Err()
	}
	return nil
}

func (p *Promoter) pollLoop(ctx context.Context, stopCh <-chan struct{}, stoppedC chan<- struct{}) {
	defer close(stoppedC)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PromoteDue(ctx, time.Now()); err != nil && !errors.Is(err, redis.ErrLockNotAcquired) {
				p.logger.WithContext(ctx).WithError(err).Error("Failed to promote delayed jobs")
			}
		}
	}
}

// PromoteDue publishes every delayed job due at now and returns how many
// were published. A job rescheduled while being promoted stays in the set and
// runs again once due.
func (p *Promoter) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "queue.Promoter.PromoteDue")
	defer span.End()

	promoted := 0
	err := p.locker.WithLock(ctx, promoteLockKey, p.config.LockTTL, func() error {
		entries, err := p.delayed.Due(ctx, now, p.config.BatchSize)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			var job Job
			if err := json.Unmarshal([]byte(entry.Payload), &job); err != nil {
				p.logger.WithContext(ctx).WithError(err).Warnf("Dropping unreadable delayed job %s", entry.Member)
				_, _ = p.delayed.Remove(ctx, entry)
				continue
			}

			if _, err := p.streams.Publish(ctx, p.config.Stream, &job); err != nil {
				return err
			}
			promoted++
			metrics.DelayedJobsPromoted.Inc()

			if _, err := p.delayed.Remove(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})

	if promoted > 0 {
		p.logger.WithContext(ctx).Debugf("Promoted %d delayed jobs", promoted)
	}
	return promoted, err
}
