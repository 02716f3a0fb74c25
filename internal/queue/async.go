package queue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kursadbilgin/activity-batch-engine/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAsyncWorkers    = 1
	defaultPublishAttempts = 3
	basePublishRetryDelay  = 200 * time.Millisecond
	maxPublishRetryDelay   = 5 * time.Second
	maxRetryJitterMillis   = 100
	publishTimeout         = 10 * time.Second
)

type publishJob struct {
	partitionKey string
	topic        string
	event        InstructionEvent
}

// AsyncPublisher accepts events without blocking the caller and publishes
// them from a fixed worker pool. Failed publishes are retried a few times,
// then logged and dropped.
type AsyncPublisher struct {
	next     EventPublisher
	jobs     chan publishJob
	workers  int
	attempts int
	logger   *zap.Logger
	metrics  *observability.Metrics
	randIntn func(n int) int
	sleep    func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(
	next EventPublisher,
	bufferSize int,
	workers int,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*AsyncPublisher, error) {
	if next == nil {
		return nil, fmt.Errorf("event publisher is required")
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	if workers < defaultAsyncWorkers {
		workers = defaultAsyncWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AsyncPublisher{
		next:     next,
		jobs:     make(chan publishJob, bufferSize),
		workers:  workers,
		attempts: defaultPublishAttempts,
		logger:   logger,
		metrics:  metrics,
		randIntn: rand.Intn,
		sleep:    sleepContext,
	}, nil
}

// Publish enqueues the event. It never waits for the broker.
func (p *AsyncPublisher) Publish(_ context.Context, partitionKey string, topic string, event InstructionEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("async publisher is closed")
	}

	select {
	case p.jobs <- publishJob{partitionKey: partitionKey, topic: topic, event: event}:
		p.metrics.SetEventsPending(len(p.jobs))
		return nil
	default:
		p.metrics.IncEventFailed(topic, "buffer_full")
		return ErrPublishBufferFull
	}
}

// Start runs the workers until Close drains the buffer.
// Context cancellation only aborts in-flight retries.
func (p *AsyncPublisher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		workerID := i + 1
		g.Go(func() error {
			p.logger.Info("event publisher worker started", zap.Int("workerId", workerID))
			for job := range p.jobs {
				p.metrics.SetEventsPending(len(p.jobs))
				p.deliver(groupCtx, job)
			}
			p.logger.Info("event publisher worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

// Close stops accepting events. Workers exit once the buffer is drained.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	return nil
}

func (p *AsyncPublisher) deliver(ctx context.Context, job publishJob) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		lastErr = p.next.Publish(publishCtx, job.partitionKey, job.topic, job.event)
		cancel()

		if lastErr == nil {
			p.metrics.IncEventPublished(job.topic)
			return
		}
		if attempt == p.attempts {
			break
		}
		if err := p.sleep(ctx, p.retryDelay(attempt)); err != nil {
			lastErr = fmt.Errorf("%w (retry aborted: %v)", lastErr, err)
			break
		}
	}

	p.metrics.IncEventFailed(job.topic, "publish_error")
	p.logger.Error("failed to publish instruction event",
		zap.String("topic", job.topic),
		zap.String("partitionKey", job.partitionKey),
		zap.String("mid", job.event.MID),
		zap.String("action", job.event.EData.Action),
		zap.Error(lastErr),
	)
}

func (p *AsyncPublisher) retryDelay(attempt int) time.Duration {
	delay := basePublishRetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxPublishRetryDelay {
			delay = maxPublishRetryDelay
			break
		}
	}

	jitterMillis := 0
	if p.randIntn != nil {
		jitterMillis = p.randIntn(maxRetryJitterMillis + 1)
	}
	return delay + time.Duration(jitterMillis)*time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
