package ratelimit

import (
	"context"
	"time"

	"github.com/krishna-kudari/apigateway/store"
)

// Scheduler is the queue-based shaping counterpart to LeakyBucket's
// admission form: instead of failing with BucketFull, callers enqueue and
// a single drain goroutine releases one request per leak interval. This
// restores the task-queue scheduling behavior the distilled spec's
// admission-only form leaves out.
type Scheduler struct {
	queue    *store.BoundedQueue[chan struct{}]
	interval time.Duration
	stop     chan struct{}
}

// NewScheduler creates a Scheduler draining at one admission per interval,
// queuing up to capacity waiters before rejecting with ErrQueueFull.
func NewScheduler(capacity int, interval time.Duration) *Scheduler {
	s := &Scheduler{
		queue:    store.NewBoundedQueue[chan struct{}](capacity),
		interval: interval,
		stop:     make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *Scheduler) drain() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			ch, ok := s.queue.Get(ctx, s.interval)
			cancel()
			if ok {
				close(ch)
			}
		}
	}
}

// Wait enqueues the caller and blocks until it is released or ctx is done.
// Returns store.ErrQueueFull immediately if the queue is at capacity.
func (s *Scheduler) Wait(ctx context.Context) error {
	ch := make(chan struct{})
	if err := s.queue.Put(ch); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the drain goroutine.
func (s *Scheduler) Close() {
	close(s.stop)
}
