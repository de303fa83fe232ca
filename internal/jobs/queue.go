package jobs

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Next once the queue is closed and drained.
var ErrQueueClosed = errors.New("run queue closed")

// RunQueue carries "run completed" signals from the scheduler to the
// delivery engine. Pending signals coalesce into the latest run id, so the
// producer never blocks and the queue never grows.
type RunQueue struct {
	mu      sync.Mutex
	latest  int64
	pending bool
	closed  bool
	notify  chan struct{}
}

// NewRunQueue creates an empty queue.
func NewRunQueue() *RunQueue {
	return &RunQueue{notify: make(chan struct{}, 1)}
}

// Push records that run id finished. Pushing to a closed queue is a no-op.
func (q *RunQueue) Push(id int64) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.latest = id
	q.pending = true
	q.mu.Unlock()
	q.wake()
}

// Close stops the producer side. A pending signal is still handed out.
func (q *RunQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// Next waits for a signal and returns the latest run id.
func (q *RunQueue) Next(ctx context.Context) (int64, error) {
	for {
		q.mu.Lock()
		if q.pending {
			q.pending = false
			id := q.latest
			q.mu.Unlock()
			return id, nil
		}
		if q.closed {
			q.mu.Unlock()
			return 0, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *RunQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
