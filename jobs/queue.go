package jobs

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO buffer of pending jobs shared by all
// submitters and workers. Enqueue and Dequeue are atomic with respect to
// concurrent callers: every enqueued job is delivered to exactly one
// dequeuer, with no duplicates and no loss. FIFO order holds among jobs
// that were not enqueued concurrently; relative order across racing
// producers is unspecified.
type Queue struct {
	mu     sync.Mutex
	items  []*Job
	signal chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a job to the tail and wakes one waiting dequeuer.
func (q *Queue) Enqueue(j *Job) {
	q.mu.Lock()
	q.items = append(q.items, j)
	q.mu.Unlock()
	q.wake()
}

// Dequeue removes and returns the job at the head, blocking until one is
// available or the context is done.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			j := q.items[0]
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				// The single-slot signal can coalesce wakeups under
				// concurrent enqueues; pass the baton so no waiter
				// sleeps while work remains.
				q.wake()
			}
			return j, nil
		}
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len reports the number of jobs waiting to be claimed.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
