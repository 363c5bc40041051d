package taskqueue

import (
	"context"
	"slices"
	"sync"
	"time"
)

// InMemoryQueue is a bounded, process-local Queue ordered by NotBefore and
// then by enqueue order. It is safe for concurrent use.
type InMemoryQueue struct {
	mu       sync.Mutex
	tasks    []Task
	capacity int
	notify   chan struct{}
}

// NewInMemoryQueue creates a new queue with the given capacity.
// For tests and small deployments, a modest capacity (e.g. 1024) is fine.
func NewInMemoryQueue(capacity int) *InMemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &InMemoryQueue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Ensure InMemoryQueue implements Queue.
var _ Queue = (*InMemoryQueue)(nil)

func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	if len(q.tasks) >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}
	// Keep the slice sorted by due time; equal due times stay FIFO.
	due := dueAt(t)
	i := slices.IndexFunc(q.tasks, func(o Task) bool { return dueAt(o).After(due) })
	if i < 0 {
		i = len(q.tasks)
	}
	q.tasks = slices.Insert(q.tasks, i, t)
	q.mu.Unlock()

	q.wake()
	return nil
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		wait := time.Duration(-1)
		if len(q.tasks) > 0 {
			head := q.tasks[0]
			now := time.Now()
			if head.Ready(now) {
				q.tasks = q.tasks[1:]
				more := len(q.tasks) > 0
				q.mu.Unlock()
				if more {
					// Pass the wakeup on to the next waiting consumer.
					q.wake()
				}
				return &head, nil
			}
			wait = head.NotBefore.Sub(now)
		}
		q.mu.Unlock()

		if wait < 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-q.notify:
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.notify:
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (q *InMemoryQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func dueAt(t Task) time.Time {
	if t.NotBefore.IsZero() {
		return t.EnqueuedAt
	}
	return t.NotBefore
}
