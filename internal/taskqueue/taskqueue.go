// Package taskqueue holds pending run requests for background workers.
package taskqueue

import (
	"context"
	"errors"
	"time"
)

// TaskType identifies what the worker should do.
type TaskType string

const (
	// TaskExecute starts a new run of WorkflowName.
	TaskExecute TaskType = "execute"

	// TaskResume continues the suspended run RunID.
	TaskResume TaskType = "resume"
)

// ErrQueueFull is returned by bounded queues that cannot take more tasks.
var ErrQueueFull = errors.New("task queue full")

// Task is a queued run request.
type Task struct {
	ID   string   `json:"id"`
	Type TaskType `json:"type"`

	WorkflowName string `json:"workflowName,omitempty"`
	RunID        string `json:"runId,omitempty"`

	// TriggerData travels as JSON, so typed values come back as maps.
	TriggerData any `json:"triggerData,omitempty"`

	EnqueuedAt time.Time `json:"enqueuedAt"`

	// NotBefore is the earliest time this task may be handed out. Zero
	// means immediately.
	NotBefore time.Time `json:"notBefore"`

	// Attempts counts how often the task was handed out and put back.
	Attempts int `json:"attempts"`
}

// Ready reports whether t may be dequeued at now.
func (t Task) Ready(now time.Time) bool {
	return t.NotBefore.IsZero() || !t.NotBefore.After(now)
}

// Queue is a simple async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next ready task, blocking until one
	// is available or the context is cancelled.
	Dequeue(ctx context.Context) (*Task, error)

	// Len returns the approximate number of tasks queued.
	Len() int
}
