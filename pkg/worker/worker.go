package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/petrijr/stepflow/internal/taskqueue"
	"github.com/petrijr/stepflow/pkg/api"
)

// Runner starts and resumes workflow runs by name. *stepflow.Registry
// implements it.
type Runner interface {
	Execute(ctx context.Context, name string, opts api.ExecuteOptions) (*api.RunResult, error)
	Resume(ctx context.Context, runID string, triggerData any) (*api.RunResult, error)
}

// Config controls how a Worker retries tasks whose run returned an error.
// Step failures inside a run are part of its result and never retried here.
type Config struct {
	// MaxAttempts is the total number of times a task is tried. Values
	// <= 0 mean 1 (no retries).
	MaxAttempts int

	// Backoff is the delay before the first retry; it doubles on each
	// further attempt.
	Backoff time.Duration

	// MaxBackoff caps the delay between retries. Zero means
	// DefaultMaxBackoff.
	MaxBackoff time.Duration

	// OnResult, when set, is called after every processed task with the
	// run's outcome.
	OnResult func(task taskqueue.Task, result *api.RunResult, err error)
}

// DefaultMaxBackoff is the retry delay cap used when Config.MaxBackoff is zero.
const DefaultMaxBackoff = 5 * time.Minute

// Worker pulls tasks from a Queue and runs them with a Runner.
type Worker struct {
	runner Runner
	queue  taskqueue.Queue
	cfg    Config

	// policy is copied for every retry decision; ProcessOne may run on
	// several goroutines.
	policy backoff.ExponentialBackOff
}

// New creates a new Worker that tries each task once.
func New(runner Runner, queue taskqueue.Queue) *Worker {
	return NewWithConfig(runner, queue, Config{})
}

// NewWithConfig creates a Worker with explicit retry settings.
func NewWithConfig(runner Runner, queue taskqueue.Queue, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.Backoff > cfg.MaxBackoff {
		cfg.Backoff = cfg.MaxBackoff
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.Backoff
	eb.MaxInterval = cfg.MaxBackoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	return &Worker{runner: runner, queue: queue, cfg: cfg, policy: *eb}
}

// EnqueueExecute enqueues a new run of workflowName and returns the task id.
// It does NOT run the workflow itself; that is done by ProcessOne.
func (w *Worker) EnqueueExecute(ctx context.Context, workflowName string, triggerData any) (string, error) {
	return w.EnqueueExecuteAt(ctx, workflowName, triggerData, time.Time{})
}

// EnqueueExecuteAt is EnqueueExecute for a run that must not start before at.
func (w *Worker) EnqueueExecuteAt(ctx context.Context, workflowName string, triggerData any, at time.Time) (string, error) {
	t := taskqueue.Task{
		ID:           uuid.NewString(),
		Type:         taskqueue.TaskExecute,
		WorkflowName: workflowName,
		TriggerData:  triggerData,
		EnqueuedAt:   time.Now(),
		NotBefore:    at,
	}
	return t.ID, w.queue.Enqueue(ctx, t)
}

// EnqueueResume enqueues the continuation of a suspended run. A nil
// triggerData reuses the trigger data stored with the run.
func (w *Worker) EnqueueResume(ctx context.Context, runID string, triggerData any) (string, error) {
	return w.EnqueueResumeAt(ctx, runID, triggerData, time.Time{})
}

// EnqueueResumeAt is EnqueueResume for a resume that must not happen before at.
func (w *Worker) EnqueueResumeAt(ctx context.Context, runID string, triggerData any, at time.Time) (string, error) {
	t := taskqueue.Task{
		ID:          uuid.NewString(),
		Type:        taskqueue.TaskResume,
		RunID:       runID,
		TriggerData: triggerData,
		EnqueuedAt:  time.Now(),
		NotBefore:   at,
	}
	return t.ID, w.queue.Enqueue(ctx, t)
}

// ProcessOne pulls a single task from the queue and processes it.
// Returns (processed, error):
//   - processed == false: no task was obtained (ctx cancelled or dequeue failed).
//   - processed == true, err == nil: the run finished, or failed and was
//     re-enqueued for another attempt.
//   - processed == true, err != nil: the run failed with no attempts left,
//     or the task was malformed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	result, runErr := w.dispatch(ctx, *task)
	if w.cfg.OnResult != nil {
		w.cfg.OnResult(*task, result, runErr)
	}
	if runErr == nil {
		return true, nil
	}
	if !retryable(runErr) {
		return true, runErr
	}
	delay := w.backoff(task.Attempts)
	if delay == backoff.Stop {
		return true, runErr
	}

	retry := *task
	retry.Attempts++
	retry.NotBefore = time.Now().Add(delay)
	if err := w.queue.Enqueue(ctx, retry); err != nil {
		return true, fmt.Errorf("re-enqueue task %s: %w (run error: %v)", task.ID, err, runErr)
	}
	return true, nil
}

func (w *Worker) dispatch(ctx context.Context, task taskqueue.Task) (*api.RunResult, error) {
	switch task.Type {
	case taskqueue.TaskExecute:
		return w.runner.Execute(ctx, task.WorkflowName, api.ExecuteOptions{TriggerData: task.TriggerData})
	case taskqueue.TaskResume:
		return w.runner.Resume(ctx, task.RunID, task.TriggerData)
	default:
		// Unknown task type; mark as processed but return an error so this isn't silently ignored.
		return nil, errUnknownTask{typ: task.Type}
	}
}

// backoff returns the delay before retrying a task that has failed
// attempt+1 times, or backoff.Stop once MaxAttempts is used up.
func (w *Worker) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	eb := w.policy
	eb.Reset()
	b := backoff.WithMaxRetries(&eb, uint64(w.cfg.MaxAttempts-1))

	d := backoff.Stop
	for range attempt + 1 {
		if d = b.NextBackOff(); d == backoff.Stop {
			break
		}
	}
	return d
}

type errUnknownTask struct {
	typ taskqueue.TaskType
}

func (e errUnknownTask) Error() string {
	return "unknown task type: " + string(e.typ)
}

// retryable reports whether another attempt could change the outcome.
// Invalid input, unknown tasks and cancellation are final.
func retryable(err error) bool {
	var unknown errUnknownTask
	switch {
	case errors.As(err, &unknown),
		errors.Is(err, api.ErrTriggerValidation),
		errors.Is(err, api.ErrNotCommitted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
