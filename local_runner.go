package stepflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/petrijr/stepflow/internal/taskqueue"
	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/pkg/worker"
)

// LocalRunner bundles a Registry, an in-memory task queue and a Worker to
// run workflows in the background of a single process.
//
// Typical usage:
//
//	runner := stepflow.NewLocalRunner(store)
//	runner.Registry.MustRegister(wf)
//	_ = runner.StartWorkers(ctx, 2)
//	_, _ = runner.ExecuteAsync(ctx, wf.Name(), input)
//	...
//	runner.Stop()
type LocalRunner struct {
	// Registry holds the workflows this runner can start.
	Registry *Registry

	// Queue is the task queue used by the Worker, in-memory unless
	// WithQueue is given.
	Queue Queue

	// Worker processes tasks from Queue using Registry.
	Worker *worker.Worker

	logger  *slog.Logger
	results chan *api.RunResult

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Queue holds pending run requests for LocalRunner workers.
type Queue = taskqueue.Queue

// RunnerOption configures a LocalRunner.
type RunnerOption func(*LocalRunner)

// WithQueue replaces the default in-memory queue, e.g. with one returned
// by OpenQueue so tasks survive a restart.
func WithQueue(q Queue) RunnerOption {
	return func(r *LocalRunner) { r.Queue = q }
}

// WithRunnerLogger sets the logger for worker loop errors.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *LocalRunner) { r.logger = logger }
}

// NewLocalRunner constructs a LocalRunner whose registry resumes runs from
// store (which may be nil if nothing suspends).
//
// This is intended for local development, tests, and simple single-process
// deployments.
func NewLocalRunner(store api.RecordStore, opts ...RunnerOption) *LocalRunner {
	r := &LocalRunner{
		Registry: NewRegistry(store),
		logger:   slog.Default(),
		results:  make(chan *api.RunResult, 64),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Queue == nil {
		r.Queue = taskqueue.NewInMemoryQueue(1024)
	}
	r.Worker = worker.NewWithConfig(r.Registry, r.Queue, worker.Config{
		MaxAttempts: 3,
		Backoff:     100 * time.Millisecond,
		OnResult: func(_ taskqueue.Task, res *api.RunResult, err error) {
			if err != nil || res == nil {
				return
			}
			select {
			case r.results <- res:
			default:
				// Nobody is reading; drop rather than stall the worker.
			}
		},
	})
	return r
}

// Results delivers the result of every run a worker finishes. Results are
// dropped when the buffer is full.
func (r *LocalRunner) Results() <-chan *api.RunResult {
	return r.results
}

// StartWorkers starts 'concurrency' worker goroutines that continuously call
// Worker.ProcessOne(ctx) until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns an error.
func (r *LocalRunner) StartWorkers(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("stepflow: LocalRunner already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer r.wg.Done()

			for {
				processed, err := r.Worker.ProcessOne(ctx)
				if err != nil {
					// For local runner we treat cancellation as a clean shutdown signal.
					if ctx.Err() != nil {
						return
					}
					// For other errors, log and keep going so a single bad task
					// doesn't kill the worker loop.
					r.logger.Warn("stepflow: local runner task failed", slog.Any("error", err))
					continue
				}
				if !processed {
					continue
				}
			}
		}()
	}

	return nil
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// ExecuteAsync enqueues a new run of the named workflow and returns the
// task id. The workflow must already be registered on r.Registry.
func (r *LocalRunner) ExecuteAsync(ctx context.Context, workflowName string, triggerData any) (string, error) {
	return r.Worker.EnqueueExecute(ctx, workflowName, triggerData)
}

// ResumeAsync enqueues the continuation of a suspended run.
func (r *LocalRunner) ResumeAsync(ctx context.Context, runID string, triggerData any) (string, error) {
	return r.Worker.EnqueueResume(ctx, runID, triggerData)
}
