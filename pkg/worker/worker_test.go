package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/internal/engine"
	"github.com/petrijr/stepflow/internal/persistence"
	"github.com/petrijr/stepflow/internal/taskqueue"
	"github.com/petrijr/stepflow/pkg/api"
)

type call struct {
	kind    string
	name    string
	trigger any
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	errs  []error
}

func (f *fakeRunner) next(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeRunner) Execute(ctx context.Context, name string, opts api.ExecuteOptions) (*api.RunResult, error) {
	if err := f.next(call{kind: "execute", name: name, trigger: opts.TriggerData}); err != nil {
		return nil, err
	}
	return &api.RunResult{RunID: "run-" + name, TriggerData: opts.TriggerData}, nil
}

func (f *fakeRunner) Resume(ctx context.Context, runID string, triggerData any) (*api.RunResult, error) {
	if err := f.next(call{kind: "resume", name: runID, trigger: triggerData}); err != nil {
		return nil, err
	}
	return &api.RunResult{RunID: runID}, nil
}

func TestWorker_ProcessesExecuteAndResume(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{}
	var results []*api.RunResult
	w := NewWithConfig(runner, taskqueue.NewInMemoryQueue(10), Config{
		OnResult: func(task taskqueue.Task, res *api.RunResult, err error) {
			require.NoError(t, err)
			results = append(results, res)
		},
	})

	id, err := w.EnqueueExecute(ctx, "orders", map[string]any{"n": 1})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, err = w.EnqueueResume(ctx, "run-42", nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		processed, err := w.ProcessOne(ctx)
		require.NoError(t, err)
		assert.True(t, processed)
	}

	require.Len(t, runner.calls, 2)
	assert.Equal(t, call{kind: "execute", name: "orders", trigger: map[string]any{"n": 1}}, runner.calls[0])
	assert.Equal(t, call{kind: "resume", name: "run-42"}, runner.calls[1])
	require.Len(t, results, 2)
	assert.Equal(t, "run-orders", results[0].RunID)
}

func TestWorker_RetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{errs: []error{errors.New("store unavailable")}}
	queue := taskqueue.NewInMemoryQueue(10)
	backoff := 30 * time.Millisecond
	w := NewWithConfig(runner, queue, Config{MaxAttempts: 3, Backoff: backoff})

	_, err := w.EnqueueExecute(ctx, "flaky", nil)
	require.NoError(t, err)

	start := time.Now()
	processed, err := w.ProcessOne(ctx)
	require.NoError(t, err, "a retry was scheduled")
	assert.True(t, processed)
	assert.Equal(t, 1, queue.Len())

	processed, err = w.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.GreaterOrEqual(t, time.Since(start), backoff)
	assert.Len(t, runner.calls, 2)
	assert.Equal(t, 0, queue.Len())
}

func TestWorker_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	runner := &fakeRunner{errs: []error{boom, boom}}
	w := NewWithConfig(runner, taskqueue.NewInMemoryQueue(10), Config{MaxAttempts: 2})

	_, err := w.EnqueueResume(ctx, "r", nil)
	require.NoError(t, err)

	_, err = w.ProcessOne(ctx)
	require.NoError(t, err)
	_, err = w.ProcessOne(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestWorker_BackoffIsCapped(t *testing.T) {
	w := NewWithConfig(&fakeRunner{}, taskqueue.NewInMemoryQueue(1), Config{
		MaxAttempts: 1000,
		Backoff:     100 * time.Millisecond,
		MaxBackoff:  time.Minute,
	})

	assert.Equal(t, 100*time.Millisecond, w.backoff(0))
	assert.Equal(t, 200*time.Millisecond, w.backoff(1))
	assert.Equal(t, 400*time.Millisecond, w.backoff(2))
	for _, attempt := range []int{20, 36, 37, 40, 998} {
		assert.Equal(t, time.Minute, w.backoff(attempt), "attempt %d", attempt)
	}
	assert.Negative(t, int64(w.backoff(999)), "no attempts left")
}

func TestWorker_LargeMaxAttemptsSchedulesRetrySoon(t *testing.T) {
	ctx := context.Background()
	queue := taskqueue.NewInMemoryQueue(1)
	runner := &fakeRunner{errs: []error{errors.New("store unavailable")}}
	w := NewWithConfig(runner, queue, Config{MaxAttempts: 100, Backoff: time.Millisecond, MaxBackoff: 20 * time.Millisecond})

	require.NoError(t, queue.Enqueue(ctx, taskqueue.Task{ID: "late", Type: taskqueue.TaskExecute, WorkflowName: "wf", Attempts: 60}))

	processed, err := w.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	dctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	task, err := queue.Dequeue(dctx)
	require.NoError(t, err)
	assert.Equal(t, 61, task.Attempts)
	assert.WithinDuration(t, time.Now(), task.NotBefore, 100*time.Millisecond)
}

func TestWorker_DoesNotRetryPermanentErrors(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{errs: []error{api.ErrTriggerValidation}}
	queue := taskqueue.NewInMemoryQueue(10)
	w := NewWithConfig(runner, queue, Config{MaxAttempts: 5})

	_, err := w.EnqueueExecute(ctx, "strict", "bad")
	require.NoError(t, err)

	processed, err := w.ProcessOne(ctx)
	assert.True(t, processed)
	assert.ErrorIs(t, err, api.ErrTriggerValidation)
	assert.Equal(t, 0, queue.Len())
}

func TestWorker_UnknownTaskType(t *testing.T) {
	ctx := context.Background()
	queue := taskqueue.NewInMemoryQueue(10)
	w := NewWithConfig(&fakeRunner{}, queue, Config{MaxAttempts: 3})

	require.NoError(t, queue.Enqueue(ctx, taskqueue.Task{ID: "x", Type: "signal"}))

	processed, err := w.ProcessOne(ctx)
	assert.True(t, processed)
	assert.EqualError(t, err, "unknown task type: signal")
	assert.Equal(t, 0, queue.Len())
}

func TestWorker_ProcessOneHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(&fakeRunner{}, taskqueue.NewInMemoryQueue(1))
	processed, err := w.ProcessOne(ctx)
	assert.False(t, processed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorker_ResumesSuspendedRunFromSQLiteQueue(t *testing.T) {
	ctx := context.Background()
	p, err := persistence.Open(ctx, persistence.Options{Driver: persistence.DriverSQLite})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	review := api.NewStep("review", func(ctx context.Context, params api.ActionParams) (any, error) {
		time.Sleep(100 * time.Millisecond)
		return map[string]any{"approved": true}, nil
	})
	gate := &api.Step{ID: "gate", Retry: &api.RetryConfig{Attempts: 1, Delay: 5 * time.Millisecond}}
	done := api.NewStep("done", func(ctx context.Context, params api.ActionParams) (any, error) {
		return "finished", nil
	})
	approved := api.Ref(api.FromStep(review, "approved"), api.Eq(true))
	m, err := engine.Compile(engine.Definition{
		Name: "approval",
		Graph: api.StepGraph{
			Initial: []*api.StepNode{
				{Step: review},
				{Step: gate, Config: api.StepConfig{When: &approved, SnapshotOnTimeout: true}},
			},
			Next: map[string][]*api.StepNode{"gate": {{Step: done}}},
		},
		Steps: map[string]*api.Step{"review": review, "gate": gate, "done": done},
	}, engine.Config{Store: p.Records})
	require.NoError(t, err)

	registry := engine.NewRegistry(p.Records)
	require.NoError(t, registry.Register(m))

	db := openSQLite(t)
	queue, err := taskqueue.NewSQLiteQueue(db)
	require.NoError(t, err)

	var last *api.RunResult
	w := NewWithConfig(registry, queue, Config{
		OnResult: func(_ taskqueue.Task, res *api.RunResult, err error) {
			require.NoError(t, err)
			last = res
		},
	})

	_, err = w.EnqueueExecute(ctx, "approval", map[string]any{"requester": "ann"})
	require.NoError(t, err)
	_, err = w.ProcessOne(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, []string{"gate"}, last.Suspended())
	runID := last.RunID

	assert.True(t, last.Results["review"].Succeeded())

	_, err = w.EnqueueResume(ctx, runID, nil)
	require.NoError(t, err)
	_, err = w.ProcessOne(ctx)
	require.NoError(t, err)

	assert.Equal(t, runID, last.RunID)
	assert.Equal(t, api.StatusSuccess, last.Results["done"].Status)
	assert.Equal(t, "finished", last.Results["done"].Payload)
	assert.Equal(t, map[string]any{"requester": "ann"}, last.TriggerData)
}
