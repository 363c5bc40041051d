package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testQueue checks the ordering and blocking behaviour shared by every
// Queue. newQueue must return an empty queue.
func testQueue(t *testing.T, newQueue func(t *testing.T) Queue) {
	t.Helper()

	t.Run("fifo", func(t *testing.T) {
		q := newQueue(t)
		ctx := context.Background()
		for _, name := range []string{"wf1", "wf2", "wf3"} {
			require.NoError(t, q.Enqueue(ctx, Task{ID: name, Type: TaskExecute, WorkflowName: name}))
			// Distinct enqueue times keep ordering deterministic on
			// backends with coarse clocks.
			time.Sleep(2 * time.Millisecond)
		}
		assert.Equal(t, 3, q.Len())

		for _, want := range []string{"wf1", "wf2", "wf3"} {
			got, err := q.Dequeue(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got.WorkflowName)
			assert.Equal(t, TaskExecute, got.Type)
		}
		assert.Equal(t, 0, q.Len())
	})

	t.Run("not before", func(t *testing.T) {
		q := newQueue(t)
		ctx := context.Background()
		start := time.Now()

		require.NoError(t, q.Enqueue(ctx, Task{ID: "later", Type: TaskResume, RunID: "r-later", NotBefore: start.Add(150 * time.Millisecond)}))
		require.NoError(t, q.Enqueue(ctx, Task{ID: "now", Type: TaskResume, RunID: "r-now"}))

		first, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, "r-now", first.RunID)

		second, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, "r-later", second.RunID)
		assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
	})

	t.Run("trigger data", func(t *testing.T) {
		q := newQueue(t)
		ctx := context.Background()

		require.NoError(t, q.Enqueue(ctx, Task{
			ID:           "t",
			Type:         TaskExecute,
			WorkflowName: "wf",
			TriggerData:  map[string]any{"user": map[string]any{"id": 7}},
		}))
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, "t", got.ID)
		assert.Equal(t, map[string]any{"user": map[string]any{"id": float64(7)}}, got.TriggerData)
	})

	t.Run("dequeue honours cancellation", func(t *testing.T) {
		q := newQueue(t)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := q.Dequeue(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
