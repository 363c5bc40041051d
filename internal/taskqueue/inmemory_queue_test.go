package taskqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	testQueue(t, func(t *testing.T) Queue { return NewInMemoryQueue(16) })
}

func TestInMemoryQueue_Full(t *testing.T) {
	q := NewInMemoryQueue(1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Task{ID: "a"}))
	assert.ErrorIs(t, q.Enqueue(ctx, Task{ID: "b"}), ErrQueueFull)
}

func TestInMemoryQueue_WakesAllConsumers(t *testing.T) {
	q := NewInMemoryQueue(16)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	const consumers = 4
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got []string
	)
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := q.Dequeue(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			got = append(got, task.ID)
			mu.Unlock()
		}()
	}

	// Let every consumer block first.
	time.Sleep(20 * time.Millisecond)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.Enqueue(ctx, Task{ID: id}))
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, got)
}

func TestEncodeDecodeTask(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	raw, err := EncodeTask(Task{ID: "1", Type: TaskResume, RunID: "run", NotBefore: at, Attempts: 2})
	require.NoError(t, err)

	got, err := DecodeTask(raw)
	require.NoError(t, err)
	assert.Equal(t, TaskResume, got.Type)
	assert.Equal(t, "run", got.RunID)
	assert.True(t, got.NotBefore.Equal(at))
	assert.Equal(t, 2, got.Attempts)

	_, err = DecodeTask([]byte("nope"))
	assert.Error(t, err)
}
