package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/petrijr/stepflow/internal/testutil"
)

type RedisQueueTestSuite struct {
	suite.Suite
	client *redis.Client
	queue  *RedisQueue
}

func TestRedisQueueSuite(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: testutil.RedisAddress(t)})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	suite.Run(t, &RedisQueueTestSuite{client: client})
}

func (s *RedisQueueTestSuite) SetupTest() {
	s.queue = NewRedisQueue(s.client, "stepflow:test:"+uuid.NewString()+":")
}

func (s *RedisQueueTestSuite) TestContract() {
	testQueue(s.T(), func(t *testing.T) Queue {
		return NewRedisQueue(s.client, "stepflow:test:"+uuid.NewString()+":")
	})
}

func (s *RedisQueueTestSuite) TestDequeueWakesOnEnqueue() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tasks := make(chan *Task, 1)
	errs := make(chan error, 1)
	go func() {
		task, err := s.queue.Dequeue(ctx)
		if err != nil {
			errs <- err
			return
		}
		tasks <- task
	}()

	// Let the consumer start polling an empty set.
	time.Sleep(100 * time.Millisecond)
	s.Require().NoError(s.queue.Enqueue(ctx, Task{ID: "t1", Type: TaskExecute, WorkflowName: "wf"}))

	select {
	case err := <-errs:
		s.Failf("Dequeue returned error", "%v", err)
	case task := <-tasks:
		s.Equal("t1", task.ID)
	case <-time.After(3 * time.Second):
		s.Fail("timed out waiting for dequeued task")
	}
	s.Equal(0, s.queue.Len())
}

func (s *RedisQueueTestSuite) TestConcurrentConsumersShareNothing() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const n = 20
	for i := range n {
		s.Require().NoError(s.queue.Enqueue(ctx, Task{ID: uuid.NewString(), Type: TaskResume, RunID: "run", Attempts: i}))
	}

	seen := make(chan string, n)
	for range 4 {
		go func() {
			for {
				task, err := s.queue.Dequeue(ctx)
				if err != nil {
					return
				}
				seen <- task.ID
			}
		}()
	}

	ids := make(map[string]bool)
	for range n {
		select {
		case id := <-seen:
			s.False(ids[id], "task %s delivered twice", id)
			ids[id] = true
		case <-ctx.Done():
			s.FailNow("timed out draining queue")
		}
	}
	s.Len(ids, n)
}
