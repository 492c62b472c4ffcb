package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectJobs(t *testing.T, got <-chan Job, want int) []Job {
	t.Helper()
	jobs := make([]Job, 0, want)
	timeout := time.After(2 * time.Second)
	for len(jobs) < want {
		select {
		case job := <-got:
			jobs = append(jobs, job)
		case <-timeout:
			t.Fatalf("timed out waiting for %d jobs, got %d", want, len(jobs))
		}
	}
	return jobs
}

func TestQueueDispatchesToHandler(t *testing.T) {
	got := make(chan Job, 4)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		got <- job
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 4})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a", Type: "work"}))
	require.NoError(t, q.Enqueue(Job{ID: "b", Type: "work"}))

	jobs := collectJobs(t, got, 2)
	ids := map[string]bool{}
	for _, job := range jobs {
		ids[job.ID] = true
		assert.False(t, job.Enqueued.IsZero(), "enqueue timestamp must be set")
	}
	assert.True(t, ids["a"])
	assert.True(t, ids["b"])
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})

	err := q.Enqueue(Job{ID: "a"})
	assert.Error(t, err)
}

func TestQueueHandlerErrorDoesNotStopWorkers(t *testing.T) {
	got := make(chan Job, 2)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if job.ID == "boom" {
			return errors.New("handler failed")
		}
		got <- job
		return nil
	}, QueueConfig{Workers: 1})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "boom"}))
	require.NoError(t, q.Enqueue(Job{ID: "after"}))

	jobs := collectJobs(t, got, 1)
	assert.Equal(t, "after", jobs[0].ID)
}

func TestQueueStopWaitsForWorkers(t *testing.T) {
	var mu sync.Mutex
	handled := 0
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		handled++
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 1})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	time.Sleep(50 * time.Millisecond)
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, handled)
}

func TestQueueDepth(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})

	q.Start(context.Background())
	defer func() {
		close(release)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "b"}))
	require.NoError(t, q.Enqueue(Job{ID: "c"}))

	assert.Equal(t, 2, q.Depth(), "buffered jobs behind the blocked worker")
}
