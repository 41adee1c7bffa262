package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resultRecorder struct {
	mu      sync.Mutex
	results []error
	done    chan struct{}
	want    int
}

func newResultRecorder(want int) *resultRecorder {
	return &resultRecorder{done: make(chan struct{}), want: want}
}

func (r *resultRecorder) hook(_ Job, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, err)
	if len(r.results) == r.want {
		close(r.done)
	}
}

func (r *resultRecorder) wait(t *testing.T) []error {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job results")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.results...)
}

func TestQueueRunsJobs(t *testing.T) {
	rec := newResultRecorder(3)
	var handled int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 2, OnResult: rec.hook})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "noop"}))
	}

	results := rec.wait(t)
	assert.Len(t, results, 3)
	for _, err := range results {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&handled))
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	rec := newResultRecorder(1)
	var calls int32
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond, OnResult: rec.hook})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	results := rec.wait(t)
	assert.NoError(t, results[0])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	rec := newResultRecorder(1)
	var calls int32
	q := NewQueue("fail", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, QueueConfig{MaxRetries: 1, RetryDelay: 5 * time.Millisecond, OnResult: rec.hook})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	results := rec.wait(t)
	assert.EqualError(t, results[0], "boom")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueueRecoversPanics(t *testing.T) {
	rec := newResultRecorder(1)
	q := NewQueue("panic", func(ctx context.Context, job Job) error {
		panic("kaboom")
	}, QueueConfig{OnResult: rec.hook})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	results := rec.wait(t)
	require.Error(t, results[0])
	assert.Contains(t, results[0].Error(), "kaboom")
}

func TestEnqueueRequiresRunningQueue(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{}), ErrQueueClosed)

	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{}), ErrQueueClosed)
}

func TestEnqueueRejectsWhenBufferFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	require.NoError(t, q.Enqueue(Job{ID: "busy"}))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the first job")
	}
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(Job{ID: "overflow"}) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full buffer")
	}
}

func TestMuxRoutesByType(t *testing.T) {
	mux := NewMux()
	var got string
	mux.Handle("email", func(ctx context.Context, job Job) error {
		got = job.Payload.(string)
		return nil
	})

	require.NoError(t, mux.Process(context.Background(), Job{Type: "email", Payload: "hi"}))
	assert.Equal(t, "hi", got)
	assert.ErrorIs(t, mux.Process(context.Background(), Job{Type: "sms"}), ErrNoHandler)
}
