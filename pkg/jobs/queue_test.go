package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForState(t *testing.T, q *Queue, id string, want State) Status {
	t.Helper()
	var status Status
	require.Eventually(t, func() bool {
		var ok bool
		status, ok = q.Status(id)
		return ok && status.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return status
}

func TestQueueRunsJob(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "payload", job.Payload)
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "test", Payload: "payload"}))

	status := waitForState(t, q, "job-1", StateSucceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NotNil(t, status.FinishedAt)
	assert.Empty(t, status.Error)
}

func TestQueueRetriesThenFails(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, QueueConfig{MaxRetries: 1, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-2", Type: "test"}))

	status := waitForState(t, q, "job-2", StateFailed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "boom", status.Error)
	assert.Equal(t, 2, status.Attempt)
}

func TestQueueNegativeRetriesDisablesRetry(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, QueueConfig{MaxRetries: -1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-3"}))
	waitForState(t, q, "job-3", StateFailed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "job-4"})
	require.Error(t, err)
	_, ok := q.Status("job-4")
	assert.False(t, ok)
}

func TestQueueHistoryIsBounded(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{HistorySize: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "first"}))
	waitForState(t, q, "first", StateSucceeded)
	require.NoError(t, q.Enqueue(Job{ID: "second"}))
	waitForState(t, q, "second", StateSucceeded)

	_, ok := q.Status("first")
	assert.False(t, ok)
}
