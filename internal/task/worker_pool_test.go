package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	logger := setupTestLogger()
	queue := NewTaskQueue(1, logger)

	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 5}, logger)
	assert.Equal(t, 5, pool.workerCount)
	assert.Nil(t, pool.errorHandler)

	pool = NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 0}, logger)
	assert.Equal(t, 1, pool.workerCount)

	pool = NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: -5}, logger)
	assert.Equal(t, 1, pool.workerCount)
}

func TestWorkerPool_ProcessesQueuedTasks(t *testing.T) {
	logger := setupTestLogger()
	queue := NewTaskQueue(10, logger)
	pool := NewWorkerPool(queue, DefaultWorkerPoolConfig(), logger)

	tasks := make([]*mockTask, 5)
	for i := range tasks {
		tasks[i] = newMockTask(nil)
		require.NoError(t, queue.Enqueue(tasks[i]))
	}

	pool.Start()
	queue.Close()
	pool.Wait()

	for _, task := range tasks {
		assert.Equal(t, int32(1), task.runs.Load())
	}
}

func TestWorkerPool_ErrorHandler(t *testing.T) {
	logger := setupTestLogger()
	queue := NewTaskQueue(10, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, logger)

	var mu sync.Mutex
	var failures []error
	pool.SetErrorHandler(func(_ Task, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, err)
	})

	boom := errors.New("boom")
	require.NoError(t, queue.Enqueue(newMockTask(func(context.Context) error { return boom })))
	require.NoError(t, queue.Enqueue(newMockTask(func(context.Context) error { panic("kaboom") })))
	survivor := newMockTask(nil)
	require.NoError(t, queue.Enqueue(survivor))

	pool.Start()
	queue.Close()
	pool.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0], boom)
	assert.Contains(t, failures[1].Error(), "kaboom")
	assert.Equal(t, int32(1), survivor.runs.Load(), "worker should survive a panicking task")
}

func TestWorkerPool_StopCancelsRunningTasks(t *testing.T) {
	logger := setupTestLogger()
	queue := NewTaskQueue(1, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: 1}, logger)

	started := make(chan struct{})
	blocker := newMockTask(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, queue.Enqueue(blocker))

	pool.Start()
	<-started

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}
