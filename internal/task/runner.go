package task

import (
	"context"
	"log/slog"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// TaskRunner couples a TaskQueue with the WorkerPool that drains it.
type TaskRunner struct {
	queue  *TaskQueue
	pool   *WorkerPool
	logger *slog.Logger
}

var _ Submitter = (*TaskRunner)(nil)

// NewTaskRunner creates a new TaskRunner. Call Start before submitting.
func NewTaskRunner(config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	logger = logger.With("component", "task_runner")
	queue := NewTaskQueue(config.QueueSize, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger)
	return &TaskRunner{
		queue:  queue,
		pool:   pool,
		logger: logger,
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.pool.SetErrorHandler(handler)
}

// Submit queues a task without blocking.
// It returns ErrQueueFull or ErrQueueClosed when the task is not accepted.
func (r *TaskRunner) Submit(task Task) error {
	return r.queue.Enqueue(task)
}

// Start launches the worker pool.
func (r *TaskRunner) Start() {
	r.pool.Start()
}

// Stop refuses new tasks and lets the workers drain what is already queued.
// If ctx ends first, in-flight tasks are cancelled and the rest are dropped.
func (r *TaskRunner) Stop(ctx context.Context) error {
	r.queue.Close()

	drained := make(chan struct{})
	go func() {
		r.pool.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		r.logger.Info("task runner drained")
		return nil
	case <-ctx.Done():
		r.pool.Stop()
		r.logger.Warn("task runner stopped before draining", "dropped", r.queue.Len())
		return ctx.Err()
	}
}
