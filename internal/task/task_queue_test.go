package task

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_Enqueue(t *testing.T) {
	q := NewTaskQueue(2, setupTestLogger())

	require.NoError(t, q.Enqueue(newMockTask(nil)))
	require.NoError(t, q.Enqueue(newMockTask(nil)))
	assert.Equal(t, 2, q.Len())

	err := q.Enqueue(newMockTask(nil))
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestTaskQueue_Close(t *testing.T) {
	q := NewTaskQueue(2, setupTestLogger())
	first := newMockTask(nil)
	require.NoError(t, q.Enqueue(first))

	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Enqueue(newMockTask(nil)), ErrQueueClosed)

	got, ok := <-q.GetChannel()
	require.True(t, ok, "buffered task should survive close")
	assert.Equal(t, first.ID(), got.ID())

	_, ok = <-q.GetChannel()
	assert.False(t, ok)
}

func TestTaskQueue_ConcurrentEnqueueAndClose(t *testing.T) {
	q := NewTaskQueue(100, setupTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Enqueue(newMockTask(nil))
		}()
	}
	q.Close()
	wg.Wait()

	n := 0
	for range q.GetChannel() {
		n++
	}
	assert.LessOrEqual(t, n, 20)
}
