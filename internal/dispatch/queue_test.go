package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestQueueRunsSubmittedTasks(t *testing.T) {
	q := NewQueue(2, 10, zap.NewNop())

	var count int32
	for i := 0; i < 5; i++ {
		require.True(t, q.Submit("inc", func(ctx context.Context) error {
			atomic.AddInt32(&count, 1)
			return nil
		}))
	}

	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, int32(5), atomic.LoadInt32(&count))
}

func TestQueueSubmitAfterStop(t *testing.T) {
	q := NewQueue(1, 1, zap.NewNop())
	require.NoError(t, q.Stop(context.Background()))

	var dropped []string
	q.OnDrop(func(name string) { dropped = append(dropped, name) })

	assert.False(t, q.Submit("late", func(ctx context.Context) error { return nil }))
	assert.Equal(t, []string{"late"}, dropped)
	require.NoError(t, q.Stop(context.Background()))
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1, 1, zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, q.Submit("block", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.True(t, q.Submit("queued", func(ctx context.Context) error { return nil }))

	assert.False(t, q.Submit("overflow", func(ctx context.Context) error { return nil }))

	close(release)
	require.NoError(t, q.Stop(context.Background()))
}

func TestQueueLogsFailuresAndPanics(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	q := NewQueue(1, 4, zap.New(core))

	var wg sync.WaitGroup
	wg.Add(2)
	q.Submit("fails", func(ctx context.Context) error {
		defer wg.Done()
		return errors.New("boom")
	})
	q.Submit("panics", func(ctx context.Context) error {
		defer wg.Done()
		panic("bad")
	})
	wg.Wait()
	require.NoError(t, q.Stop(context.Background()))

	assert.Equal(t, 1, logs.FilterMessage("Background task failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("Background task panicked").Len())
}

func TestQueueStopHonoursDeadline(t *testing.T) {
	q := NewQueue(1, 1, zap.NewNop())
	release := make(chan struct{})
	q.Submit("slow", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}
