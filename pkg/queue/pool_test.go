package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itechmeat/jeex/pkg/config"
)

func testQueueSettings() *config.QueueSettings {
	return &config.QueueSettings{
		WorkerCount:          2,
		PollInterval:         5 * time.Millisecond,
		MaxConcurrentExports: 4,
	}
}

func TestWorkerPool_StartSpawnsConfiguredWorkers(t *testing.T) {
	exec := &fakeExecutor{}
	pool := NewWorkerPool("pod-1", exec, testQueueSettings())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))

	health := pool.Health()
	assert.Equal(t, 2, health.TotalWorkers)
	assert.True(t, health.IsHealthy)

	pool.Stop()
}

func TestWorkerPool_StartTwiceIsNoop(t *testing.T) {
	exec := &fakeExecutor{}
	pool := NewWorkerPool("pod-1", exec, testQueueSettings())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Start(ctx))

	assert.Equal(t, 2, len(pool.workers))
	pool.Stop()
}

func TestWorkerPool_StopTwiceDoesNotPanic(t *testing.T) {
	exec := &fakeExecutor{}
	pool := NewWorkerPool("pod-1", exec, testQueueSettings())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))

	pool.Stop()
	assert.NotPanics(t, func() { pool.Stop() })
}

func TestWorkerPool_Health_ReflectsExecutorCounts(t *testing.T) {
	exec := &fakeExecutor{pending: 5, active: 1}
	pool := NewWorkerPool("pod-1", exec, testQueueSettings())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	health := pool.Health()
	assert.Equal(t, 5, health.PendingExports)
	assert.Equal(t, 1, health.ActiveExports)
}

func TestWorkerPool_Health_UnhealthyOverCapacity(t *testing.T) {
	exec := &fakeExecutor{active: 10}
	settings := testQueueSettings()
	settings.MaxConcurrentExports = 1
	pool := NewWorkerPool("pod-1", exec, settings)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	health := pool.Health()
	assert.False(t, health.IsHealthy)
}
