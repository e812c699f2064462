package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor lets tests control how many jobs are available and
// observe how many times ProcessNext was called.
type fakeExecutor struct {
	remaining int32
	calls     int32
	err       error
	pending   int
	active    int
}

func (f *fakeExecutor) ProcessNext(_ context.Context, _ string) (bool, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return false, f.err
	}
	if atomic.LoadInt32(&f.remaining) <= 0 {
		return false, nil
	}
	atomic.AddInt32(&f.remaining, -1)
	return true, nil
}

func (f *fakeExecutor) PendingCount(_ context.Context) (int, error) { return f.pending, nil }
func (f *fakeExecutor) ActiveCount(_ context.Context, _ string) (int, error) { return f.active, nil }

func TestWorker_ProcessesUntilQueueEmpty(t *testing.T) {
	exec := &fakeExecutor{remaining: 3}
	w := NewWorker("w1", "pod-1", exec, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	w.Start(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&exec.calls) >= 4
	}, time.Second, 5*time.Millisecond)

	w.Stop()
	assert.Equal(t, string(WorkerStatusStopped), w.Health().Status)
}

func TestWorker_Health_ReportsIdentity(t *testing.T) {
	exec := &fakeExecutor{}
	w := NewWorker("w1", "pod-1", exec, time.Minute)

	h := w.Health()
	assert.Equal(t, "pod-1/w1", h.WorkerID)
	assert.Equal(t, string(WorkerStatusIdle), h.Status)
}

func TestWorker_StopAfterStartDoesNotPanic(t *testing.T) {
	exec := &fakeExecutor{}
	w := NewWorker("w1", "pod-1", exec, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	assert.NotPanics(t, func() {
		w.Stop()
	})
}

func TestWorker_LogsExecutorErrorsButKeepsPolling(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("db unavailable")}
	w := NewWorker("w1", "pod-1", exec, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w.Start(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&exec.calls) >= 2
	}, time.Second, 5*time.Millisecond)

	w.Stop()
}
