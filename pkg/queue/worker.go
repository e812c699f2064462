package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Worker polls the executor for pending export jobs and processes them
// one at a time until told to stop.
type Worker struct {
	id           string
	podID        string
	executor     Executor
	pollInterval time.Duration

	mu      sync.RWMutex
	status  WorkerStatus
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWorker creates a worker bound to the given executor.
func NewWorker(id, podID string, executor Executor, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = defaultPollBackoff
	}
	return &Worker{
		id:           id,
		podID:        podID,
		executor:     executor,
		pollInterval: pollInterval,
		status:       WorkerStatusIdle,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start launches the worker's poll loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop signals the worker to exit after its current job finishes and
// blocks until it does.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.doneCh)
	defer w.setStatus(WorkerStatusStopped)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		w.setStatus(WorkerStatusWorking)
		processed, err := w.executor.ProcessNext(ctx, w.id)
		if err != nil {
			slog.Error("worker failed to process export job", "worker_id", w.id, "error", err)
		}
		w.setStatus(WorkerStatusIdle)

		if processed {
			continue
		}

		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *Worker) setStatus(s WorkerStatus) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}

// Health returns the worker's current status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{WorkerID: fmt.Sprintf("%s/%s", w.podID, w.id), Status: string(w.status)}
}
