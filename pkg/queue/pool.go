// Package queue implements the background worker pool that drives export
// generation (C14): `create_export` enqueues a Pending row, and a pool of
// worker goroutines polls for and processes pending exports until
// completion or failure.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/itechmeat/jeex/pkg/config"
)

// WorkerPool manages a pool of export-processing workers on this pod.
type WorkerPool struct {
	podID    string
	executor Executor
	cfg      *config.QueueSettings

	workers  []*Worker
	stopOnce sync.Once
	started  bool
}

// NewWorkerPool creates a new worker pool bound to the given executor.
func NewWorkerPool(podID string, executor Executor, cfg *config.QueueSettings) *WorkerPool {
	return &WorkerPool{
		podID:    podID,
		executor: executor,
		cfg:      cfg,
		workers:  make([]*Worker, 0, cfg.WorkerCount),
	}
}

// Start spawns the configured number of worker goroutines. Safe to call
// only once; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("starting export worker pool", "pod_id", p.podID, "worker_count", p.cfg.WorkerCount)

	for i := 0; i < p.cfg.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.executor, p.cfg.PollInterval)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	slog.Info("export worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for their current job (if
// any) to finish before returning.
func (p *WorkerPool) Stop() {
	slog.Info("stopping export worker pool gracefully")
	p.stopOnce.Do(func() {
		for _, worker := range p.workers {
			worker.Stop()
		}
	})
	slog.Info("export worker pool stopped gracefully")
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	pending, errP := p.executor.PendingCount(ctx)
	if errP != nil {
		slog.Error("failed to query pending export count for health check", "pod_id", p.podID, "error", errP)
	}

	active, errA := p.executor.ActiveCount(ctx, p.podID)
	if errA != nil {
		slog.Error("failed to query active export count for health check", "pod_id", p.podID, "error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	executorHealthy := errP == nil && errA == nil
	isHealthy := len(p.workers) > 0 && active <= p.cfg.MaxConcurrentExports && executorHealthy

	var executorError string
	if !executorHealthy {
		if errP != nil {
			executorError = fmt.Sprintf("pending count query failed: %v", errP)
		} else if errA != nil {
			executorError = fmt.Sprintf("active count query failed: %v", errA)
		}
	}

	return &PoolHealth{
		IsHealthy:      isHealthy,
		ExecutorError:  executorError,
		PodID:          p.podID,
		ActiveWorkers:  activeWorkers,
		TotalWorkers:   len(p.workers),
		ActiveExports:  active,
		MaxConcurrent:  p.cfg.MaxConcurrentExports,
		PendingExports: pending,
		WorkerStats:    workerStats,
	}
}
