package queue

import (
	"context"
	"time"
)

// WorkerStatus is the current activity state of one worker goroutine.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// WorkerHealth reports one worker's current status.
type WorkerHealth struct {
	WorkerID string
	Status   string
}

// PoolHealth reports the worker pool's overall health, used by the
// `/health` endpoint and readiness probes.
type PoolHealth struct {
	IsHealthy      bool
	ExecutorError  string
	PodID          string
	ActiveWorkers  int
	TotalWorkers   int
	ActiveExports  int
	MaxConcurrent  int
	PendingExports int
	WorkerStats    []WorkerHealth
}

// Executor processes background export-generation jobs (C14). The pool
// polls it rather than owning any SQL itself, keeping queue/ storage-
// agnostic the way the teacher's SessionExecutor decouples the worker
// pool from the session-processing pipeline.
type Executor interface {
	// ProcessNext claims and fully processes one pending export job, if
	// any is available. processed is false when the queue was empty —
	// the worker should back off for the poll interval before retrying.
	ProcessNext(ctx context.Context, workerID string) (processed bool, err error)

	// PendingCount and ActiveCount feed Health(). ActiveCount receives
	// the asking pod's id; export.Service ignores it and counts every
	// generating job.
	PendingCount(ctx context.Context) (int, error)
	ActiveCount(ctx context.Context, podID string) (int, error)
}

// defaultPollBackoff is how long an idle worker waits before polling again.
const defaultPollBackoff = 2 * time.Second
