package agent

import (
	"context"
	"errors"
	"fmt"
)

// Controller defines the per-stage generation strategy. Each concrete
// stage (Business Analyst, Engineering Standards, Solution Architect,
// Implementation Planner) supplies its own Controller with a prompt
// tailored to what that stage produces.
type Controller interface {
	Run(ctx context.Context, execCtx *ExecutionContext, prevStageContent string) (*ExecutionResult, error)
}

// BaseAgent provides the common agent implementation. It delegates
// generation to a controller (strategy pattern) and normalizes error
// handling into a typed ExecutionResult. Marking the backing
// agent_executions row active/completed is the orchestrator's
// responsibility (it owns the transaction boundary around each stage),
// not the agent's.
type BaseAgent struct {
	controller Controller
}

// NewBaseAgent creates an agent with the given generation controller.
// Panics if controller is nil (programming error in the factory).
func NewBaseAgent(controller Controller) *BaseAgent {
	if controller == nil {
		panic("NewBaseAgent: controller must not be nil")
	}
	return &BaseAgent{controller: controller}
}

// Execute runs the stage by delegating to the controller.
func (a *BaseAgent) Execute(ctx context.Context, execCtx *ExecutionContext, prevStageContent string) (*ExecutionResult, error) {
	result, err := a.controller.Run(ctx, execCtx, prevStageContent)

	// Classify context cancellation/timeout from the returned error (not
	// ctx.Err()) so a concurrent context expiration doesn't misclassify
	// an unrelated failure as cancelled.
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ExecutionResult{Status: ExecutionStatusFailed, Error: fmt.Errorf("stage timed out: %w", err)}, nil
		}
		if errors.Is(err, context.Canceled) {
			return &ExecutionResult{Status: ExecutionStatusCancelled, Error: err}, nil
		}
		return &ExecutionResult{Status: ExecutionStatusFailed, Error: err}, nil
	}

	// Defensive nil-check: a nil result without an error indicates a
	// programming bug in the controller.
	if result == nil {
		return &ExecutionResult{
			Status: ExecutionStatusFailed,
			Error:  fmt.Errorf("controller returned nil result"),
		}, nil
	}

	return result, nil
}
