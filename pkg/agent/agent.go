// Package agent provides the core agent framework for the documentation
// pipeline. Each of the four fixed stages (Business Analyst, Engineering
// Standards, Solution Architect, Implementation Planner) is an Agent,
// created per-execution and never shared between executions.
package agent

import "context"

// Agent defines the interface for all stage agents.
type Agent interface {
	// Execute runs one stage's generation. ctx carries the request
	// deadline and cancellation signal. execCtx provides all execution
	// dependencies and state. prevStageContent is the immediately
	// preceding stage's output (empty for the first stage).
	//
	// Returns (*ExecutionResult, nil) on completion — check
	// Result.Status and Result.Error for stage-level failures (LLM
	// errors, validation failures). Returns (nil, error) only for
	// infrastructure failures where no meaningful result exists.
	Execute(ctx context.Context, execCtx *ExecutionContext, prevStageContent string) (*ExecutionResult, error)
}

// ExecutionStatus represents the status of a stage execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// ExecutionResult is returned by Agent.Execute. Lightweight — the
// generated document content is written to the document store by the
// orchestrator, not carried redundantly in every intermediate struct.
type ExecutionResult struct {
	Status     ExecutionStatus
	Content    string
	Error      error
	TokensUsed TokenUsage
}

// TokenUsage aggregates token consumption across the LLM calls made
// during one stage execution.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
