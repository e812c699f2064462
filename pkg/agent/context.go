package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StageType identifies one of the four fixed pipeline stages.
type StageType string

const (
	StageBusinessAnalyst       StageType = "business_analyst"
	StageEngineeringStandards  StageType = "engineering_standards"
	StageSolutionArchitect     StageType = "solution_architect"
	StageImplementationPlanner StageType = "implementation_planner"
)

// Ordered is the fixed, non-configurable stage sequence (Open Question 1).
var Ordered = []StageType{
	StageBusinessAnalyst,
	StageEngineeringStandards,
	StageSolutionArchitect,
	StageImplementationPlanner,
}

// DocumentTypeFor maps a stage to the document_type it produces.
func DocumentTypeFor(stage StageType) string {
	switch stage {
	case StageBusinessAnalyst:
		return "about"
	case StageEngineeringStandards:
		return "specs"
	case StageSolutionArchitect:
		return "architecture"
	case StageImplementationPlanner:
		return "plan_overview"
	default:
		return ""
	}
}

// ExecutionContext carries all dependencies and state needed by a stage
// agent during execution. Created by the orchestrator for each run.
type ExecutionContext struct {
	// Identity
	TenantID      uuid.UUID
	ProjectID     uuid.UUID
	ExecutionID   uuid.UUID
	CorrelationID string
	Stage         StageType

	// UserInput is the stage's free-text input, composed by the caller
	// from the request fields that stage uses.
	UserInput string

	// RetrievedContext is the set of memoized context chunks returned by
	// the context retrieval layer for this stage (may be empty).
	RetrievedContext []ContextChunk

	// Timeout bounds this stage's LLM interaction; the orchestrator
	// sets it from its single StageTimeout, the same for every stage.
	Timeout time.Duration

	// Dependencies (injected by the orchestrator)
	LLMClient      LLMClient
	EventPublisher EventPublisher
	Services       *ServiceBundle
	PromptBuilder  PromptBuilder
}

// ContextChunk is one retrieved memoized context fragment, already
// filtered to this tenant and project.
type ContextChunk struct {
	Content string
	Score   float32
	Source  string
}

// LLMClient is the subset of the LLM invocation layer an agent needs.
// Defined here (rather than importing pkg/llm) to avoid an import cycle
// and to keep agent tests mockable without a live provider.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// CompletionRequest is a single LLM completion call.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
}

// CompletionResponse is the result of a completion call.
type CompletionResponse struct {
	Content string
	Usage   TokenUsage
}

// ServiceBundle groups the persistence/quality dependencies needed
// during stage execution.
type ServiceBundle struct {
	Documents DocumentWriter
	Quality   QualityChecker
}

// DocumentWriter persists a stage's generated content as a new document
// version. Implemented by pkg/docrepo; defined as an interface here to
// avoid a circular import.
type DocumentWriter interface {
	CreateVersion(ctx context.Context, tenantID, projectID uuid.UUID, documentType, content string, epicNumber *int) (version int, err error)
}

// QualityChecker validates generated content before it is persisted.
// Implemented by pkg/quality.
type QualityChecker interface {
	Check(stage StageType, content string) QualityResult
}

// QualityResult is the outcome of a content quality check.
type QualityResult struct {
	Passed bool
	Issues []string
}

// PromptBuilder builds the system/user prompt text for a stage.
// Implemented by TemplatePromptBuilder, which serves all four stages;
// defined as an interface here so BaseAgent stays stage-agnostic.
type PromptBuilder interface {
	BuildSystemPrompt(stage StageType) string
	BuildUserPrompt(execCtx *ExecutionContext, prevStageContent string) string
}

// EventPublisher publishes progress events for SSE delivery to clients.
// Implemented by pkg/streaming; defined as an interface here to avoid a
// circular import and to enable testing with a fake publisher.
type EventPublisher interface {
	PublishStageProgress(ctx context.Context, correlationID string, stage StageType, fraction float64, message string) error
}
