package agent

import (
	"context"
	"fmt"
	"strings"
)

// Factory creates Agent instances for a given stage.
type Factory struct{}

// NewFactory creates a new stage-agent factory.
func NewFactory() *Factory {
	return &Factory{}
}

// CreateAgent builds an Agent for the given execution context's stage.
// All four stages share the same generation strategy (build prompt, call
// the LLM, validate content quality); what differs between them is the
// prompt template, supplied by execCtx.PromptBuilder.
func (f *Factory) CreateAgent(execCtx *ExecutionContext) (Agent, error) {
	if execCtx == nil {
		return nil, fmt.Errorf("execution context must not be nil")
	}
	switch execCtx.Stage {
	case StageBusinessAnalyst, StageEngineeringStandards, StageSolutionArchitect, StageImplementationPlanner:
		return NewBaseAgent(&llmStageController{}), nil
	default:
		return nil, fmt.Errorf("unknown stage type %q", execCtx.Stage)
	}
}

// llmStageController is the single generation strategy shared by every
// stage: build a prompt, invoke the LLM once, validate the result.
// A quality failure is not retried here or by the orchestrator: the
// orchestrator records the failed execution and returns an error.
type llmStageController struct{}

func (c *llmStageController) Run(ctx context.Context, execCtx *ExecutionContext, prevStageContent string) (*ExecutionResult, error) {
	if execCtx.LLMClient == nil {
		return nil, fmt.Errorf("agent: execution context has no LLM client configured")
	}
	if execCtx.PromptBuilder == nil {
		return nil, fmt.Errorf("agent: execution context has no prompt builder configured")
	}

	system := execCtx.PromptBuilder.BuildSystemPrompt(execCtx.Stage)
	user := execCtx.PromptBuilder.BuildUserPrompt(execCtx, prevStageContent)

	resp, err := execCtx.LLMClient.Complete(ctx, CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		MaxTokens:    4096,
		Temperature:  0.2,
	})
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return &ExecutionResult{
			Status:     ExecutionStatusFailed,
			Error:      fmt.Errorf("agent: stage %s produced empty content", execCtx.Stage),
			TokensUsed: resp.Usage,
		}, nil
	}

	if execCtx.Services != nil && execCtx.Services.Quality != nil {
		qr := execCtx.Services.Quality.Check(execCtx.Stage, content)
		if !qr.Passed {
			return &ExecutionResult{
				Status:     ExecutionStatusFailed,
				Content:    content,
				Error:      fmt.Errorf("agent: stage %s failed quality check: %s", execCtx.Stage, strings.Join(qr.Issues, "; ")),
				TokensUsed: resp.Usage,
			}, nil
		}
	}

	return &ExecutionResult{
		Status:     ExecutionStatusCompleted,
		Content:    content,
		TokensUsed: resp.Usage,
	}, nil
}
