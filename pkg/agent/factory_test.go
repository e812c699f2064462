package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePromptBuilder struct{}

func (fakePromptBuilder) BuildSystemPrompt(stage StageType) string {
	return "system prompt for " + string(stage)
}

func (fakePromptBuilder) BuildUserPrompt(execCtx *ExecutionContext, prevStageContent string) string {
	return execCtx.UserInput + "|" + prevStageContent
}

type fakeLLMClient struct {
	response CompletionResponse
	err      error
}

func (f *fakeLLMClient) Complete(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
	return f.response, f.err
}

type fakeQualityChecker struct {
	result QualityResult
}

func (f *fakeQualityChecker) Check(_ StageType, _ string) QualityResult {
	return f.result
}

func TestFactory_CreateAgent_KnownStages(t *testing.T) {
	f := NewFactory()
	for _, stage := range Ordered {
		a, err := f.CreateAgent(&ExecutionContext{Stage: stage})
		require.NoError(t, err)
		assert.NotNil(t, a)
	}
}

func TestFactory_CreateAgent_UnknownStageErrors(t *testing.T) {
	f := NewFactory()
	_, err := f.CreateAgent(&ExecutionContext{Stage: "not-a-stage"})
	assert.Error(t, err)
}

func TestFactory_CreateAgent_NilContextErrors(t *testing.T) {
	f := NewFactory()
	_, err := f.CreateAgent(nil)
	assert.Error(t, err)
}

func TestLLMStageController_Run_Success(t *testing.T) {
	f := NewFactory()
	a, err := f.CreateAgent(&ExecutionContext{Stage: StageBusinessAnalyst})
	require.NoError(t, err)

	execCtx := &ExecutionContext{
		Stage:         StageBusinessAnalyst,
		UserInput:     "build a todo app",
		PromptBuilder: fakePromptBuilder{},
		LLMClient: &fakeLLMClient{
			response: CompletionResponse{Content: "# Business Analysis", Usage: TokenUsage{TotalTokens: 120}},
		},
		Services: &ServiceBundle{
			Quality: &fakeQualityChecker{result: QualityResult{Passed: true}},
		},
	}

	result, err := a.Execute(context.Background(), execCtx, "")
	require.NoError(t, err)
	assert.Equal(t, ExecutionStatusCompleted, result.Status)
	assert.Equal(t, "# Business Analysis", result.Content)
	assert.Equal(t, 120, result.TokensUsed.TotalTokens)
}

func TestLLMStageController_Run_QualityFailure(t *testing.T) {
	f := NewFactory()
	a, err := f.CreateAgent(&ExecutionContext{Stage: StageEngineeringStandards})
	require.NoError(t, err)

	execCtx := &ExecutionContext{
		Stage:         StageEngineeringStandards,
		PromptBuilder: fakePromptBuilder{},
		LLMClient: &fakeLLMClient{
			response: CompletionResponse{Content: "too short"},
		},
		Services: &ServiceBundle{
			Quality: &fakeQualityChecker{result: QualityResult{Passed: false, Issues: []string{"too short"}}},
		},
	}

	result, err := a.Execute(context.Background(), execCtx, "")
	require.NoError(t, err)
	assert.Equal(t, ExecutionStatusFailed, result.Status)
	assert.Contains(t, result.Error.Error(), "too short")
}

func TestLLMStageController_Run_EmptyContentFails(t *testing.T) {
	f := NewFactory()
	a, err := f.CreateAgent(&ExecutionContext{Stage: StageSolutionArchitect})
	require.NoError(t, err)

	execCtx := &ExecutionContext{
		Stage:         StageSolutionArchitect,
		PromptBuilder: fakePromptBuilder{},
		LLMClient:     &fakeLLMClient{response: CompletionResponse{Content: "   "}},
	}

	result, err := a.Execute(context.Background(), execCtx, "")
	require.NoError(t, err)
	assert.Equal(t, ExecutionStatusFailed, result.Status)
}

func TestLLMStageController_Run_MissingLLMClientFailsStage(t *testing.T) {
	f := NewFactory()
	a, err := f.CreateAgent(&ExecutionContext{Stage: StageImplementationPlanner})
	require.NoError(t, err)

	execCtx := &ExecutionContext{
		Stage:         StageImplementationPlanner,
		PromptBuilder: fakePromptBuilder{},
	}

	result, err := a.Execute(context.Background(), execCtx, "")
	require.NoError(t, err)
	assert.Equal(t, ExecutionStatusFailed, result.Status)
	assert.Contains(t, result.Error.Error(), "LLM client")
}
