package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itechmeat/jeex/pkg/agent"
)

type fakePromptBuilder struct{}

func (fakePromptBuilder) BuildSystemPrompt(stage agent.StageType) string { return "system" }
func (fakePromptBuilder) BuildUserPrompt(execCtx *agent.ExecutionContext, prevStageContent string) string {
	return execCtx.UserInput
}

type fakeLLMClient struct {
	content string
	err     error
}

func (f *fakeLLMClient) Complete(_ context.Context, _ agent.CompletionRequest) (agent.CompletionResponse, error) {
	if f.err != nil {
		return agent.CompletionResponse{}, f.err
	}
	return agent.CompletionResponse{Content: f.content, Usage: agent.TokenUsage{TotalTokens: 42}}, nil
}

type fakeQuality struct{}

func (fakeQuality) Check(_ agent.StageType, _ string) agent.QualityResult {
	return agent.QualityResult{Passed: true}
}

type fakeDocumentWriter struct {
	versions []string
	nextVer  int
	failOn   string
}

func (f *fakeDocumentWriter) CreateVersion(_ context.Context, _, _ uuid.UUID, documentType, content string, _ *int) (int, error) {
	if f.failOn != "" && documentType == f.failOn {
		return 0, errors.New("persist failed")
	}
	f.nextVer++
	f.versions = append(f.versions, documentType)
	return f.nextVer, nil
}

type fakePublisher struct {
	events []string
}

func (f *fakePublisher) PublishStageProgress(_ context.Context, _ string, _ agent.StageType, fraction float64, message string) error {
	f.events = append(f.events, message)
	return nil
}

func newOrchestrator(llm agent.LLMClient, docs agent.DocumentWriter, pub *fakePublisher) *Orchestrator {
	return &Orchestrator{
		Factory:       agent.NewFactory(),
		PromptBuilder: fakePromptBuilder{},
		LLMClient:     llm,
		Documents:     docs,
		Quality:       fakeQuality{},
		Publisher:     pub,
	}
}

func TestExecuteStage_Success_EmitsFixedProgressSequence(t *testing.T) {
	docs := &fakeDocumentWriter{}
	pub := &fakePublisher{}
	o := newOrchestrator(&fakeLLMClient{content: "# Business Analysis\n\ncontent"}, docs, pub)

	result, err := o.ExecuteStage(context.Background(), ExecuteStageInput{
		TenantID:      uuid.New(),
		ProjectID:     uuid.New(),
		CorrelationID: uuid.New().String(),
		Stage:         agent.StageBusinessAnalyst,
		UserInput:     "build a todo app",
	})

	require.NoError(t, err)
	assert.Equal(t, "# Business Analysis\n\ncontent", result.Content)
	assert.Equal(t, 1, result.DocumentVersion)
	assert.Equal(t, []string{"starting", "executing", "storing", "completed"}, pub.events)
	assert.Equal(t, []string{"about"}, docs.versions)
}

func TestExecuteStage_UnknownStage_ReturnsNotFound(t *testing.T) {
	docs := &fakeDocumentWriter{}
	pub := &fakePublisher{}
	o := newOrchestrator(&fakeLLMClient{content: "x"}, docs, pub)

	_, err := o.ExecuteStage(context.Background(), ExecuteStageInput{
		Stage: "not-a-stage",
	})

	require.Error(t, err)
	assert.Equal(t, "failed: no agent for stage", pub.events[len(pub.events)-1])
}

func TestExecuteStage_LLMFailure_EmitsFailedProgressAndPropagates(t *testing.T) {
	docs := &fakeDocumentWriter{}
	pub := &fakePublisher{}
	o := newOrchestrator(&fakeLLMClient{err: errors.New("provider down")}, docs, pub)

	_, err := o.ExecuteStage(context.Background(), ExecuteStageInput{
		Stage:         agent.StageEngineeringStandards,
		CorrelationID: uuid.New().String(),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
	assert.Contains(t, pub.events[len(pub.events)-1], "failed")
	assert.Empty(t, docs.versions)
}

func TestExecuteStage_PersistFailure_PropagatesAndEmitsFailed(t *testing.T) {
	docs := &fakeDocumentWriter{failOn: "architecture"}
	pub := &fakePublisher{}
	o := newOrchestrator(&fakeLLMClient{content: "# Architecture\n\ndetails"}, docs, pub)

	_, err := o.ExecuteStage(context.Background(), ExecuteStageInput{
		Stage:         agent.StageSolutionArchitect,
		CorrelationID: uuid.New().String(),
	})

	require.Error(t, err)
	assert.Contains(t, pub.events[len(pub.events)-1], "failed")
}

func TestExecuteStage_PlannerStage_SplitsEpicsIntoSeparateVersions(t *testing.T) {
	docs := &fakeDocumentWriter{}
	pub := &fakePublisher{}
	o := newOrchestrator(&fakeLLMClient{content: "# Implementation Plan\n\nOverview text.\n\n## Epic 1: Auth\n\nDo the auth work.\n\n## Epic 2: Billing\n\nDo the billing work.\n"}, docs, pub)

	result, err := o.ExecuteStage(context.Background(), ExecuteStageInput{
		Stage:         agent.StageImplementationPlanner,
		CorrelationID: uuid.New().String(),
	})

	require.NoError(t, err)
	require.Len(t, result.Epics, 2)
	assert.Equal(t, 1, result.Epics[0].EpicNumber)
	assert.Equal(t, "Auth", result.Epics[0].Title)
	assert.Equal(t, 2, result.Epics[1].EpicNumber)
	assert.Equal(t, "Billing", result.Epics[1].Title)
	assert.Equal(t, []string{"plan_overview", "plan_epic", "plan_epic"}, docs.versions)
}

func TestExecuteStage_QualityFailure_ReturnsInternalErrorWithoutPersisting(t *testing.T) {
	docs := &fakeDocumentWriter{}
	pub := &fakePublisher{}
	o := &Orchestrator{
		Factory:       agent.NewFactory(),
		PromptBuilder: fakePromptBuilder{},
		LLMClient:     &fakeLLMClient{content: "weak"},
		Documents:     docs,
		Quality:       failingQuality{},
		Publisher:     pub,
	}

	_, err := o.ExecuteStage(context.Background(), ExecuteStageInput{
		Stage:         agent.StageBusinessAnalyst,
		CorrelationID: uuid.New().String(),
	})

	require.Error(t, err)
	assert.Empty(t, docs.versions)
}

type failingQuality struct{}

func (failingQuality) Check(_ agent.StageType, _ string) agent.QualityResult {
	return agent.QualityResult{Passed: false, Issues: []string{"missing sections"}}
}
