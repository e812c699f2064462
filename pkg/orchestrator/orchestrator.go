// Package orchestrator implements execute_stage (C11): the single-stage
// execution sequence shared by every stage of the documentation pipeline
// — context retrieval, prompting, generation, validation, persistence,
// and progress emission, in the fixed nine-step order spec defines.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itechmeat/jeex/pkg/agent"
	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/embedding"
	"github.com/itechmeat/jeex/pkg/execrepo"
	"github.com/itechmeat/jeex/pkg/vectorstore"
)

// cannedQueries is the fixed per-stage retrieval query used to pull
// memoized context from earlier stages. Stage one always starts from an
// empty project, so it has no entry.
var cannedQueries = map[agent.StageType]string{
	agent.StageEngineeringStandards:  "project description technology stack constraints",
	agent.StageSolutionArchitect:     "project description technology preferences components",
	agent.StageImplementationPlanner: "project description architecture components team",
}

const (
	defaultContextLimit   = 5
	defaultStageTimeout   = 120 * time.Second
	defaultScoreThreshold = 0.0
)

// Orchestrator wires the agent factory, LLM client, document repository,
// vector store, embedder, execution ledger, and progress publisher
// together to run exactly one stage of the pipeline.
type Orchestrator struct {
	Factory       *agent.Factory
	PromptBuilder agent.PromptBuilder
	LLMClient     agent.LLMClient
	Documents     agent.DocumentWriter
	Quality       agent.QualityChecker
	Vectors       *vectorstore.Store
	Embedder      embedding.Embedder
	Executions    *execrepo.Repository
	Publisher     agent.EventPublisher
	ContextLimit  int
	StageTimeout  time.Duration
}

// ExecuteStageInput is everything execute_stage needs for one run.
type ExecuteStageInput struct {
	TenantID         uuid.UUID
	ProjectID        uuid.UUID
	CorrelationID    string
	Stage            agent.StageType
	UserInput        string
	PrevStageContent string
	InitiatedBy      uuid.UUID
}

// EpicResult is one plan_epic version produced by the planner stage.
type EpicResult struct {
	EpicNumber int
	Title      string
	Version    int
}

// StageResult is execute_stage's return value.
type StageResult struct {
	Stage           agent.StageType
	Content         string
	DocumentVersion int
	QualityPassed   bool
	QualityIssues   []string
	TokensUsed      agent.TokenUsage
	Epics           []EpicResult
}

// ExecuteStage runs the nine-step sequence defined for C11: starting
// progress, agent resolution, execution, persistence, vector memoization,
// execution-ledger recording, and completion progress.
func (o *Orchestrator) ExecuteStage(ctx context.Context, in ExecuteStageInput) (*StageResult, error) {
	o.emitProgress(ctx, in.CorrelationID, in.Stage, 0.0, "starting")

	timeout := o.StageTimeout
	if timeout == 0 {
		timeout = defaultStageTimeout
	}

	execCtx := &agent.ExecutionContext{
		TenantID:       in.TenantID,
		ProjectID:      in.ProjectID,
		ExecutionID:    uuid.New(),
		CorrelationID:  in.CorrelationID,
		Stage:          in.Stage,
		UserInput:      in.UserInput,
		Timeout:        timeout,
		LLMClient:      o.LLMClient,
		EventPublisher: o.Publisher,
		PromptBuilder:  o.PromptBuilder,
		Services: &agent.ServiceBundle{
			Documents: o.Documents,
			Quality:   o.Quality,
		},
	}

	ag, err := o.Factory.CreateAgent(execCtx)
	if err != nil {
		o.emitProgress(ctx, in.CorrelationID, in.Stage, 0.0, "failed: no agent for stage")
		return nil, apperr.Wrap(apperr.KindNotFound, "no agent registered for stage", err)
	}

	execCtx.RetrievedContext = o.gatherContext(ctx, in)

	executionID, startErr := o.recordStart(ctx, in)
	if startErr != nil {
		slog.Error("orchestrator: failed to record execution start", "error", startErr, "correlation_id", in.CorrelationID)
	}

	o.emitProgress(ctx, in.CorrelationID, in.Stage, 0.2, "executing")

	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := ag.Execute(stageCtx, execCtx, in.PrevStageContent)
	if err != nil {
		o.completeExecution(ctx, executionID, agent.ExecutionStatusFailed, "", err.Error())
		o.emitProgress(ctx, in.CorrelationID, in.Stage, 0.0, fmt.Sprintf("failed: %s", err))
		return nil, err
	}
	if result.Status != agent.ExecutionStatusCompleted {
		msg := "stage did not complete"
		if result.Error != nil {
			msg = result.Error.Error()
		}
		o.completeExecution(ctx, executionID, result.Status, "", msg)
		o.emitProgress(ctx, in.CorrelationID, in.Stage, 0.0, fmt.Sprintf("failed: %s", msg))
		return nil, apperr.New(apperr.KindInternal, msg)
	}

	stageResult := &StageResult{
		Stage:         in.Stage,
		Content:       result.Content,
		QualityPassed: true,
		TokensUsed:    result.TokensUsed,
	}

	if err := o.persistVersions(ctx, in, result.Content, stageResult); err != nil {
		o.completeExecution(ctx, executionID, agent.ExecutionStatusFailed, "", err.Error())
		o.emitProgress(ctx, in.CorrelationID, in.Stage, 0.0, fmt.Sprintf("failed: %s", err))
		return nil, err
	}

	o.emitProgress(ctx, in.CorrelationID, in.Stage, 0.8, "storing")
	o.memoizeContext(ctx, in, result.Content)

	o.completeExecution(ctx, executionID, agent.ExecutionStatusCompleted, result.Content, "")
	o.emitProgress(ctx, in.CorrelationID, in.Stage, 1.0, "completed")

	return stageResult, nil
}

func (o *Orchestrator) emitProgress(ctx context.Context, correlationID string, stage agent.StageType, fraction float64, message string) {
	if o.Publisher == nil {
		return
	}
	if err := o.Publisher.PublishStageProgress(ctx, correlationID, stage, fraction, message); err != nil {
		slog.Warn("orchestrator: progress publish failed", "error", err, "correlation_id", correlationID, "stage", stage)
	}
}

// gatherContext queries the vector store scoped to the project for
// memoized context from prior stages. Stage one always gets an empty
// result since the project has no prior output yet.
func (o *Orchestrator) gatherContext(ctx context.Context, in ExecuteStageInput) []agent.ContextChunk {
	query, ok := cannedQueries[in.Stage]
	if !ok || o.Vectors == nil || o.Embedder == nil {
		return nil
	}

	vectors, err := o.Embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		slog.Warn("orchestrator: context query embedding failed", "error", err, "correlation_id", in.CorrelationID)
		return nil
	}

	memoryType := vectorstore.PointMemory
	results, err := o.Vectors.Search(ctx, in.TenantID, in.ProjectID, vectors[0], o.ContextLimitOrDefault(), defaultScoreThreshold, vectorstore.SearchFilters{
		Type: &memoryType,
	})
	if err != nil {
		slog.Warn("orchestrator: context retrieval failed", "error", err, "correlation_id", in.CorrelationID)
		return nil
	}

	chunks := make([]agent.ContextChunk, 0, len(results))
	for _, r := range results {
		content, _ := r.Payload["content"].(string)
		source, _ := r.Payload["stage"].(string)
		chunks = append(chunks, agent.ContextChunk{Content: content, Score: float32(r.Score), Source: source})
	}
	return chunks
}

// ContextLimitOrDefault exposes the effective retrieval limit.
func (o *Orchestrator) ContextLimitOrDefault() int {
	if o.ContextLimit == 0 {
		return defaultContextLimit
	}
	return o.ContextLimit
}

func (o *Orchestrator) recordStart(ctx context.Context, in ExecuteStageInput) (uuid.UUID, error) {
	if o.Executions == nil {
		return uuid.Nil, nil
	}
	input, _ := json.Marshal(map[string]string{"user_input": in.UserInput, "prev_stage_content": in.PrevStageContent})
	correlationUUID, err := uuid.Parse(in.CorrelationID)
	if err != nil {
		correlationUUID = uuid.New()
	}
	return o.Executions.Start(ctx, execrepo.StartInput{
		TenantID:      in.TenantID,
		ProjectID:     in.ProjectID,
		AgentType:     in.Stage,
		CorrelationID: correlationUUID,
		Input:         input,
		InitiatedBy:   in.InitiatedBy,
	})
}

func (o *Orchestrator) completeExecution(ctx context.Context, executionID uuid.UUID, status agent.ExecutionStatus, output, errMsg string) {
	if o.Executions == nil || executionID == uuid.Nil {
		return
	}
	if err := o.Executions.Complete(ctx, executionID, status, output, errMsg); err != nil {
		slog.Error("orchestrator: failed to record execution completion", "error", err)
	}
}

// memoizeContext embeds and upserts the stage's output into the vector
// store as private memory, tagged with the stage and correlation id.
// Storage failures are logged, not propagated — a stage's success never
// depends on the memoization succeeding.
func (o *Orchestrator) memoizeContext(ctx context.Context, in ExecuteStageInput, content string) {
	if o.Vectors == nil || o.Embedder == nil || content == "" {
		return
	}

	vectors, err := o.Embedder.Embed(ctx, []string{content})
	if err != nil || len(vectors) == 0 {
		slog.Warn("orchestrator: memoization embedding failed", "error", err, "correlation_id", in.CorrelationID)
		return
	}

	_, err = o.Vectors.Upsert(ctx, in.TenantID, in.ProjectID, []vectorstore.PointInput{
		{
			Content:    content,
			Embedding:  vectors[0],
			Type:       vectorstore.PointMemory,
			Visibility: vectorstore.VisibilityPrivate,
			Payload: map[string]any{
				"stage":          string(in.Stage),
				"correlation_id": in.CorrelationID,
			},
		},
	})
	if err != nil {
		slog.Warn("orchestrator: memoization upsert failed", "error", err, "correlation_id", in.CorrelationID)
	}
}

var epicHeadingRE = regexp.MustCompile(`(?m)^##\s+Epic\s+(\d+)\s*:?\s*(.*)$`)

// persistVersions writes the stage's document_type version via C7. For
// the planner stage, content is additionally split on "## Epic N: Title"
// headings into zero or more plan_epic versions alongside the single
// plan_overview version.
func (o *Orchestrator) persistVersions(ctx context.Context, in ExecuteStageInput, content string, out *StageResult) error {
	documentType := agent.DocumentTypeFor(in.Stage)
	if documentType == "" {
		return apperr.New(apperr.KindInternal, "stage has no target document type")
	}

	version, err := o.Documents.CreateVersion(ctx, in.TenantID, in.ProjectID, documentType, content, nil)
	if err != nil {
		return fmt.Errorf("orchestrator: persist %s version: %w", documentType, err)
	}
	out.DocumentVersion = version

	if in.Stage != agent.StageImplementationPlanner {
		return nil
	}

	matches := epicHeadingRE.FindAllStringSubmatchIndex(content, -1)
	for i, m := range matches {
		numStr := content[m[2]:m[3]]
		title := strings.TrimSpace(content[m[4]:m[5]])
		num, convErr := strconv.Atoi(numStr)
		if convErr != nil {
			continue
		}

		end := len(content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		epicContent := strings.TrimSpace(content[m[0]:end])

		epicNum := num
		epicVersion, err := o.Documents.CreateVersion(ctx, in.TenantID, in.ProjectID, "plan_epic", epicContent, &epicNum)
		if err != nil {
			return fmt.Errorf("orchestrator: persist plan_epic %d version: %w", num, err)
		}
		out.Epics = append(out.Epics, EpicResult{EpicNumber: num, Title: title, Version: epicVersion})
	}
	return nil
}
