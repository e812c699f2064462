// Package workflow drives the full four-stage pipeline (C12) for one
// project, bound to a single correlation id: Business Analyst →
// Engineering Standards → Solution Architect → Implementation Planner.
// It derives each stage's input from the prior stages' output, enforces
// inter-stage preconditions, and stops at the first failing stage.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/itechmeat/jeex/pkg/agent"
	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/execrepo"
	"github.com/itechmeat/jeex/pkg/metrics"
	"github.com/itechmeat/jeex/pkg/orchestrator"
)

const defaultInterStagePause = time.Second

// StageExecutor is the subset of *orchestrator.Orchestrator the workflow
// engine needs, narrowed to an interface so tests can substitute a fake.
type StageExecutor interface {
	ExecuteStage(ctx context.Context, in orchestrator.ExecuteStageInput) (*orchestrator.StageResult, error)
}

// PreconditionChecker reports the most recent execution status recorded
// for a stage, used to enforce "stage N only starts if stage N-1
// succeeded" across process restarts and concurrent callers.
type PreconditionChecker interface {
	LatestStatus(ctx context.Context, tenantID, projectID uuid.UUID, stage agent.StageType) (execrepo.Status, bool, error)
}

// CompletionPublisher emits the workflow-level completion event, distinct
// from the per-stage progress events the orchestrator already emits.
type CompletionPublisher interface {
	PublishWorkflowComplete(ctx context.Context, tenantID, projectID uuid.UUID, correlationID string) error
}

// RunRequest bundles the original request fields every stage input is
// derived from.
type RunRequest struct {
	TenantID            uuid.UUID
	ProjectID           uuid.UUID
	CorrelationID       string
	InitiatedBy         uuid.UUID
	IdeaDescription     string
	TargetAudience      string
	UserClarifications  string
	TechnologyStack     string
	UserTechPreferences string
	TeamSize            string
}

// Engine runs the fixed four-stage sequence for one RunRequest.
type Engine struct {
	Executor         StageExecutor
	Preconditions    PreconditionChecker
	Completion       CompletionPublisher
	DefaultTechStack string
	InterStagePause  time.Duration
}

// RunResult is one stage's outcome within a workflow run.
type RunResult struct {
	Stage  agent.StageType
	Result *orchestrator.StageResult
}

// Run executes stages 1 through 4 in order, deriving each stage's input
// from the previous stages' content, stopping at the first failure.
// workflow_complete is only emitted if stage 4 succeeds.
func (e *Engine) Run(ctx context.Context, req RunRequest) ([]RunResult, error) {
	pause := e.InterStagePause
	if pause == 0 {
		pause = defaultInterStagePause
	}

	results := make([]RunResult, 0, len(agent.Ordered))
	var analystContent, architectContent string

	for i, stage := range agent.Ordered {
		if i > 0 {
			if err := e.checkPrecondition(ctx, req, agent.Ordered[i-1]); err != nil {
				return results, err
			}
		}

		input := e.deriveInput(req, stage, analystContent, architectContent)

		stageStart := time.Now()
		result, err := e.Executor.ExecuteStage(ctx, input)
		if err != nil {
			metrics.ObserveWorkflowStage(string(stage), "error", time.Since(stageStart))
			return results, err
		}
		metrics.ObserveWorkflowStage(string(stage), "success", time.Since(stageStart))
		results = append(results, RunResult{Stage: stage, Result: result})

		switch stage {
		case agent.StageBusinessAnalyst:
			analystContent = result.Content
		case agent.StageSolutionArchitect:
			architectContent = result.Content
		}

		if i < len(agent.Ordered)-1 {
			e.pause(ctx, pause)
		}
	}

	if e.Completion != nil {
		if err := e.Completion.PublishWorkflowComplete(ctx, req.TenantID, req.ProjectID, req.CorrelationID); err != nil {
			slog.Warn("workflow: workflow_complete publish failed", "error", err, "correlation_id", req.CorrelationID)
		}
	}

	return results, nil
}

// checkPrecondition enforces that the previous stage did not fail before
// starting the next one. A missing prior execution record means the
// caller invoked a later stage out of order, which is also a violation.
func (e *Engine) checkPrecondition(ctx context.Context, req RunRequest, prevStage agent.StageType) error {
	if e.Preconditions == nil {
		return nil
	}
	status, found, err := e.Preconditions.LatestStatus(ctx, req.TenantID, req.ProjectID, prevStage)
	if err != nil {
		return err
	}
	if !found || status == execrepo.StatusFailed || status == execrepo.StatusCancelled {
		return apperr.New(apperr.KindConflict, "preceding stage did not complete successfully")
	}
	return nil
}

// deriveInput builds the stage-specific ExecuteStageInput per §4.10's
// input-derivation rules.
func (e *Engine) deriveInput(req RunRequest, stage agent.StageType, analystContent, architectContent string) orchestrator.ExecuteStageInput {
	base := orchestrator.ExecuteStageInput{
		TenantID:      req.TenantID,
		ProjectID:     req.ProjectID,
		CorrelationID: req.CorrelationID,
		Stage:         stage,
		InitiatedBy:   req.InitiatedBy,
	}

	switch stage {
	case agent.StageBusinessAnalyst:
		base.UserInput = composeAnalystInput(req)
	case agent.StageEngineeringStandards:
		techStack := req.TechnologyStack
		if techStack == "" {
			techStack = e.DefaultTechStack
		}
		base.PrevStageContent = analystContent
		base.UserInput = techStack
	case agent.StageSolutionArchitect:
		base.PrevStageContent = analystContent
		base.UserInput = req.UserTechPreferences
	case agent.StageImplementationPlanner:
		base.PrevStageContent = architectContent
		base.UserInput = composePlannerInput(req, analystContent)
	}

	return base
}

func composeAnalystInput(req RunRequest) string {
	input := req.IdeaDescription
	if req.TargetAudience != "" {
		input += "\n\nTarget audience: " + req.TargetAudience
	}
	if req.UserClarifications != "" {
		input += "\n\nClarifications: " + req.UserClarifications
	}
	return input
}

func composePlannerInput(req RunRequest, analystContent string) string {
	input := analystContent
	if req.TeamSize != "" {
		input += "\n\nTeam size: " + req.TeamSize
	}
	return input
}

func (e *Engine) pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
