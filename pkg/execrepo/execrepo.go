// Package execrepo persists AgentExecution rows: the audit trail of every
// stage run (input, output, status, timing), keyed by correlation id.
package execrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/itechmeat/jeex/pkg/agent"
)

// Status mirrors agent_executions.status's fixed CHECK constraint.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func statusFromExecution(s agent.ExecutionStatus) Status {
	switch s {
	case agent.ExecutionStatusRunning:
		return StatusRunning
	case agent.ExecutionStatusCompleted:
		return StatusCompleted
	case agent.ExecutionStatusFailed:
		return StatusFailed
	case agent.ExecutionStatusCancelled:
		return StatusCancelled
	default:
		return StatusPending
	}
}

// Execution is one agent_executions row.
type Execution struct {
	ID            uuid.UUID       `db:"id"`
	TenantID      uuid.UUID       `db:"tenant_id"`
	ProjectID     uuid.UUID       `db:"project_id"`
	AgentType     string          `db:"agent_type"`
	CorrelationID uuid.UUID       `db:"correlation_id"`
	Status        Status          `db:"status"`
	Input         json.RawMessage `db:"input"`
	Output        sql.NullString  `db:"output"`
	Error         sql.NullString  `db:"error"`
	StartedAt     time.Time       `db:"started_at"`
	CompletedAt   sql.NullTime    `db:"completed_at"`
	InitiatedBy   uuid.UUID       `db:"initiated_by"`
}

// Repository is the agent_executions store.
type Repository struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// StartInput bundles the fields needed to record a stage run's start.
type StartInput struct {
	TenantID      uuid.UUID
	ProjectID     uuid.UUID
	AgentType     agent.StageType
	CorrelationID uuid.UUID
	Input         json.RawMessage
	InitiatedBy   uuid.UUID
}

// Start inserts a new row in the Running state and returns its id.
func (r *Repository) Start(ctx context.Context, in StartInput) (uuid.UUID, error) {
	if in.Input == nil {
		in.Input = json.RawMessage(`{}`)
	}
	id := uuid.New()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agent_executions (id, tenant_id, project_id, agent_type, correlation_id, status, input, initiated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, in.TenantID, in.ProjectID, string(in.AgentType), in.CorrelationID, string(StatusRunning), []byte(in.Input), in.InitiatedBy,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("execrepo: start execution: %w", err)
	}
	return id, nil
}

// Complete marks an execution row finished, recording its final status,
// output (nil on failure), and error message (empty on success). output
// is the stage's raw generated content; since the column is JSONB, it is
// wrapped as {"content": output} rather than inserted as bare text.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, status agent.ExecutionStatus, output string, errMsg string) error {
	var outputArg sql.NullString
	if output != "" {
		wrapped, err := json.Marshal(map[string]string{"content": output})
		if err != nil {
			return fmt.Errorf("execrepo: marshal output: %w", err)
		}
		outputArg = sql.NullString{String: string(wrapped), Valid: true}
	}
	var errArg sql.NullString
	if errMsg != "" {
		errArg = sql.NullString{String: errMsg, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE agent_executions
		SET status = $1, output = $2, error = $3, completed_at = now()
		WHERE id = $4`,
		string(statusFromExecution(status)), outputArg, errArg, id,
	)
	if err != nil {
		return fmt.Errorf("execrepo: complete execution: %w", err)
	}
	return nil
}

// LatestStatus returns the most recent execution's status for the stage,
// or (false, nil) if no execution for that (tenant, project, stage)
// exists yet — used by the workflow engine's precondition checks.
func (r *Repository) LatestStatus(ctx context.Context, tenantID, projectID uuid.UUID, stage agent.StageType) (Status, bool, error) {
	var status string
	err := r.db.GetContext(ctx, &status, `
		SELECT status FROM agent_executions
		WHERE tenant_id = $1 AND project_id = $2 AND agent_type = $3
		ORDER BY started_at DESC LIMIT 1`,
		tenantID, projectID, string(stage))
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("execrepo: latest status: %w", err)
	}
	return Status(status), true, nil
}

// LatestStatuses reports the most recent status of every stage that has
// ever run for the project, keyed by stage. Stages with no execution row
// yet are simply absent from the map — used by the progress snapshot
// endpoint to derive an overall-completion percentage.
func (r *Repository) LatestStatuses(ctx context.Context, tenantID, projectID uuid.UUID) (map[agent.StageType]Status, error) {
	result := make(map[agent.StageType]Status, len(agent.Ordered))
	for _, stage := range agent.Ordered {
		status, found, err := r.LatestStatus(ctx, tenantID, projectID, stage)
		if err != nil {
			return nil, err
		}
		if found {
			result[stage] = status
		}
	}
	return result, nil
}
