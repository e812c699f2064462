// Package docrepo implements the document version repository (C7):
// monotonic per-(tenant, project, type[, epic]) version assignment,
// soft delete, and listing, backed by the shared Postgres store.
package docrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/itechmeat/jeex/pkg/apperr"
)

// DocumentType enumerates the fixed document_type values.
type DocumentType string

const (
	DocumentAbout        DocumentType = "about"
	DocumentSpecs        DocumentType = "specs"
	DocumentArchitecture DocumentType = "architecture"
	DocumentPlanOverview DocumentType = "plan_overview"
	DocumentPlanEpic     DocumentType = "plan_epic"
)

// Version is one immutable document_versions row.
type Version struct {
	ID           uuid.UUID       `db:"id"`
	TenantID     uuid.UUID       `db:"tenant_id"`
	ProjectID    uuid.UUID       `db:"project_id"`
	DocumentType string          `db:"document_type"`
	VersionNum   int             `db:"version"`
	Title        string          `db:"title"`
	Content      string          `db:"content"`
	EpicNumber   sql.NullInt32   `db:"epic_number"`
	EpicName     sql.NullString  `db:"epic_name"`
	Metadata     json.RawMessage `db:"metadata"`
	CreatedBy    uuid.UUID       `db:"created_by"`
	CreatedAt    time.Time       `db:"created_at"`
	IsDeleted    bool            `db:"is_deleted"`
}

// Repository is the document version store.
type Repository struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateVersionInput bundles the fields needed to append a new version.
type CreateVersionInput struct {
	TenantID     uuid.UUID
	ProjectID    uuid.UUID
	DocumentType DocumentType
	Title        string
	Content      string
	EpicNumber   *int
	EpicName     string
	Metadata     json.RawMessage
	CreatedBy    uuid.UUID
}

// CreateVersion assigns the next monotonic version number for the
// (tenant, project, document_type[, epic_number]) key and inserts the new
// row, all within one transaction, so two concurrent writers can never be
// assigned the same version (C7's next_version + insert invariant).
func (r *Repository) CreateVersion(ctx context.Context, in CreateVersionInput) (*Version, error) {
	if in.Metadata == nil {
		in.Metadata = json.RawMessage(`{}`)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("docrepo: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var epicNumber int32 = -1
	if in.DocumentType == DocumentPlanEpic {
		if in.EpicNumber == nil {
			return nil, apperr.New(apperr.KindValidation, "epic_number is required for plan_epic documents")
		}
		epicNumber = int32(*in.EpicNumber)
	}

	// Serialize concurrent writers for this (tenant, project, type[, epic])
	// key with a transaction-scoped advisory lock, keyed on the hash of the
	// tuple. The aggregate read below runs as a plain SELECT: PostgreSQL
	// rejects FOR UPDATE combined with an aggregate function, so the lock
	// has to come from pg_advisory_xact_lock instead of a row lock.
	lockKey := fmt.Sprintf("%s:%s:%s:%d", in.TenantID, in.ProjectID, in.DocumentType, epicNumber)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return nil, fmt.Errorf("docrepo: acquire version lock: %w", err)
	}

	var nextVersion int
	if in.DocumentType == DocumentPlanEpic {
		err = tx.GetContext(ctx, &nextVersion, `
			SELECT COALESCE(MAX(version), 0) + 1
			FROM document_versions
			WHERE tenant_id = $1 AND project_id = $2 AND document_type = $3 AND epic_number = $4`,
			in.TenantID, in.ProjectID, in.DocumentType, *in.EpicNumber)
	} else {
		err = tx.GetContext(ctx, &nextVersion, `
			SELECT COALESCE(MAX(version), 0) + 1
			FROM document_versions
			WHERE tenant_id = $1 AND project_id = $2 AND document_type = $3`,
			in.TenantID, in.ProjectID, in.DocumentType)
	}
	if err != nil {
		return nil, fmt.Errorf("docrepo: compute next version: %w", err)
	}

	v := &Version{
		ID:           uuid.New(),
		TenantID:     in.TenantID,
		ProjectID:    in.ProjectID,
		DocumentType: string(in.DocumentType),
		VersionNum:   nextVersion,
		Title:        in.Title,
		Content:      in.Content,
		Metadata:     in.Metadata,
		CreatedBy:    in.CreatedBy,
	}
	if in.EpicNumber != nil {
		v.EpicNumber = sql.NullInt32{Int32: int32(*in.EpicNumber), Valid: true}
	}
	if in.EpicName != "" {
		v.EpicName = sql.NullString{String: in.EpicName, Valid: true}
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO document_versions
			(id, tenant_id, project_id, document_type, version, title, content, epic_number, epic_name, metadata, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, is_deleted`,
		v.ID, v.TenantID, v.ProjectID, v.DocumentType, v.VersionNum, v.Title, v.Content,
		v.EpicNumber, v.EpicName, []byte(v.Metadata), v.CreatedBy,
	).Scan(&v.CreatedAt, &v.IsDeleted)
	if err != nil {
		return nil, fmt.Errorf("docrepo: insert version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("docrepo: commit transaction: %w", err)
	}

	return v, nil
}

// LatestByType returns the greatest-version non-deleted row for the given
// key, or (nil, nil) if none exists.
func (r *Repository) LatestByType(ctx context.Context, tenantID, projectID uuid.UUID, documentType DocumentType, epicNumber *int) (*Version, error) {
	var v Version
	var err error
	if documentType == DocumentPlanEpic {
		if epicNumber == nil {
			return nil, apperr.New(apperr.KindValidation, "epic_number is required for plan_epic documents")
		}
		err = r.db.GetContext(ctx, &v, `
			SELECT * FROM document_versions
			WHERE tenant_id = $1 AND project_id = $2 AND document_type = $3 AND epic_number = $4 AND is_deleted = false
			ORDER BY version DESC LIMIT 1`,
			tenantID, projectID, documentType, *epicNumber)
	} else {
		err = r.db.GetContext(ctx, &v, `
			SELECT * FROM document_versions
			WHERE tenant_id = $1 AND project_id = $2 AND document_type = $3 AND is_deleted = false
			ORDER BY version DESC LIMIT 1`,
			tenantID, projectID, documentType)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("docrepo: latest by type: %w", err)
	}
	return &v, nil
}

// LatestPerType returns the latest non-deleted version of every document
// type present for the project — one row per non-epic type, plus one row
// per distinct epic_number for plan_epic. Used by the progress snapshot
// and the export manifest (spec's "latest non-deleted document version
// per type").
func (r *Repository) LatestPerType(ctx context.Context, tenantID, projectID uuid.UUID) ([]Version, error) {
	var rows []Version
	err := r.db.SelectContext(ctx, &rows, `
		SELECT DISTINCT ON (document_type, COALESCE(epic_number, -1)) *
		FROM document_versions
		WHERE tenant_id = $1 AND project_id = $2 AND is_deleted = false
		ORDER BY document_type, COALESCE(epic_number, -1), version DESC`,
		tenantID, projectID)
	if err != nil {
		return nil, fmt.Errorf("docrepo: latest per type: %w", err)
	}
	return rows, nil
}

// CreateVersionForAgent adapts CreateVersion to the pkg/agent.DocumentWriter
// interface shape used by stage agents.
func (r *Repository) CreateVersionForAgent(ctx context.Context, tenantID, projectID uuid.UUID, documentType, content string, epicNumber *int) (int, error) {
	v, err := r.CreateVersion(ctx, CreateVersionInput{
		TenantID:     tenantID,
		ProjectID:    projectID,
		DocumentType: DocumentType(documentType),
		Title:        content,
		Content:      content,
		EpicNumber:   epicNumber,
	})
	if err != nil {
		return 0, err
	}
	return v.VersionNum, nil
}

// AgentWriter adapts a Repository to the pkg/agent.DocumentWriter method
// name the orchestrator calls through (CreateVersion), keeping the
// Repository's own CreateVersion free for its richer CreateVersionInput
// signature used by the HTTP layer.
type AgentWriter struct {
	repo *Repository
}

// AsDocumentWriter wraps r for injection into orchestrator.Orchestrator.
func (r *Repository) AsDocumentWriter() *AgentWriter {
	return &AgentWriter{repo: r}
}

// CreateVersion implements pkg/agent.DocumentWriter.
func (w *AgentWriter) CreateVersion(ctx context.Context, tenantID, projectID uuid.UUID, documentType, content string, epicNumber *int) (int, error) {
	return w.repo.CreateVersionForAgent(ctx, tenantID, projectID, documentType, content, epicNumber)
}
