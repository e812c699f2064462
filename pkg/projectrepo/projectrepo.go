// Package projectrepo implements the project repository backing §6's
// `/projects` routes: tenant-scoped CRUD plus the per-project member/role
// lookup the access-control check in §4.1 relies on.
package projectrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/tenantctx"
)

// Status mirrors projects.status's fixed CHECK constraint.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

// Project is one projects row.
type Project struct {
	ID          uuid.UUID      `db:"id"`
	TenantID    uuid.UUID      `db:"tenant_id"`
	OwnerID     uuid.UUID      `db:"owner_id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	Status      Status         `db:"status"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	DeletedAt   sql.NullTime   `db:"deleted_at"`
}

// Repository is the project store.
type Repository struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateInput bundles the fields needed to create a project. The
// creating user is seeded as the project's OWNER member in the same
// transaction, so "create a project" and "become its owner" can never
// diverge.
type CreateInput struct {
	TenantID    uuid.UUID
	OwnerID     uuid.UUID
	Name        string
	Description string
}

// Create inserts a new project and its creator's OWNER membership.
func (r *Repository) Create(ctx context.Context, in CreateInput) (*Project, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("projectrepo: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var ownerRoleID uuid.UUID
	err = tx.GetContext(ctx, &ownerRoleID, `SELECT id FROM roles WHERE tenant_id = $1 AND name = $2`,
		in.TenantID, string(tenantctx.RoleOwner))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindInternal, "tenant has no seeded OWNER role")
	}
	if err != nil {
		return nil, fmt.Errorf("projectrepo: lookup owner role: %w", err)
	}

	p := &Project{
		ID:       uuid.New(),
		TenantID: in.TenantID,
		OwnerID:  in.OwnerID,
		Name:     in.Name,
		Status:   StatusDraft,
	}
	if in.Description != "" {
		p.Description = sql.NullString{String: in.Description, Valid: true}
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO projects (id, tenant_id, owner_id, name, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		p.ID, p.TenantID, p.OwnerID, p.Name, p.Description, string(p.Status),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, apperr.Conflict("a project with this name already exists in this tenant")
	}
	if err != nil {
		return nil, fmt.Errorf("projectrepo: insert project: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO project_members (tenant_id, project_id, user_id, role_id)
		VALUES ($1, $2, $3, $4)`,
		p.TenantID, p.ID, p.OwnerID, ownerRoleID)
	if err != nil {
		return nil, fmt.Errorf("projectrepo: seed owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("projectrepo: commit create: %w", err)
	}
	return p, nil
}

// Get returns one non-deleted project, scoped to tenantID. A project
// that exists but belongs to a different tenant is indistinguishable
// from one that doesn't exist at all — both return NotFound, so a
// cross-tenant probe can never confirm an id is in use (§8's S5).
func (r *Repository) Get(ctx context.Context, tenantID, projectID uuid.UUID) (*Project, error) {
	var p Project
	err := r.db.GetContext(ctx, &p, `
		SELECT * FROM projects WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`,
		projectID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("projectrepo: get: %w", err)
	}
	return &p, nil
}

// List returns every non-deleted project owned by tenantID.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]Project, error) {
	var rows []Project
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM projects WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("projectrepo: list: %w", err)
	}
	return rows, nil
}

// UpdateInput bundles the mutable project fields; a nil pointer leaves
// that field unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Status      *Status
}

// Update applies a partial update to a project and returns the new row.
func (r *Repository) Update(ctx context.Context, tenantID, projectID uuid.UUID, in UpdateInput) (*Project, error) {
	current, err := r.Get(ctx, tenantID, projectID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		current.Name = *in.Name
	}
	if in.Description != nil {
		current.Description = sql.NullString{String: *in.Description, Valid: *in.Description != ""}
	}
	if in.Status != nil {
		current.Status = *in.Status
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE projects SET name = $1, description = $2, status = $3, updated_at = now()
		WHERE id = $4 AND tenant_id = $5`,
		current.Name, current.Description, string(current.Status), projectID, tenantID)
	if isUniqueViolation(err) {
		return nil, apperr.Conflict("a project with this name already exists in this tenant")
	}
	if err != nil {
		return nil, fmt.Errorf("projectrepo: update: %w", err)
	}
	return r.Get(ctx, tenantID, projectID)
}

// Delete soft-deletes a project.
func (r *Repository) Delete(ctx context.Context, tenantID, projectID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects SET deleted_at = now() WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`,
		projectID, tenantID)
	if err != nil {
		return fmt.Errorf("projectrepo: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("projectrepo: delete rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("project not found")
	}
	return nil
}

// MemberRole returns the caller's seeded role within the project, used
// by the access-control check in §4.1: "does the user, via its role in
// this project within this tenant, carry permission P?"
func (r *Repository) MemberRole(ctx context.Context, tenantID, projectID, userID uuid.UUID) (tenantctx.RoleName, error) {
	var name string
	err := r.db.GetContext(ctx, &name, `
		SELECT r.name FROM project_members pm
		JOIN roles r ON r.id = pm.role_id
		WHERE pm.tenant_id = $1 AND pm.project_id = $2 AND pm.user_id = $3 AND pm.is_active = true`,
		tenantID, projectID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.New(apperr.KindForbidden, "user is not a member of this project")
	}
	if err != nil {
		return "", fmt.Errorf("projectrepo: member role: %w", err)
	}
	return tenantctx.RoleName(name), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
