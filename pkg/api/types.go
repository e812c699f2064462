package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/itechmeat/jeex/pkg/export"
)

// HealthCheck is one named component's status within HealthResponse.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health and GET /agents/health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// errorResponse is the fixed shape of every non-2xx JSON error body. The
// detail string never exposes adapter internals; raw errors are logged
// server-side instead, per §7.
type errorResponse struct {
	Detail        string `json:"detail"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type registerRequest struct {
	TenantSlug string `json:"tenant_slug"`
	TenantName string `json:"tenant_name"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

type loginRequest struct {
	TenantSlug string `json:"tenant_slug"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

type validateTokenResponse struct {
	Valid    bool      `json:"valid"`
	UserID   uuid.UUID `json:"user_id"`
	TenantID uuid.UUID `json:"tenant_id"`
}

type userResponse struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type blacklistStatsResponse struct {
	RevokedCount int64 `json:"revoked_count"`
}

type projectResponse struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type stageRequest struct {
	IdeaDescription     string `json:"idea_description"`
	TargetAudience      string `json:"target_audience"`
	UserClarifications  string `json:"user_clarifications"`
	TechnologyStack     string `json:"technology_stack"`
	UserTechPreferences string `json:"user_tech_preferences"`
	TeamSize            string `json:"team_size"`
}

type epicResponse struct {
	EpicNumber int    `json:"epic_number"`
	Title      string `json:"title"`
	Version    int    `json:"version"`
}

type stageResponse struct {
	Stage           string         `json:"stage"`
	DocumentVersion int            `json:"document_version"`
	QualityPassed   bool           `json:"quality_passed"`
	QualityIssues   []string       `json:"quality_issues,omitempty"`
	TokensUsed      int            `json:"tokens_used"`
	Epics           []epicResponse `json:"epics,omitempty"`
}

type documentSummary struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
}

type progressResponse struct {
	ProjectID       uuid.UUID         `json:"project_id"`
	OverallProgress int               `json:"overall_progress"`
	Stages          map[string]string `json:"stages"`
	Documents       []documentSummary `json:"documents"`
}

type createExportRequest struct {
	Format         string `json:"format"`
	ExpiresInHours int    `json:"expires_in_hours"`
}

// createExportResponse is returned from POST /projects/{id}/export. Manifest
// is absent until generation completes — §4.12 only populates it as part of
// generate_export, so a freshly-queued (Pending) export reports none yet.
type createExportResponse struct {
	ExportID  uuid.UUID        `json:"export_id"`
	Status    string           `json:"status"`
	ExpiresAt time.Time        `json:"expires_at"`
	Manifest  *export.Manifest `json:"manifest,omitempty"`
}

type executeWorkflowRequest struct {
	TenantID            uuid.UUID `json:"tenant_id"`
	ProjectID           uuid.UUID `json:"project_id"`
	UserID              uuid.UUID `json:"user_id"`
	IdeaDescription     string    `json:"idea_description"`
	TargetAudience      string    `json:"target_audience"`
	UserClarifications  string    `json:"user_clarifications"`
	TechnologyStack     string    `json:"technology_stack"`
	UserTechPreferences string    `json:"user_tech_preferences"`
	TeamSize            string    `json:"team_size"`
}
