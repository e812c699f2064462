package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/itechmeat/jeex/pkg/agent"
	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/execrepo"
	"github.com/itechmeat/jeex/pkg/tenantctx"
)

// progressHandler handles GET /projects/{id}/progress: a snapshot of each
// stage's most recent execution status plus the project's current
// documents, per §8's S1 scenario ("overall_progress=100 and 4
// documents" once the workflow finishes).
func (s *Server) progressHandler(c *echo.Context) error {
	identity, _ := tenantctx.FromContext(c.Request().Context())
	projectID, err := parseUUID(c.Param("id"))
	if err != nil {
		return mapError(apperr.Validation("id", "invalid project id"))
	}

	statuses, err := s.executions.LatestStatuses(c.Request().Context(), identity.TenantID, projectID)
	if err != nil {
		return mapError(err)
	}

	versions, err := s.documents.LatestPerType(c.Request().Context(), identity.TenantID, projectID)
	if err != nil {
		return mapError(err)
	}

	stages := make(map[string]string, len(agent.Ordered))
	completed := 0
	for _, stage := range agent.Ordered {
		status, found := statuses[stage]
		if !found {
			stages[string(stage)] = "pending"
			continue
		}
		stages[string(stage)] = string(status)
		if status == execrepo.StatusCompleted {
			completed++
		}
	}

	documents := make([]documentSummary, len(versions))
	for i, v := range versions {
		documents[i] = documentSummary{Type: v.DocumentType, Version: v.VersionNum}
	}

	overall := completed * 100 / len(agent.Ordered)

	return c.JSON(http.StatusOK, progressResponse{
		ProjectID:       projectID,
		OverallProgress: overall,
		Stages:          stages,
		Documents:       documents,
	})
}
