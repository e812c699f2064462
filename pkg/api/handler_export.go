package api

import (
	"encoding/json"
	"net/http"
	"os"

	echo "github.com/labstack/echo/v5"

	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/export"
	"github.com/itechmeat/jeex/pkg/tenantctx"
)

// createExportHandler handles POST /projects/{id}/export: queues a new
// export row, which the background worker pool generates asynchronously.
func (s *Server) createExportHandler(c *echo.Context) error {
	identity, _ := tenantctx.FromContext(c.Request().Context())
	projectID, err := parseUUID(c.Param("id"))
	if err != nil {
		return mapError(apperr.Validation("id", "invalid project id"))
	}

	var req createExportRequest
	if err := c.Bind(&req); err != nil {
		return mapError(apperr.Validation("body", "malformed request body"))
	}

	e, err := s.exports.Create(c.Request().Context(), export.CreateInput{
		TenantID:       identity.TenantID,
		ProjectID:      projectID,
		RequestedBy:    identity.UserID,
		Format:         req.Format,
		ExpiresInHours: req.ExpiresInHours,
	})
	if err != nil {
		return mapError(err)
	}

	resp := createExportResponse{ExportID: e.ID, Status: string(e.Status), ExpiresAt: e.ExpiresAt}
	if e.Status == export.StatusCompleted && len(e.Manifest) > 0 {
		var manifest export.Manifest
		if err := json.Unmarshal(e.Manifest, &manifest); err == nil {
			resp.Manifest = &manifest
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// downloadExportHandler handles GET /exports/{id}. Exports are not
// addressed through a project-scoped path, so the tenant check happens
// here rather than via requireProjectPermission: a caller from another
// tenant gets the same 404 a nonexistent export id would, per §8's S5
// cross-tenant-read contract.
func (s *Server) downloadExportHandler(c *echo.Context) error {
	identity, _ := tenantctx.FromContext(c.Request().Context())
	exportID, err := parseUUID(c.Param("id"))
	if err != nil {
		return mapError(apperr.Validation("id", "invalid export id"))
	}

	e, err := s.exports.Get(c.Request().Context(), exportID)
	if err != nil {
		return mapError(err)
	}
	if e.TenantID != identity.TenantID {
		return mapError(apperr.NotFound("export not found"))
	}
	if !s.exports.IsDownloadable(e) {
		return mapError(apperr.NotFound("export not ready or expired"))
	}

	f, err := os.Open(e.FilePath.String)
	if err != nil {
		return mapError(apperr.Wrap(apperr.KindNotFound, "export file missing from storage", err))
	}
	defer f.Close()

	c.Response().Header().Set("Content-Disposition", "attachment; filename=\"export.zip\"")
	return c.Stream(http.StatusOK, "application/zip", f)
}
