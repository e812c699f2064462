package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/projectrepo"
	"github.com/itechmeat/jeex/pkg/tenantctx"
)

func toProjectResponse(p *projectrepo.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		TenantID:    p.TenantID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description.String,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// listProjectsHandler handles GET /projects.
func (s *Server) listProjectsHandler(c *echo.Context) error {
	identity, _ := tenantctx.FromContext(c.Request().Context())

	projects, err := s.projects.List(c.Request().Context(), identity.TenantID)
	if err != nil {
		return mapError(err)
	}

	out := make([]projectResponse, len(projects))
	for i := range projects {
		out[i] = toProjectResponse(&projects[i])
	}
	return c.JSON(http.StatusOK, out)
}

// createProjectHandler handles POST /projects.
func (s *Server) createProjectHandler(c *echo.Context) error {
	identity, _ := tenantctx.FromContext(c.Request().Context())

	var req createProjectRequest
	if err := c.Bind(&req); err != nil {
		return mapError(apperr.Validation("body", "malformed request body"))
	}
	if req.Name == "" {
		return mapError(apperr.Validation("name", "name is required"))
	}

	project, err := s.projects.Create(c.Request().Context(), projectrepo.CreateInput{
		TenantID:    identity.TenantID,
		OwnerID:     identity.UserID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, toProjectResponse(project))
}

// getProjectHandler handles GET /projects/{id}.
func (s *Server) getProjectHandler(c *echo.Context) error {
	identity, _ := tenantctx.FromContext(c.Request().Context())
	projectID, err := parseUUID(c.Param("id"))
	if err != nil {
		return mapError(apperr.Validation("id", "invalid project id"))
	}

	project, err := s.projects.Get(c.Request().Context(), identity.TenantID, projectID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toProjectResponse(project))
}

// updateProjectHandler handles PUT /projects/{id}.
func (s *Server) updateProjectHandler(c *echo.Context) error {
	identity, _ := tenantctx.FromContext(c.Request().Context())
	projectID, err := parseUUID(c.Param("id"))
	if err != nil {
		return mapError(apperr.Validation("id", "invalid project id"))
	}

	var req updateProjectRequest
	if err := c.Bind(&req); err != nil {
		return mapError(apperr.Validation("body", "malformed request body"))
	}

	in := projectrepo.UpdateInput{Name: req.Name, Description: req.Description}
	if req.Status != nil {
		status := projectrepo.Status(*req.Status)
		in.Status = &status
	}

	project, err := s.projects.Update(c.Request().Context(), identity.TenantID, projectID, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toProjectResponse(project))
}

// deleteProjectHandler handles DELETE /projects/{id}.
func (s *Server) deleteProjectHandler(c *echo.Context) error {
	identity, _ := tenantctx.FromContext(c.Request().Context())
	projectID, err := parseUUID(c.Param("id"))
	if err != nil {
		return mapError(apperr.Validation("id", "invalid project id"))
	}

	if err := s.projects.Delete(c.Request().Context(), identity.TenantID, projectID); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}
