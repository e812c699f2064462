package api

import (
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/itechmeat/jeex/pkg/agent"
	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/docrepo"
	"github.com/itechmeat/jeex/pkg/orchestrator"
	"github.com/itechmeat/jeex/pkg/tenantctx"
)

func toEpicResponses(epics []orchestrator.EpicResult) []epicResponse {
	out := make([]epicResponse, len(epics))
	for i, e := range epics {
		out[i] = epicResponse{EpicNumber: e.EpicNumber, Title: e.Title, Version: e.Version}
	}
	return out
}

func toStageResponse(r *orchestrator.StageResult) stageResponse {
	return stageResponse{
		Stage:           string(r.Stage),
		DocumentVersion: r.DocumentVersion,
		QualityPassed:   r.QualityPassed,
		QualityIssues:   r.QualityIssues,
		TokensUsed:      r.TokensUsed.TotalTokens,
		Epics:           toEpicResponses(r.Epics),
	}
}

// composeStageInput builds one stage's UserInput field from the request
// body's free-form fields, mirroring pkg/workflow's per-stage derivation
// so a single-stage call and a full workflow run produce equivalent
// prompts for the same stage.
func composeStageInput(stage agent.StageType, req stageRequest, prevContent string) string {
	switch stage {
	case agent.StageBusinessAnalyst:
		input := req.IdeaDescription
		if req.TargetAudience != "" {
			input += "\n\nTarget audience: " + req.TargetAudience
		}
		if req.UserClarifications != "" {
			input += "\n\nClarifications: " + req.UserClarifications
		}
		return input
	case agent.StageEngineeringStandards:
		return req.TechnologyStack
	case agent.StageSolutionArchitect:
		return req.UserTechPreferences
	case agent.StageImplementationPlanner:
		return "Team size: " + req.TeamSize
	}
	return ""
}

// prevStageContentFor resolves the content a single-stage invocation
// derives from, the same stage that agent.Ordered places immediately
// before the requested one. Stage one has none.
func (s *Server) prevStageContentFor(c *echo.Context, tenantID, projectID uuid.UUID, stage agent.StageType) (string, error) {
	var prevStage agent.StageType
	for i, st := range agent.Ordered {
		if st == stage {
			if i == 0 {
				return "", nil
			}
			prevStage = agent.Ordered[i-1]
			break
		}
	}

	version, err := s.documents.LatestByType(c.Request().Context(), tenantID, projectID, docrepo.DocumentType(agent.DocumentTypeFor(prevStage)), nil)
	if err != nil {
		return "", err
	}
	if version == nil {
		return "", apperr.New(apperr.KindConflict, "preceding stage has not produced a document yet")
	}
	return version.Content, nil
}

// stageHandler builds the handler for POST /projects/{id}/step{n}, running
// exactly one stage of the pipeline synchronously.
func (s *Server) stageHandler(n int) echo.HandlerFunc {
	stage := agent.Ordered[n-1]

	return func(c *echo.Context) error {
		identity, _ := tenantctx.FromContext(c.Request().Context())
		projectID, err := parseUUID(c.Param("id"))
		if err != nil {
			return mapError(apperr.Validation("id", "invalid project id"))
		}

		var req stageRequest
		if err := c.Bind(&req); err != nil {
			return mapError(apperr.Validation("body", "malformed request body"))
		}

		prevContent, err := s.prevStageContentFor(c, identity.TenantID, projectID, stage)
		if err != nil {
			return mapError(err)
		}

		correlationID := uuid.NewString()
		if s.scopes != nil {
			s.scopes.Register(correlationID, identity.TenantID, projectID)
			defer s.scopes.Forget(correlationID)
		}

		result, err := s.orchestrator.ExecuteStage(c.Request().Context(), orchestrator.ExecuteStageInput{
			TenantID:         identity.TenantID,
			ProjectID:        projectID,
			CorrelationID:    correlationID,
			Stage:            stage,
			UserInput:        composeStageInput(stage, req, prevContent),
			PrevStageContent: prevContent,
			InitiatedBy:      identity.UserID,
		})
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, toStageResponse(result))
	}
}
