package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/streaming"
	"github.com/itechmeat/jeex/pkg/workflow"
)

// executeWorkflowStreamHandler handles POST /agents/workflow/execute-stream:
// runs the full four-stage pipeline for one project and streams its
// progress back as SSE, per §4.10/§4.11 and §8's S1 scenario. The
// workflow itself publishes every event through the same hub this
// handler subscribes to (via the orchestrator's ProgressPublisher and the
// engine's CompletionPublisher), so the run is started in a background
// goroutine and the handler's only job is to relay what arrives until a
// complete/error envelope closes the stream.
func (s *Server) executeWorkflowStreamHandler(c *echo.Context) error {
	var req executeWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return mapError(apperr.Validation("body", "malformed request body"))
	}
	if req.TenantID == uuid.Nil || req.ProjectID == uuid.Nil {
		return mapError(apperr.Validation("project_id", "tenant_id and project_id are required"))
	}

	ctx := c.Request().Context()
	envelopes, unsubscribe, err := s.hub.Subscribe(ctx, req.TenantID, req.ProjectID)
	if err != nil {
		return mapError(apperr.Wrap(apperr.KindUpstream, "failed to subscribe to workflow events", err))
	}
	defer unsubscribe()

	correlationID := uuid.NewString()
	if s.scopes != nil {
		s.scopes.Register(correlationID, req.TenantID, req.ProjectID)
	}

	go func() {
		runCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if s.scopes != nil {
			defer s.scopes.Forget(correlationID)
		}

		if err := s.hub.Publish(runCtx, req.TenantID, req.ProjectID, streaming.Envelope{
			Type:       streaming.EventStart,
			WorkflowID: correlationID,
			Timestamp:  time.Now().UTC(),
		}); err != nil {
			slog.Warn("agents: start event publish failed", "error", err, "correlation_id", correlationID)
		}

		if _, err := s.workflow.Run(runCtx, workflow.RunRequest{
			TenantID:            req.TenantID,
			ProjectID:           req.ProjectID,
			CorrelationID:       correlationID,
			InitiatedBy:         req.UserID,
			IdeaDescription:     req.IdeaDescription,
			TargetAudience:      req.TargetAudience,
			UserClarifications:  req.UserClarifications,
			TechnologyStack:     req.TechnologyStack,
			UserTechPreferences: req.UserTechPreferences,
			TeamSize:            req.TeamSize,
		}); err != nil {
			if pubErr := s.hub.Publish(runCtx, req.TenantID, req.ProjectID, streaming.Envelope{
				Type:       streaming.EventError,
				WorkflowID: correlationID,
				Timestamp:  time.Now().UTC(),
				Payload:    map[string]any{"message": err.Error()},
			}); pubErr != nil {
				slog.Warn("agents: error event publish failed", "error", pubErr, "correlation_id", correlationID)
			}
		}
	}()

	res := c.Response()
	res.Header().Set("Content-Type", "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	return streaming.WriteSSE(ctx, res, res, envelopes)
}
