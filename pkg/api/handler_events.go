package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/itechmeat/jeex/pkg/apperr"
	"github.com/itechmeat/jeex/pkg/streaming"
	"github.com/itechmeat/jeex/pkg/tenantctx"
)

// eventsHandler handles GET /projects/{id}/events: a long-lived SSE
// stream of every progress/completion event published for the project,
// per §4.11. The connection ends when the client disconnects or a
// complete/error envelope is written, whichever comes first.
func (s *Server) eventsHandler(c *echo.Context) error {
	identity, _ := tenantctx.FromContext(c.Request().Context())
	projectID, err := parseUUID(c.Param("id"))
	if err != nil {
		return mapError(apperr.Validation("id", "invalid project id"))
	}

	ctx := c.Request().Context()
	envelopes, unsubscribe, err := s.hub.Subscribe(ctx, identity.TenantID, projectID)
	if err != nil {
		return mapError(apperr.Wrap(apperr.KindUpstream, "failed to subscribe to project events", err))
	}
	defer unsubscribe()

	res := c.Response()
	res.Header().Set("Content-Type", "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	return streaming.WriteSSE(ctx, res, res, envelopes)
}
