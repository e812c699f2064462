package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/itechmeat/jeex/pkg/apperr"
)

// statusForKind maps a tagged error Kind onto its §7 HTTP status.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// mapError converts any error surfaced from a service or repository call
// into an Echo HTTP error. A tagged *apperr.Error carries its own Kind and
// (if known) correlation id through to the response; anything else is
// logged in full and collapsed to a generic 500 so adapter internals never
// reach the client.
func mapError(err error) *echo.HTTPError {
	appErr, ok := apperr.As(err)
	if !ok {
		slog.Error("api: unclassified error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, errorResponse{Detail: "internal server error"})
	}

	status := statusForKind(appErr.Kind)
	if status >= http.StatusInternalServerError {
		slog.Error("api: internal error", "error", appErr, "kind", appErr.Kind, "correlation_id", appErr.CorrelationID)
	}

	return echo.NewHTTPError(status, errorResponse{
		Detail:        appErr.Message,
		CorrelationID: appErr.CorrelationID,
	})
}
