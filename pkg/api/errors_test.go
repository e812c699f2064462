package api

import (
	"errors"
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/itechmeat/jeex/pkg/apperr"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "validation error maps to 400",
			err:        apperr.Validation("name", "missing field"),
			expectCode: http.StatusBadRequest,
			expectMsg:  "missing field",
		},
		{
			name:       "not found maps to 404",
			err:        apperr.NotFound("project not found"),
			expectCode: http.StatusNotFound,
			expectMsg:  "project not found",
		},
		{
			name:       "conflict maps to 409",
			err:        apperr.Conflict("project name already in use"),
			expectCode: http.StatusConflict,
			expectMsg:  "already in use",
		},
		{
			name:       "unauthorized maps to 401",
			err:        apperr.New(apperr.KindUnauthorized, "missing bearer token"),
			expectCode: http.StatusUnauthorized,
			expectMsg:  "missing bearer token",
		},
		{
			name:       "forbidden maps to 403",
			err:        apperr.New(apperr.KindForbidden, "insufficient permissions for this project"),
			expectCode: http.StatusForbidden,
			expectMsg:  "insufficient permissions",
		},
		{
			name:       "rate limited maps to 429",
			err:        apperr.New(apperr.KindRateLimited, "rate limit exceeded"),
			expectCode: http.StatusTooManyRequests,
			expectMsg:  "rate limit exceeded",
		},
		{
			name:       "upstream maps to 503",
			err:        apperr.Wrap(apperr.KindUpstream, "llm provider unavailable", errors.New("timeout")),
			expectCode: http.StatusServiceUnavailable,
			expectMsg:  "llm provider unavailable",
		},
		{
			name:       "unclassified error collapses to 500 without leaking details",
			err:        errors.New("pq: connection refused"),
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapError(tt.err)
			assert.IsType(t, &echo.HTTPError{}, he)
			assert.Equal(t, tt.expectCode, he.Code)
			assert.Contains(t, he.Error(), tt.expectMsg)
		})
	}
}
