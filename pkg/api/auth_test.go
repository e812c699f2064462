package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{
			name:     "no header returns empty",
			header:   "",
			expected: "",
		},
		{
			name:     "well-formed bearer header",
			header:   "Bearer abc.def.ghi",
			expected: "abc.def.ghi",
		},
		{
			name:     "basic auth header is not a bearer token",
			header:   "Basic dXNlcjpwYXNz",
			expected: "",
		},
		{
			name:     "missing the trailing space after Bearer is rejected",
			header:   "Bearerabc.def.ghi",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.expected, bearerToken(req))
		})
	}
}
