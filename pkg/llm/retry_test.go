package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry_SucceedsAfterRetryableFailures(t *testing.T) {
	calls := 0
	result, err := withRetry(context.Background(), func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt < 2 {
			return "", newHTTPStatusError("test", "", 503, "unavailable", nil)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_DoesNotRetryNonRetryableError(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", newHTTPStatusError("test", "", 400, "bad request", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), func(ctx context.Context, attempt int) (string, error) {
		calls++
		return "", newHTTPStatusError("test", "", 500, "server error", nil)
	})
	require.Error(t, err)
	assert.Equal(t, retryMaxAttempts, calls)
}

func TestIsRetryable_ClassifiesByStatus(t *testing.T) {
	assert.True(t, isRetryable(newHTTPStatusError("p", "", 429, "", nil)))
	assert.True(t, isRetryable(newHTTPStatusError("p", "", 503, "", nil)))
	assert.False(t, isRetryable(newHTTPStatusError("p", "", 404, "", nil)))
	assert.False(t, isRetryable(errors.New("generic")))
}
