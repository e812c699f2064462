package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderBreaker_OpensAfterFailureThreshold(t *testing.T) {
	b := newProviderBreaker("test", BreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Hour})
	ctx := context.Background()
	failing := func(ctx context.Context) (GenerateResponse, error) {
		return GenerateResponse{}, errors.New("boom")
	}

	_, err := b.execute(ctx, "test", "", failing)
	require.Error(t, err)
	_, err = b.execute(ctx, "test", "", failing)
	require.Error(t, err)

	_, err = b.execute(ctx, "test", "", failing)
	require.Error(t, err)
	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrorBreakerOpen, llmErr.Kind)
}

func TestProviderBreaker_ClosesAfterSuccessesInHalfOpen(t *testing.T) {
	b := newProviderBreaker("test", BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 10 * time.Millisecond})
	ctx := context.Background()

	_, err := b.execute(ctx, "test", "", func(ctx context.Context) (GenerateResponse, error) {
		return GenerateResponse{}, errors.New("boom")
	})
	require.Error(t, err)

	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 2; i++ {
		_, err = b.execute(ctx, "test", "", func(ctx context.Context) (GenerateResponse, error) {
			return GenerateResponse{Content: "ok"}, nil
		})
		require.NoError(t, err)
	}

	_, err = b.execute(ctx, "test", "", func(ctx context.Context) (GenerateResponse, error) {
		return GenerateResponse{}, errors.New("boom")
	})
	require.Error(t, err)
	var llmErr *Error
	assert.False(t, errors.As(err, &llmErr) && llmErr.Kind == ErrorBreakerOpen)
}
