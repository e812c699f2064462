package llm

import (
	"context"
	"errors"
	"net"
	"time"
)

const (
	retryMaxAttempts = 3
	retryBaseDelay   = 1 * time.Second
	retryCapDelay    = 16 * time.Second
)

// retryableStatus reports whether an HTTPStatus-kind *Error's status
// warrants another attempt: HTTP 429 or any 5xx.
func retryableStatus(status int) bool {
	return status == 429 || status >= 500
}

// isRetryable decides whether err warrants another attempt under the
// bounded exponential-backoff policy: network errors, HTTP 429, and HTTP
// 5xx. Schema mismatches and other 4xx errors are propagated immediately.
func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		if llmErr.Kind == ErrorHTTPStatus {
			return retryableStatus(llmErr.StatusCode)
		}
		return false
	}

	return false
}

// withRetry wraps fn in up to retryMaxAttempts tries with bounded
// exponential backoff (base 1s, cap 16s), retrying only errors
// isRetryable accepts. The context's deadline/cancellation is honored
// between attempts.
func withRetry[T any](ctx context.Context, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var (
		result T
		err    error
	)

	delay := retryBaseDelay
	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		result, err = fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if attempt == retryMaxAttempts || !isRetryable(err) {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > retryCapDelay {
			delay = retryCapDelay
		}
	}
	return result, err
}
