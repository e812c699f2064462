// Package ratelimit implements the sliding-window rate limiter (C3): a
// single check(key, limit, window) operation backed by a Redis sorted set
// per key, fail-open on adapter error.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/itechmeat/jeex/pkg/kv"
	"github.com/itechmeat/jeex/pkg/metrics"
)

// Result is the outcome of a single check call.
type Result struct {
	Allowed   bool
	Current   int64
	Remaining int64
	Limit     int64
	Window    time.Duration
	ResetAt   time.Time
	// Degraded is true when the adapter failed and the request was
	// allowed through fail-open rather than actually checked.
	Degraded bool
}

// Limiter evaluates the sliding-window algorithm described in spec §4.2.
type Limiter struct {
	redis *kv.Client
}

func New(redis *kv.Client) *Limiter {
	return &Limiter{redis: redis}
}

// Check evaluates and records one request against key, per the algorithm:
//  1. Evict members with score <= now-window.
//  2. Count remaining members.
//  3. If count >= limit, reject without recording; reset_at = oldest+window.
//  4. Otherwise record {score: now, member: unique} and set the key TTL.
//
// Any Redis error fails open: the request is allowed and Degraded is set
// so the caller can annotate the response with an error note, per spec
// §4.2's fail-open contract (this is the opposite polarity of the token
// blacklist, which fails closed — see pkg/blacklist).
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) Result {
	now := time.Now()
	windowStart := now.Add(-window)
	policy := policyLabel(key)

	pipe := l.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", scoreString(windowStart))
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		slog.Warn("rate limiter adapter error, failing open", "key", key, "error", err)
		metrics.RecordRateLimitDecision(policy, "degraded")
		return Result{Allowed: true, Limit: limit, Window: window, Degraded: true}
	}

	current, _ := countCmd.Result()
	if current >= limit {
		resetAt := now.Add(window)
		if members, err := oldestCmd.Result(); err == nil && len(members) > 0 {
			oldest := time.Unix(int64(members[0].Score), 0)
			resetAt = oldest.Add(window)
		}
		metrics.RecordRateLimitDecision(policy, "denied")
		return Result{
			Allowed:   false,
			Current:   current,
			Remaining: 0,
			Limit:     limit,
			Window:    window,
			ResetAt:   resetAt,
		}
	}

	member := uuid.NewString()
	addPipe := l.redis.TxPipeline()
	addPipe.ZAdd(ctx, key, redis.Z{Score: float64(now.Unix()), Member: member})
	addPipe.Expire(ctx, key, window)
	if _, err := addPipe.Exec(ctx); err != nil {
		slog.Warn("rate limiter adapter error recording request, failing open", "key", key, "error", err)
		metrics.RecordRateLimitDecision(policy, "degraded")
		return Result{Allowed: true, Limit: limit, Window: window, Degraded: true}
	}

	remaining := limit - current - 1
	if remaining < 0 {
		remaining = 0
	}

	metrics.RecordRateLimitDecision(policy, "allowed")
	return Result{
		Allowed:   true,
		Current:   current + 1,
		Remaining: remaining,
		Limit:     limit,
		Window:    window,
		ResetAt:   now.Add(window),
	}
}

func scoreString(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// policyLabel derives a low-cardinality metrics label from a rate limit
// key by keeping only its leading "scope:name" segments (e.g.
// "ratelimit:login:203.0.113.9" -> "ratelimit:login"), dropping the
// per-client suffix so the label set stays bounded by distinct policies
// rather than distinct callers.
func policyLabel(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return key
	}
	return parts[0] + ":" + parts[1]
}
