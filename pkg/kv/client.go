// Package kv wraps the Redis client shared by the rate limiter, token
// blacklist, and streaming pub/sub fanout (C2). Every caller accesses
// Redis only through this package so that fail-open/fail-closed error
// handling stays centralized in the callers that need it, not duplicated
// per adapter.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps *redis.Client. It is a thin struct embedding the client
// rather than an interface because every caller in this module needs the full surface
// (sorted sets, strings with TTL, pub/sub) and mock-by-interface testing
// is done against miniredis instead (see pkg/ratelimit, pkg/blacklist
// tests).
type Client struct {
	*redis.Client
}

// New dials Redis and verifies connectivity with a PING.
func New(ctx context.Context, cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Client{Client: rdb}, nil
}

// NewFromRedisClient wraps an existing *redis.Client (used in tests
// against a miniredis instance).
func NewFromRedisClient(rdb *redis.Client) *Client {
	return &Client{Client: rdb}
}
