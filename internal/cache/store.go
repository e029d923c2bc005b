// Package cache provides a small keyed cache used to mirror hot auth state,
// with Redis and database-backed implementations.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// Store is a TTL'd string cache. Implementations must treat an expired key
// as absent.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key. A non-positive ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes the given keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}
