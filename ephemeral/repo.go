// Package ephemeral holds short-lived, single-use records keyed by an opaque string.
// Expired entries behave exactly like missing ones.
package ephemeral

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyKey    = errors.New("key cannot be empty")
	ErrInvalidTTL  = errors.New("ttl must be positive")
	ErrUnavailable = errors.New("ephemeral store unavailable")
)

type Repo[T any] interface {
	// Put stores value under key until ttl elapses, replacing any existing entry.
	Put(ctx context.Context, key string, value T, ttl time.Duration) error
	// Get returns the value and true when present and not expired.
	Get(ctx context.Context, key string) (T, bool, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Take atomically reads and removes key. Of any number of concurrent callers
	// at most one observes the value.
	Take(ctx context.Context, key string) (T, bool, error)
}
