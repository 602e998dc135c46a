package ephemeral

import (
	"context"
	"sync"
	"time"
)

type timedEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemoryRepo is a thread-safe in-memory implementation of Repo. Expiry is checked
// lazily on lookup; PurgeExpired can be run periodically to reclaim memory.
type InMemoryRepo[T any] struct {
	mu      sync.RWMutex
	entries map[string]timedEntry[T]
	nowTime func() time.Time
}

type InMemoryOption[T any] func(*InMemoryRepo[T])

// WithNowTime replaces the clock used for expiry decisions.
func WithNowTime[T any](nowTime func() time.Time) InMemoryOption[T] {
	return func(r *InMemoryRepo[T]) {
		r.nowTime = nowTime
	}
}

func NewInMemoryRepo[T any](opts ...InMemoryOption[T]) *InMemoryRepo[T] {
	r := &InMemoryRepo[T]{
		entries: make(map[string]timedEntry[T]),
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Repo[string] = (*InMemoryRepo[string])(nil)

func (r *InMemoryRepo[T]) Put(_ context.Context, key string, value T, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[key] = timedEntry[T]{value: value, expiresAt: r.nowTime().Add(ttl)}
	return nil
}

func (r *InMemoryRepo[T]) Get(_ context.Context, key string) (T, bool, error) {
	var zero T
	if key == "" {
		return zero, false, ErrEmptyKey
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[key]
	if !ok || !r.live(entry) {
		return zero, false, nil
	}
	return entry.value, true, nil
}

func (r *InMemoryRepo[T]) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key)
	return nil
}

func (r *InMemoryRepo[T]) Take(_ context.Context, key string) (T, bool, error) {
	var zero T
	if key == "" {
		return zero, false, ErrEmptyKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return zero, false, nil
	}
	delete(r.entries, key)
	if !r.live(entry) {
		return zero, false, nil
	}
	return entry.value, true, nil
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (r *InMemoryRepo[T]) PurgeExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, entry := range r.entries {
		if !r.live(entry) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired ones included.
func (r *InMemoryRepo[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *InMemoryRepo[T]) live(entry timedEntry[T]) bool {
	return r.nowTime().Before(entry.expiresAt)
}
