package ephemeral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepo stores JSON encoded values under a key prefix and relies on native key
// expiry. Take uses GETDEL so single-use holds across relay instances.
type RedisRepo[T any] struct {
	client redis.Cmdable
	prefix string
}

func NewRedisRepo[T any](client redis.Cmdable, prefix string) *RedisRepo[T] {
	return &RedisRepo[T]{client: client, prefix: prefix}
}

var _ Repo[string] = (*RedisRepo[string])(nil)

func (r *RedisRepo[T]) key(key string) string {
	return r.prefix + key
}

func (r *RedisRepo[T]) Put(ctx context.Context, key string, value T, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("[RedisRepo.Put] marshal: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("[RedisRepo.Put] %w: %w", ErrUnavailable, err)
	}
	return nil
}

func (r *RedisRepo[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if key == "" {
		return zero, false, ErrEmptyKey
	}
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	return r.decode("Get", data, err)
}

func (r *RedisRepo[T]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("[RedisRepo.Delete] %w: %w", ErrUnavailable, err)
	}
	return nil
}

func (r *RedisRepo[T]) Take(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if key == "" {
		return zero, false, ErrEmptyKey
	}
	data, err := r.client.GetDel(ctx, r.key(key)).Bytes()
	return r.decode("Take", data, err)
}

func (r *RedisRepo[T]) decode(op string, data []byte, err error) (T, bool, error) {
	var value T
	if errors.Is(err, redis.Nil) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("[RedisRepo.%s] %w: %w", op, ErrUnavailable, err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, false, fmt.Errorf("[RedisRepo.%s] unmarshal: %w", op, err)
	}
	return value, true, nil
}
