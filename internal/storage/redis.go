package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores items in a Redis (or Valkey) server. Items are written
// without a TTL: token expiry is decided by the cache on load, not by the
// server.
type Redis struct {
	rdb *redis.Client
}

// NewRedis creates a storage backed by the given client. The storage takes
// ownership of the client and closes it on Close.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) GetItem(ctx context.Context, key string) (string, bool, error) {
	value, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		// Key not found is not an error in our semantics
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get stored value: %w", err)
	}

	return value, true, nil
}

func (r *Redis) SetItem(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set stored value: %w", err)
	}
	return nil
}

func (r *Redis) RemoveItem(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to remove stored value: %w", err)
	}
	return nil
}

// Close releases the underlying client connections.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
