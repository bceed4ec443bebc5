package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fetch returns the cached value under key when present and unexpired,
// otherwise runs compute, stores the result with the given TTL and returns
// it. A nil client, a redis error or an undecodable payload all degrade to
// calling compute directly; cache trouble is never surfaced to the caller.
// Concurrent misses on the same key may each run compute.
func Fetch[T any](ctx context.Context, rdb *redis.Client, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if rdb == nil {
		return compute(ctx)
	}

	if data, err := rdb.Get(ctx, key).Bytes(); err == nil {
		var out T
		if uErr := json.Unmarshal(data, &out); uErr == nil {
			return out, nil
		}
	}

	out, err := compute(ctx)
	if err != nil {
		return out, err
	}
	if payload, err := json.Marshal(out); err == nil {
		_ = rdb.Set(ctx, key, payload, ttl).Err()
	}
	return out, nil
}

// Invalidate best-effort drops a cache entry. Safe with a nil client.
func Invalidate(ctx context.Context, rdb *redis.Client, keys ...string) {
	if rdb == nil || len(keys) == 0 {
		return
	}
	_ = rdb.Del(ctx, keys...).Err()
}
