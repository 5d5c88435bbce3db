package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vision-platform/ai-gateway/internal/types"
)

const redisKeyPrefix = "gw:cache:"

// Redis is the shared ResultCache backend. Values are JSON; TTL enforcement
// is delegated to Redis. Any Redis failure degrades to a miss.
type Redis struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewRedis(rdb *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{rdb: rdb, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) (*types.Result, bool) {
	if r.rdb == nil {
		return nil, false
	}

	data, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("cache read failed", "error", err)
		}
		return nil, false
	}

	var result types.Result
	if err := json.Unmarshal(data, &result); err != nil {
		r.logger.Warn("cache entry corrupt, dropping", "key", key, "error", err)
		r.rdb.Del(ctx, redisKeyPrefix+key)
		return nil, false
	}
	return &result, true
}

func (r *Redis) Put(ctx context.Context, key string, value *types.Result, ttl time.Duration) {
	if r.rdb == nil || value == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("cache entry marshal failed", "error", err)
		return
	}
	if err := r.rdb.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		r.logger.Warn("cache write failed", "error", err)
	}
}
