package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// StoreLimiter adapts a ulule/limiter fixed-window store to Limiter.
type StoreLimiter struct {
	Store limiter.Store
}

// NewMemoryLimiter returns a process-local limiter for single-replica deployments.
func NewMemoryLimiter(prefix string) StoreLimiter {
	return StoreLimiter{Store: memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: time.Minute,
	})}
}

// NewRedisStoreLimiter returns a fixed-window limiter kept in Redis.
func NewRedisStoreLimiter(client redis.UniversalClient, prefix string) (StoreLimiter, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return StoreLimiter{}, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	return StoreLimiter{Store: store}, nil
}

// Allow implements Limiter.
func (l StoreLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if l.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	inst := limiter.New(l.Store, limiter.Rate{Period: window, Limit: int64(max)})
	res, err := inst.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), fmt.Errorf("ratelimit: %w", err)
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
