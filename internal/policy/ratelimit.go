package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a fixed-window budget per (user_id, policy), using
// Redis INCR plus an EXPIRE set only when the window's key is created.
//
// The counters live in Redis under keys that do not name the process, so
// every API replica pointed at the same Redis shares one budget per
// (user_id, policy); replicas on different Redis instances do not. There is
// no token bucket or other coordination beyond that shared counter.
type RateLimiter struct {
	rdb      *redis.Client
	capacity int
	window   time.Duration
}

// NewRateLimiter builds a RateLimiter with capacity requests per window.
func NewRateLimiter(rdb *redis.Client, capacity int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, capacity: capacity, window: window}
}

// Allow increments the counter for (userID, policyName) and reports whether
// the request is within budget.
func (r *RateLimiter) Allow(ctx context.Context, userID, policyName string) (bool, error) {
	key := fmt.Sprintf("aegis:ratelimit:%s:%s", policyName, userID)

	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return incr.Val() <= int64(r.capacity), nil
}
