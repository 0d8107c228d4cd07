package policy

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRateLimiterDeniesAfterCapacity(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rl := NewRateLimiter(rdb, 60, time.Minute)

	deniedCount := 0
	for i := 0; i < 65; i++ {
		allowed, err := rl.Allow(context.Background(), "user-1", "default")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			deniedCount++
		}
	}

	if deniedCount == 0 {
		t.Fatalf("expected at least one denial across 65 requests with capacity 60")
	}
}
