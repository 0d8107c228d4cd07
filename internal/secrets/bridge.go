package secrets

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aegishq/controlplane/internal/obs"
)

const defaultTTL = 5 * time.Minute

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Bridge resolves secrets through an optional configured provider (KMS/vault)
// falling through to the environment, caching hits with a TTL shared across
// process instances via Redis, and counting every access.
type Bridge struct {
	configured Provider
	fallback   Provider
	rdb        *redis.Client
	ttl        time.Duration

	mu    sync.Mutex
	local map[string]cacheEntry
}

// NewBridge builds a Bridge. configured may be nil to use only the
// environment. rdb may be nil, in which case caching is process-local only.
func NewBridge(configured Provider, rdb *redis.Client) *Bridge {
	return &Bridge{
		configured: configured,
		fallback:   EnvProvider{},
		rdb:        rdb,
		ttl:        defaultTTL,
		local:      make(map[string]cacheEntry),
	}
}

// Get resolves key, returning def (if non-nil) when no provider has it.
// Missing secrets without a default fail with a Configuration error.
func (b *Bridge) Get(ctx context.Context, key string, def *string) (string, error) {
	if v, ok := b.cacheGet(ctx, key); ok {
		obs.SecretsAccessTotal.WithLabelValues(key, "true").Inc()
		return v, nil
	}

	v, ok, err := b.fetch(ctx, key)
	if err != nil {
		obs.SecretsAccessTotal.WithLabelValues(key, "false").Inc()
		return "", obs.Wrap(err, obs.Transient, "secrets.fetch_failed", "fetching secret")
	}
	if !ok {
		if def != nil {
			obs.SecretsAccessTotal.WithLabelValues(key, "false").Inc()
			return *def, nil
		}
		obs.SecretsAccessTotal.WithLabelValues(key, "false").Inc()
		return "", obs.New(obs.Configuration, "secrets.missing", "secret not configured: "+key)
	}

	b.cacheSet(ctx, key, v)
	obs.SecretsAccessTotal.WithLabelValues(key, "false").Inc()
	return v, nil
}

// GetAsync resolves key on a goroutine, delivering the result on the
// returned channel exactly once.
func (b *Bridge) GetAsync(ctx context.Context, key string, def *string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		v, err := b.Get(ctx, key, def)
		out <- Result{Value: v, Err: err}
		close(out)
	}()
	return out
}

// Result is the payload of an async Get.
type Result struct {
	Value string
	Err   error
}

func (b *Bridge) fetch(ctx context.Context, key string) (string, bool, error) {
	if b.configured != nil {
		if v, ok, err := b.configured.Fetch(ctx, key); err != nil {
			return "", false, err
		} else if ok {
			return v, true, nil
		}
	}
	return b.fallback.Fetch(ctx, key)
}

func (b *Bridge) cacheGet(ctx context.Context, key string) (string, bool) {
	b.mu.Lock()
	entry, ok := b.local[key]
	b.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.value, true
	}

	if b.rdb == nil {
		return "", false
	}
	v, err := b.rdb.Get(ctx, cacheRedisKey(key)).Result()
	if err != nil {
		return "", false
	}
	b.cacheSetLocal(key, v)
	return v, true
}

func (b *Bridge) cacheSet(ctx context.Context, key, value string) {
	b.cacheSetLocal(key, value)
	if b.rdb != nil {
		_ = b.rdb.Set(ctx, cacheRedisKey(key), value, b.ttl).Err()
	}
}

func (b *Bridge) cacheSetLocal(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.local[key] = cacheEntry{value: value, expiresAt: time.Now().Add(b.ttl)}
}

func cacheRedisKey(key string) string {
	return "aegis:secret:" + key
}
