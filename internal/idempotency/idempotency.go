// Package idempotency implements the Idempotency Service (C5): a
// content-derived key store with TTL providing at-most-once effect for
// replayed events, using a Redis-first, DB-fallback, cache-warm-on-miss
// pattern.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL and BatchTTL bound how long an idempotency record is honored.
const (
	DefaultTTL = 24 * time.Hour
	BatchTTL   = 7 * 24 * time.Hour
)

// Record is the stored idempotency entry.
type Record struct {
	Key       string
	Result    json.RawMessage
	ExpiresAt time.Time
}

// Store persists idempotency records durably (backing C1's events table, or
// a dedicated idempotency_records table keyed uniquely on Key).
type Store interface {
	GetIdempotencyRecord(ctx context.Context, key string) (*Record, error)
	PutIdempotencyRecord(ctx context.Context, rec Record) error
}

var ErrNotFound = errors.New("idempotency: record not found")

// Service checks Redis first (fast path), falling back to the durable Store
// on a cache miss and warming the cache from the result.
type Service struct {
	rdb   *redis.Client
	store Store
}

// NewService builds a Service backed by rdb (hot cache) and store (durable).
func NewService(rdb *redis.Client, store Store) *Service {
	return &Service{rdb: rdb, store: store}
}

// DeriveKey computes the deterministic content-derived key used when a
// caller supplies no explicit idempotency key:
// sha256(source|workflowID|executionID|body).
func DeriveKey(source, workflowID, executionID string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(workflowID))
	h.Write([]byte{0})
	h.Write([]byte(executionID))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Check returns the stored result for key if present and unexpired, and a
// hit flag. A hit MUST cause the caller to bypass side effects.
func (s *Service) Check(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if raw, err := s.rdb.Get(ctx, redisKey(key)).Result(); err == nil {
		return json.RawMessage(raw), true, nil
	} else if !errors.Is(err, redis.Nil) {
		return nil, false, err
	}

	rec, err := s.store.GetIdempotencyRecord(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if rec == nil || time.Now().After(rec.ExpiresAt) {
		return nil, false, nil
	}

	s.warmCache(ctx, key, rec.Result, time.Until(rec.ExpiresAt))
	return rec.Result, true, nil
}

// Store persists result for key with the given ttl, and warms the hot cache.
func (s *Service) Store(ctx context.Context, key string, result json.RawMessage, ttl time.Duration) error {
	rec := Record{Key: key, Result: result, ExpiresAt: time.Now().Add(ttl)}
	if err := s.store.PutIdempotencyRecord(ctx, rec); err != nil {
		return err
	}
	s.warmCache(ctx, key, result, ttl)
	return nil
}

func (s *Service) warmCache(ctx context.Context, key string, result json.RawMessage, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	_ = s.rdb.Set(ctx, redisKey(key), string(result), ttl).Err()
}

func redisKey(key string) string {
	return "aegis:idempotency:" + key
}
