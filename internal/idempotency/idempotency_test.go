package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]Record)}
}

func (f *fakeStore) GetIdempotencyRecord(_ context.Context, key string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (f *fakeStore) PutIdempotencyRecord(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.Key] = rec
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := newFakeStore()
	return NewService(rdb, store), store
}

func TestCheckMissThenHit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, hit, err := svc.Check(ctx, "key-1"); err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}

	result := json.RawMessage(`{"status":"ok"}`)
	if err := svc.Store(ctx, "key-1", result, DefaultTTL); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, hit, err := svc.Check(ctx, "key-1")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if string(got) != string(result) {
		t.Fatalf("got %s, want %s", got, result)
	}
}

func TestCheckFallsBackToStoreOnCacheMiss(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	result := json.RawMessage(`{"status":"ok"}`)
	_ = store.PutIdempotencyRecord(ctx, Record{
		Key: "key-2", Result: result, ExpiresAt: time.Now().Add(time.Hour),
	})

	got, hit, err := svc.Check(ctx, "key-2")
	if err != nil || !hit {
		t.Fatalf("expected hit via store fallback, got hit=%v err=%v", hit, err)
	}
	if string(got) != string(result) {
		t.Fatalf("got %s, want %s", got, result)
	}
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	body := []byte(`{"a":1}`)
	k1 := DeriveKey("zapier", "wf-1", "exec-1", body)
	k2 := DeriveKey("zapier", "wf-1", "exec-1", body)
	if k1 != k2 {
		t.Fatalf("expected deterministic key, got %s != %s", k1, k2)
	}

	k3 := DeriveKey("zapier", "wf-1", "exec-2", body)
	if k1 == k3 {
		t.Fatalf("expected different execution id to change the key")
	}
}
