package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]Event
	failN   int
}

func (f *fakeSink) WriteBatch(ctx context.Context, events []Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errBoom
	}
	cp := make([]Event, len(events))
	copy(cp, events)
	f.batches = append(f.batches, cp)
	return nil
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

var errBoom = &testError{"boom"}

type fakeLogger struct{}

func (fakeLogger) Warn(msg string, args ...any)  {}
func (fakeLogger) Error(msg string, args ...any) {}

func TestBufferFlushesOnClose(t *testing.T) {
	sink := &fakeSink{}
	b := NewBuffer(sink, fakeLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)

	b.Enqueue(Event{Kind: "trace"})
	b.Enqueue(Event{Kind: "metric"})
	cancel()
	b.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	total := 0
	for _, batch := range sink.batches {
		total += len(batch)
	}
	if total != 2 {
		t.Fatalf("expected 2 events flushed, got %d", total)
	}
}

func TestBufferDropsEventsWhenFull(t *testing.T) {
	sink := &fakeSink{}
	b := &Buffer{sink: sink, logger: fakeLogger{}, events: make(chan Event, 1)}

	b.Enqueue(Event{Kind: "a"})
	b.Enqueue(Event{Kind: "b"}) // buffer full, should drop silently (logged)

	if len(b.events) != 1 {
		t.Fatalf("expected buffer to hold exactly 1 event, got %d", len(b.events))
	}
	_ = time.Second
}
