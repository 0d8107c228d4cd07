// Package telemetry implements the Telemetry & Rollup Pipeline (C8): a
// buffered batch writer for traces/metric snapshots and the hourly/daily
// rollup jobs. The buffer uses a buffered channel, ticker-driven flush,
// crash-safe drain-on-shutdown, and batch grouping.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/aegishq/controlplane/internal/obs"
)

const (
	bufferSize       = 100
	flushInterval    = 10 * time.Second
	flushBatch       = bufferSize
	maxFlushFailures = 5
)

// Event is one trace/metric record accepted into the buffer.
type Event struct {
	Kind      string
	Payload   map[string]any
	Retries   int
}

// Sink persists a batch of events. A returned error causes the batch to be
// re-enqueued at the head with an incremented retry counter.
type Sink interface {
	WriteBatch(ctx context.Context, events []Event) error
}

// Buffer is the non-blocking enqueue / periodic-flush batch writer: buffer
// size 100, flush on buffer-full or every 10s; on flush failure the batch
// is re-enqueued at the head with a retry counter,
// dropped as an error event after maxFlushFailures consecutive failures to
// prevent OOM.
type Buffer struct {
	sink   Sink
	logger interface {
		Warn(msg string, args ...any)
		Error(msg string, args ...any)
	}

	events chan Event
	wg     sync.WaitGroup
}

// NewBuffer builds a Buffer writing through sink.
func NewBuffer(sink Sink, logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}) *Buffer {
	return &Buffer{sink: sink, logger: logger, events: make(chan Event, bufferSize)}
}

// Start begins the flush loop, stopping when ctx is cancelled.
func (b *Buffer) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Close waits for the flush loop to drain and exit.
func (b *Buffer) Close() {
	close(b.events)
	b.wg.Wait()
}

// Enqueue appends e without blocking; if the buffer is full the event is
// dropped and a warning logged, matching the audit writer's overflow policy.
func (b *Buffer) Enqueue(e Event) {
	select {
	case b.events <- e:
	default:
		b.logger.Warn("telemetry buffer full, dropping event", "kind", e.Kind)
	}
}

func (b *Buffer) run(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var batch []Event

	flush := func() {
		if len(batch) == 0 {
			return
		}
		batch = b.flushWithRetry(ctx, batch)
	}

	for {
		select {
		case e, ok := <-b.events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			// Drain whatever remains before exiting so shutdown never
			// silently drops buffered records.
			for {
				select {
				case e, ok := <-b.events:
					if !ok {
						flush()
						return
					}
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flushWithRetry writes batch and returns what the flush loop keeps as the
// head of its next batch: nil on success or once the batch is dropped, the
// failed batch itself (retry counters incremented) otherwise.
func (b *Buffer) flushWithRetry(ctx context.Context, batch []Event) []Event {
	if err := b.sink.WriteBatch(ctx, batch); err != nil {
		for i := range batch {
			batch[i].Retries++
		}
		if batch[0].Retries >= maxFlushFailures {
			b.logger.Error("dropping telemetry batch after repeated flush failures",
				"size", len(batch), "error", err)
			obs.EventsReceivedTotal.WithLabelValues("telemetry", "dropped").Inc()
			return nil
		}
		// Keep the failed batch at the head: events that arrive before the
		// next flush are appended behind it.
		return batch
	}
	return nil
}
