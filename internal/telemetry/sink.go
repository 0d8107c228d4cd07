package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/store"
)

// telemetryAppender is the narrow store surface StoreSink writes through.
type telemetryAppender interface {
	AppendTelemetry(ctx context.Context, t store.TelemetryRecord) error
}

// StoreSink adapts a Store to Sink, turning each buffered Event into a
// TelemetryRecord insert. An event whose payload carries no parseable
// agent_id is dropped rather than failing the whole batch, since not every
// adapter payload is guaranteed to reference a UUID-shaped agent.
type StoreSink struct {
	store  telemetryAppender
	logger interface {
		Warn(msg string, args ...any)
	}
}

// NewStoreSink builds a StoreSink.
func NewStoreSink(st telemetryAppender, logger interface {
	Warn(msg string, args ...any)
}) *StoreSink {
	return &StoreSink{store: st, logger: logger}
}

// WriteBatch persists each event in order, returning on the first error so
// Buffer re-enqueues the whole batch for retry.
func (s *StoreSink) WriteBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		rec, ok := recordFromPayload(e.Payload)
		if !ok {
			s.logger.Warn("dropping telemetry event with no agent id", "kind", e.Kind)
			continue
		}
		if err := s.store.AppendTelemetry(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func recordFromPayload(payload map[string]any) (store.TelemetryRecord, bool) {
	agentIDStr, _ := payload["agent_id"].(string)
	agentID, err := uuid.Parse(agentIDStr)
	if err != nil {
		return store.TelemetryRecord{}, false
	}

	rec := store.TelemetryRecord{AgentID: agentID, TS: time.Now().UTC()}
	if v, ok := payload["latency_ms"].(float64); ok {
		rec.LatencyMS = v
	}
	if v, ok := payload["errors"].(int); ok {
		rec.Errors = v
	}
	if v, ok := payload["policy_violations"].(int); ok {
		rec.PolicyViolations = v
	}
	if v, ok := payload["success_count"].(int); ok {
		rec.SuccessCount = v
	}
	if v, ok := payload["uptime_pct"].(float64); ok {
		rec.UptimePct = v
	}
	return rec, true
}
