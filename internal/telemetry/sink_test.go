package telemetry

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/store"
)

type fakeAppender struct {
	records []store.TelemetryRecord
}

func (f *fakeAppender) AppendTelemetry(ctx context.Context, t store.TelemetryRecord) error {
	f.records = append(f.records, t)
	return nil
}

func TestStoreSinkWritesParseableAgentIDs(t *testing.T) {
	agentID := uuid.New()
	appender := &fakeAppender{}
	sink := NewStoreSink(appender, fakeLogger{})

	err := sink.WriteBatch(context.Background(), []Event{
		{Kind: "executed", Payload: map[string]any{
			"agent_id": agentID.String(), "latency_ms": 12.5, "errors": 0, "success_count": 1,
		}},
		{Kind: "failed", Payload: map[string]any{"agent_id": "not-a-uuid"}},
	})
	if err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if len(appender.records) != 1 {
		t.Fatalf("expected 1 record written (unparseable agent id dropped), got %d", len(appender.records))
	}
	if appender.records[0].AgentID != agentID {
		t.Fatalf("expected agent id %v, got %v", agentID, appender.records[0].AgentID)
	}
	if appender.records[0].LatencyMS != 12.5 {
		t.Fatalf("expected latency 12.5, got %v", appender.records[0].LatencyMS)
	}
}
