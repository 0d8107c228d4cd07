package selfheal

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/resilience"
	"github.com/aegishq/controlplane/internal/store"
)

type fakeStore struct {
	agents      map[uuid.UUID][]store.Agent
	telemetry   map[uuid.UUID][]store.TelemetryRecord
	suspended   []uuid.UUID
	quarantined []uuid.UUID
	dlqPushed   int
}

func (f *fakeStore) ListAgents(ctx context.Context, tenantID uuid.UUID, env string) ([]store.Agent, error) {
	return f.agents[tenantID], nil
}

func (f *fakeStore) ListTelemetry(ctx context.Context, agentID uuid.UUID, limit int) ([]store.TelemetryRecord, error) {
	return f.telemetry[agentID], nil
}

func (f *fakeStore) UpdateAgentStatus(ctx context.Context, tenantID uuid.UUID, env string, id uuid.UUID, status store.AgentStatus, expectedUpdatedAt time.Time) error {
	f.suspended = append(f.suspended, id)
	return nil
}

func (f *fakeStore) OpenQuarantine(ctx context.Context, q store.QuarantineEntry) error {
	f.quarantined = append(f.quarantined, uuid.MustParse(q.ResourceID))
	return nil
}

func (f *fakeStore) AppendDLQEntry(ctx context.Context, e store.DLQEntry) error {
	f.dlqPushed++
	return nil
}

type fakeTenants struct{ tenants []Tenant }

func (f *fakeTenants) Tenants(ctx context.Context) ([]Tenant, error) { return f.tenants, nil }

func TestScanSuspendsAgentBeyond2xSLO(t *testing.T) {
	tenantID := uuid.New()
	agentID := uuid.New()
	slo := time.Hour

	fs := &fakeStore{
		agents: map[uuid.UUID][]store.Agent{tenantID: {{ID: agentID, Status: store.AgentActive}}},
		telemetry: map[uuid.UUID][]store.TelemetryRecord{
			agentID: {{AgentID: agentID, TS: time.Now().Add(-3 * slo)}},
		},
	}
	ft := &fakeTenants{tenants: []Tenant{{ID: tenantID, Env: "production"}}}
	reg := resilience.NewRegistry(resilience.DefaultConfig())

	c := NewController(fs, ft, reg, nil, slo, slog.Default())
	if err := c.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(fs.suspended) != 1 || fs.suspended[0] != agentID {
		t.Fatalf("expected agent suspended, got suspended=%v quarantined=%v", fs.suspended, fs.quarantined)
	}
}

func TestScanQuarantinesAgentBeyond4xSLO(t *testing.T) {
	tenantID := uuid.New()
	agentID := uuid.New()
	slo := time.Hour

	fs := &fakeStore{
		agents: map[uuid.UUID][]store.Agent{tenantID: {{ID: agentID, Status: store.AgentActive}}},
		telemetry: map[uuid.UUID][]store.TelemetryRecord{
			agentID: {{AgentID: agentID, TS: time.Now().Add(-5 * slo)}},
		},
	}
	ft := &fakeTenants{tenants: []Tenant{{ID: tenantID, Env: "production"}}}
	reg := resilience.NewRegistry(resilience.DefaultConfig())

	c := NewController(fs, ft, reg, nil, slo, slog.Default())
	if err := c.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(fs.quarantined) != 1 || fs.quarantined[0] != agentID {
		t.Fatalf("expected agent quarantined, got %v", fs.quarantined)
	}
}

func TestScanSkipsFreshAgents(t *testing.T) {
	tenantID := uuid.New()
	agentID := uuid.New()
	slo := time.Hour

	fs := &fakeStore{
		agents: map[uuid.UUID][]store.Agent{tenantID: {{ID: agentID, Status: store.AgentActive}}},
		telemetry: map[uuid.UUID][]store.TelemetryRecord{
			agentID: {{AgentID: agentID, TS: time.Now()}},
		},
	}
	ft := &fakeTenants{tenants: []Tenant{{ID: tenantID, Env: "production"}}}
	reg := resilience.NewRegistry(resilience.DefaultConfig())

	c := NewController(fs, ft, reg, nil, slo, slog.Default())
	if err := c.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(fs.suspended) != 0 || len(fs.quarantined) != 0 || fs.dlqPushed != 0 {
		t.Fatalf("expected no remediation for fresh agent, got suspended=%v quarantined=%v dlq=%d",
			fs.suspended, fs.quarantined, fs.dlqPushed)
	}
}
