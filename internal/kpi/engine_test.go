package kpi

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/store"
)

type fakeTelemetryStore struct {
	byAgent   map[uuid.UUID][]store.TelemetryRecord
	workflows []store.Workflow
}

func (f *fakeTelemetryStore) ListTelemetry(ctx context.Context, agentID uuid.UUID, limit int) ([]store.TelemetryRecord, error) {
	return f.byAgent[agentID], nil
}

func (f *fakeTelemetryStore) ListWorkflows(ctx context.Context, tenantID uuid.UUID, env string) ([]store.Workflow, error) {
	return f.workflows, nil
}

func TestComputeClampsTrustScoreToPercentRange(t *testing.T) {
	agentID := uuid.New()
	fs := &fakeTelemetryStore{byAgent: map[uuid.UUID][]store.TelemetryRecord{
		agentID: {
			{AgentID: agentID, UptimePct: 99.95, SuccessCount: 100, Errors: 1},
		},
	}}
	e := NewEngine(fs, DefaultWeights(), 10000, 24*time.Hour)

	bundle, err := e.Compute(context.Background(), uuid.New(), "production", []store.Agent{{ID: agentID, Status: store.AgentActive}})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if bundle.TrustScore < 0 || bundle.TrustScore > 100 {
		t.Fatalf("trust score out of range: %v", bundle.TrustScore)
	}
	if bundle.ComplianceSLAPct != 99.95 {
		t.Fatalf("expected compliance sla 99.95, got %v", bundle.ComplianceSLAPct)
	}
}

func TestComputeCountsQuarantinedAgentsOutOfActive(t *testing.T) {
	active := uuid.New()
	quarantined := uuid.New()
	fs := &fakeTelemetryStore{byAgent: map[uuid.UUID][]store.TelemetryRecord{}}
	e := NewEngine(fs, DefaultWeights(), 10000, 24*time.Hour)

	bundle, err := e.Compute(context.Background(), uuid.New(), "production", []store.Agent{
		{ID: active, Status: store.AgentActive},
		{ID: quarantined, Status: store.AgentQuarantined},
	})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if bundle.ActiveAgents != 1 {
		t.Fatalf("expected 1 active agent, got %d", bundle.ActiveAgents)
	}
	if bundle.SelfResolutionRatio != 0.5 {
		t.Fatalf("expected self resolution ratio 0.5, got %v", bundle.SelfResolutionRatio)
	}
}

func TestComputeSyncFreshnessFromWorkflowLastRun(t *testing.T) {
	tenantID := uuid.New()
	fresh := store.Workflow{ID: uuid.New(), TenantID: tenantID, Status: "active", LastRunAt: time.Now().Add(-time.Hour)}
	stale := store.Workflow{ID: uuid.New(), TenantID: tenantID, Status: "active", LastRunAt: time.Now().Add(-48 * time.Hour)}
	fs := &fakeTelemetryStore{
		byAgent:   map[uuid.UUID][]store.TelemetryRecord{},
		workflows: []store.Workflow{fresh, stale},
	}
	e := NewEngine(fs, DefaultWeights(), 10000, 24*time.Hour)

	bundle, err := e.Compute(context.Background(), tenantID, "production", nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if bundle.SyncFreshnessPct != 50 {
		t.Fatalf("expected sync freshness 50%%, got %v", bundle.SyncFreshnessPct)
	}
	if bundle.ActiveWorkflows != 2 {
		t.Fatalf("expected 2 active workflows, got %d", bundle.ActiveWorkflows)
	}
}

func TestRateTrustScoreThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  Level
	}{
		{90, LevelGreen},
		{70, LevelYellow},
		{40, LevelRed},
	}
	for _, c := range cases {
		if got := RateTrustScore(c.score); got != c.want {
			t.Errorf("RateTrustScore(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}
