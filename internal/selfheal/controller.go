// Package selfheal implements the Self-Healing Controller (C11): a
// periodic scan that identifies active agents whose latest telemetry is
// older than the staleness SLO, then works an escalating remediation
// ladder. Workflows and circuit breakers are not scanned. It runs a
// poll -> evaluate -> act -> publish -> metric loop, generalized from
// tiered alert escalation to a fixed remediation ladder
// (DLQ ticket -> suspend -> quarantine); ActionResubmit is declared but no
// scan path takes it.
package selfheal

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/notify"
	"github.com/aegishq/controlplane/internal/obs"
	"github.com/aegishq/controlplane/internal/resilience"
	"github.com/aegishq/controlplane/internal/store"
)

// Action is one remediation the controller can take, in ascending severity.
type Action string

const (
	ActionResubmit        Action = "resubmit"
	ActionDLQTicket       Action = "dlq_ticket"
	ActionSuspend         Action = "suspend"
	ActionQuarantine      Action = "quarantine"
)

// Tenant identifies one (tenant_id, env) pair the scan iterates over.
type Tenant struct {
	ID  uuid.UUID
	Env string
}

type tenantLister interface {
	Tenants(ctx context.Context) ([]Tenant, error)
}

type controllerStore interface {
	ListAgents(ctx context.Context, tenantID uuid.UUID, env string) ([]store.Agent, error)
	ListTelemetry(ctx context.Context, agentID uuid.UUID, limit int) ([]store.TelemetryRecord, error)
	UpdateAgentStatus(ctx context.Context, tenantID uuid.UUID, env string, id uuid.UUID, status store.AgentStatus, expectedUpdatedAt time.Time) error
	OpenQuarantine(ctx context.Context, q store.QuarantineEntry) error
	AppendDLQEntry(ctx context.Context, e store.DLQEntry) error
}

// Controller runs the hourly scan. Scan itself checks no flag: the worker
// skips it unless ENABLE_SELF_HEALING is true, and the per-tenant
// config_flags.self_healing_enabled column is not consulted.
type Controller struct {
	store        controllerStore
	tenants      tenantLister
	breakers     *resilience.Registry
	notifier     *notify.Notifier
	stalenessSLO time.Duration
	logger       *slog.Logger
}

// NewController builds a Controller. stalenessSLO is
// SYNC_FRESHNESS_SLO_HOURS converted to a duration.
func NewController(st controllerStore, tenants tenantLister, breakers *resilience.Registry, notifier *notify.Notifier, stalenessSLO time.Duration, logger *slog.Logger) *Controller {
	return &Controller{store: st, tenants: tenants, breakers: breakers, notifier: notifier, stalenessSLO: stalenessSLO, logger: logger}
}

// Breakers exposes the breaker registry the controller was built with.
func (c *Controller) Breakers() *resilience.Registry {
	return c.breakers
}

// Scan runs one remediation pass across every tenant.
func (c *Controller) Scan(ctx context.Context) error {
	tenants, err := c.tenants.Tenants(ctx)
	if err != nil {
		return err
	}
	for _, t := range tenants {
		if err := c.scanTenant(ctx, t); err != nil {
			c.logger.Error("self-heal scan failed for tenant", "tenant_id", t.ID, "error", err)
		}
	}
	return nil
}

func (c *Controller) scanTenant(ctx context.Context, t Tenant) error {
	agents, err := c.store.ListAgents(ctx, t.ID, t.Env)
	if err != nil {
		return err
	}

	for _, a := range agents {
		if a.Status != store.AgentActive {
			continue
		}
		recs, err := c.store.ListTelemetry(ctx, a.ID, 1)
		if err != nil {
			c.logger.Error("self-heal: list telemetry failed", "agent_id", a.ID, "error", err)
			continue
		}
		if len(recs) == 0 {
			continue
		}
		age := time.Since(recs[0].TS)
		if age <= c.stalenessSLO {
			continue
		}
		c.remediate(ctx, t, a, age)
	}
	return nil
}

// remediate walks the ladder starting from the mildest action appropriate
// to how far past the SLO the agent is: beyond 1x SLO -> DLQ ticket (no
// resubmission is attempted); beyond 2x SLO -> suspend; beyond 4x SLO ->
// quarantine.
func (c *Controller) remediate(ctx context.Context, t Tenant, a store.Agent, age time.Duration) {
	var action Action
	switch {
	case age > 4*c.stalenessSLO:
		action = ActionQuarantine
	case age > 2*c.stalenessSLO:
		action = ActionSuspend
	default:
		action = ActionDLQTicket
	}

	switch action {
	case ActionDLQTicket:
		_ = c.store.AppendDLQEntry(ctx, store.DLQEntry{
			ID: uuid.New(), TenantID: t.ID, Env: t.Env, Source: "selfheal",
			CorrelationID: "stale:" + a.ID.String(), Error: "agent telemetry stale",
			Payload: json.RawMessage(`{}`),
		})
	case ActionSuspend:
		if err := c.store.UpdateAgentStatus(ctx, t.ID, t.Env, a.ID, store.AgentSuspended, a.UpdatedAt); err != nil {
			c.logger.Error("self-heal: suspend failed", "agent_id", a.ID, "error", err)
			return
		}
	case ActionQuarantine:
		if err := c.store.OpenQuarantine(ctx, store.QuarantineEntry{
			ID: uuid.New(), TenantID: t.ID, Env: t.Env, ResourceID: a.ID.String(),
			Reason: "telemetry stale beyond 4x freshness SLO",
		}); err != nil {
			c.logger.Error("self-heal: quarantine failed", "agent_id", a.ID, "error", err)
			return
		}
	}

	obs.SelfHealActionsTotal.WithLabelValues(string(action)).Inc()
	c.logger.Info("self-healing action taken", "agent_id", a.ID, "action", action, "stale_for", age)

	if c.notifier != nil {
		_, _ = c.notifier.PostAlert(ctx, notify.Alert{
			ID: a.ID.String(), Title: "Agent telemetry stale", Severity: severityFor(action),
			AgentID: a.ID.String(), TenantID: t.ID.String(), Action: string(action),
		})
	}
}

func severityFor(action Action) notify.Severity {
	switch action {
	case ActionQuarantine:
		return notify.SeverityCritical
	case ActionSuspend:
		return notify.SeverityMajor
	default:
		return notify.SeverityWarning
	}
}
