package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegishq/controlplane/internal/idempotency"
)

// Store wraps a connection pool with every Context Store operation. Agent,
// workflow, event, DLQ append, quarantine, baseline, snapshot, policy-rule
// and config-flag queries compose (tenant_id, env). Telemetry (keyed by
// agent id), idempotency records (keyed by key), embeddings, DLQ pruning
// and tenant enumeration are not scoped by tenant or env.
type Store struct {
	pool *pgxpool.Pool
}

// New builds a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateAgent inserts a new agent record.
func (s *Store) CreateAgent(ctx context.Context, a Agent) (Agent, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO agents (id, tenant_id, env, type, vendor, model, status, compliance_tier, trust_level, owners, policies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING id, tenant_id, env, type, vendor, model, status, compliance_tier, trust_level, owners, policies, created_at, updated_at`,
		a.ID, a.TenantID, a.Env, a.Type, a.Vendor, a.Model, a.Status, a.ComplianceTier, a.TrustLevel, a.Owners, a.Policies)
	return scanAgent(row)
}

// ListAgents returns the agents for (tenantID, env), tenant-scoped per §4.1.
func (s *Store) ListAgents(ctx context.Context, tenantID uuid.UUID, env string) ([]Agent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, env, type, vendor, model, status, compliance_tier, trust_level, owners, policies, created_at, updated_at
		FROM agents WHERE tenant_id = $1 AND env = $2 ORDER BY created_at DESC`,
		tenantID, env)
	if err != nil {
		return nil, classify(err, "list agents")
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, classify(rows.Err(), "list agents")
}

// GetAgent fetches a single tenant-scoped agent by id.
func (s *Store) GetAgent(ctx context.Context, tenantID uuid.UUID, env string, id uuid.UUID) (Agent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, env, type, vendor, model, status, compliance_tier, trust_level, owners, policies, created_at, updated_at
		FROM agents WHERE tenant_id = $1 AND env = $2 AND id = $3`,
		tenantID, env, id)
	return scanAgent(row)
}

// UpdateAgentStatus performs an optimistic-concurrency update on updated_at,
// returning Conflict if the row changed underneath the caller.
func (s *Store) UpdateAgentStatus(ctx context.Context, tenantID uuid.UUID, env string, id uuid.UUID, status AgentStatus, expectedUpdatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents SET status = $1, updated_at = now()
		WHERE tenant_id = $2 AND env = $3 AND id = $4 AND updated_at = $5`,
		status, tenantID, env, id, expectedUpdatedAt)
	if err != nil {
		return classify(err, "update agent status")
	}
	if tag.RowsAffected() == 0 {
		return classify(pgx.ErrNoRows, "update agent status: no match or stale updated_at")
	}
	return nil
}

// CreateWorkflow registers a new tracked execution target for an adapter.
func (s *Store) CreateWorkflow(ctx context.Context, w Workflow) (Workflow, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO workflows (id, tenant_id, env, source, trigger, status, last_run_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, tenant_id, env, source, trigger, status, last_run_at, updated_at`,
		w.ID, w.TenantID, w.Env, w.Source, w.Trigger, w.Status)
	return scanWorkflow(row)
}

// ListWorkflows returns the tracked workflows for (tenantID, env), used by
// the KPI engine's ActiveWorkflows count.
func (s *Store) ListWorkflows(ctx context.Context, tenantID uuid.UUID, env string) ([]Workflow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, env, source, trigger, status, last_run_at, updated_at
		FROM workflows WHERE tenant_id = $1 AND env = $2 ORDER BY last_run_at DESC`,
		tenantID, env)
	if err != nil {
		return nil, classify(err, "list workflows")
	}
	defer rows.Close()

	var out []Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, classify(rows.Err(), "list workflows")
}

// RecordWorkflowRun bumps a workflow's last_run_at and status after an
// adapter execution.
func (s *Store) RecordWorkflowRun(ctx context.Context, tenantID uuid.UUID, env string, id uuid.UUID, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE workflows SET status = $1, last_run_at = now(), updated_at = now()
		WHERE tenant_id = $2 AND env = $3 AND id = $4`,
		status, tenantID, env, id)
	return classify(err, "record workflow run")
}

func scanWorkflow(row rowScanner) (Workflow, error) {
	var w Workflow
	err := row.Scan(&w.ID, &w.TenantID, &w.Env, &w.Source, &w.Trigger, &w.Status, &w.LastRunAt, &w.UpdatedAt)
	if err != nil {
		return Workflow{}, classify(err, "scan workflow")
	}
	return w, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.TenantID, &a.Env, &a.Type, &a.Vendor, &a.Model, &a.Status,
		&a.ComplianceTier, &a.TrustLevel, &a.Owners, &a.Policies, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Agent{}, classify(err, "scan agent")
	}
	return a, nil
}

// AppendEvent inserts a canonical event. Events are append-only; the unique
// index on (tenant_id, env, idempotency_key) and on event_id enforce
// idempotent writes with respect to both.
func (s *Store) AppendEvent(ctx context.Context, e Event) error {
	source, err := json.Marshal(e.Source)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	security, err := json.Marshal(e.Security)
	if err != nil {
		return err
	}
	telemetry, err := json.Marshal(e.Telemetry)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (event_id, tenant_id, env, workflow_id, kind, correlation_id, idempotency_key,
			source_adapter, timestamp, payload, source, metadata, security, telemetry, version, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.EventID, e.Metadata.TenantID, e.Env, e.WorkflowID, e.EventType, e.CorrelationID, e.IdempotencyKey,
		e.Source.Adapter, e.Timestamp, e.Data, source, metadata, security, telemetry, e.Version, e.Error)
	return classify(err, "append event")
}

// GetIdempotencyRecord implements idempotency.Store, reading the stored
// result for a previously-processed event by its idempotency key.
func (s *Store) GetIdempotencyRecord(ctx context.Context, key string) (*idempotency.Record, error) {
	var rec idempotency.Record
	var expiresAt time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT key, result, expires_at FROM idempotency_records WHERE key = $1`, key,
	).Scan(&rec.Key, &rec.Result, &expiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, idempotency.ErrNotFound
		}
		return nil, classify(err, "get idempotency record")
	}
	rec.ExpiresAt = expiresAt
	return &rec, nil
}

// PutIdempotencyRecord implements idempotency.Store.
func (s *Store) PutIdempotencyRecord(ctx context.Context, rec idempotency.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_records (key, result, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET result = EXCLUDED.result, expires_at = EXCLUDED.expires_at`,
		rec.Key, rec.Result, rec.ExpiresAt)
	return classify(err, "put idempotency record")
}

// AppendDLQEntry persists a terminally failed request for later inspection.
func (s *Store) AppendDLQEntry(ctx context.Context, e DLQEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dlq_entries (id, tenant_id, env, source, payload, error, correlation_id, attempts, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (correlation_id) DO UPDATE SET
			attempts = dlq_entries.attempts + 1, last_seen = $9, error = EXCLUDED.error`,
		e.ID, e.TenantID, e.Env, e.Source, e.Payload, e.Error, e.CorrelationID, e.Attempts, time.Now())
	return classify(err, "append dlq entry")
}

// PruneDLQEntries deletes DLQ entries older than olderThan, enforcing the
// 30-day retention policy.
func (s *Store) PruneDLQEntries(ctx context.Context, olderThan time.Duration) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dlq_entries WHERE last_seen < $1`, time.Now().Add(-olderThan))
	return classify(err, "prune dlq entries")
}

// OpenQuarantine records a quarantine entry for resourceID.
func (s *Store) OpenQuarantine(ctx context.Context, q QuarantineEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quarantine_entries (id, tenant_id, env, resource_id, reason, opened_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		q.ID, q.TenantID, q.Env, q.ResourceID, q.Reason)
	return classify(err, "open quarantine")
}

// ReleaseQuarantine closes an open quarantine entry for resourceID. Release
// is always explicit (there is no automatic reversal); the method records
// releasedBy and performs no role check of its own.
func (s *Store) ReleaseQuarantine(ctx context.Context, tenantID uuid.UUID, env, resourceID, releasedBy string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE quarantine_entries SET released_at = now(), released_by = $1
		WHERE tenant_id = $2 AND env = $3 AND resource_id = $4 AND released_at IS NULL`,
		releasedBy, tenantID, env, resourceID)
	if err != nil {
		return classify(err, "release quarantine")
	}
	if tag.RowsAffected() == 0 {
		return classify(pgx.ErrNoRows, "release quarantine: no open entry")
	}
	return nil
}

// IsQuarantined reports whether resourceID currently has an open quarantine
// entry.
func (s *Store) IsQuarantined(ctx context.Context, tenantID uuid.UUID, env, resourceID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM quarantine_entries
			WHERE tenant_id = $1 AND env = $2 AND resource_id = $3 AND released_at IS NULL)`,
		tenantID, env, resourceID,
	).Scan(&exists)
	if err != nil {
		return false, classify(err, "check quarantine")
	}
	return exists, nil
}

// AppendTelemetry inserts a telemetry record for an agent.
func (s *Store) AppendTelemetry(ctx context.Context, t TelemetryRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO telemetry_records (agent_id, ts, latency_ms, errors, policy_violations, success_count, uptime_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.AgentID, t.TS, t.LatencyMS, t.Errors, t.PolicyViolations, t.SuccessCount, t.UptimePct)
	return classify(err, "append telemetry")
}

// ListTelemetry pages telemetry for an agent, most recent first.
func (s *Store) ListTelemetry(ctx context.Context, agentID uuid.UUID, limit int) ([]TelemetryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT agent_id, ts, latency_ms, errors, policy_violations, success_count, uptime_pct
		FROM telemetry_records WHERE agent_id = $1 ORDER BY ts DESC LIMIT $2`,
		agentID, limit)
	if err != nil {
		return nil, classify(err, "list telemetry")
	}
	defer rows.Close()

	var out []TelemetryRecord
	for rows.Next() {
		var t TelemetryRecord
		if err := rows.Scan(&t.AgentID, &t.TS, &t.LatencyMS, &t.Errors, &t.PolicyViolations, &t.SuccessCount, &t.UptimePct); err != nil {
			return nil, classify(err, "scan telemetry")
		}
		out = append(out, t)
	}
	return out, classify(rows.Err(), "list telemetry")
}

// GetBaseline fetches the current baseline for a metric, or NotFound.
func (s *Store) GetBaseline(ctx context.Context, tenantID uuid.UUID, env, metricName string) (Baseline, error) {
	var b Baseline
	err := s.pool.QueryRow(ctx, `
		SELECT tenant_id, env, metric_name, mean, stddev, p50, p95, p99, sample_count, refreshed_at
		FROM baselines WHERE tenant_id = $1 AND env = $2 AND metric_name = $3`,
		tenantID, env, metricName,
	).Scan(&b.TenantID, &b.Env, &b.MetricName, &b.Mean, &b.Stddev, &b.P50, &b.P95, &b.P99, &b.SampleCount, &b.RefreshedAt)
	if err != nil {
		return Baseline{}, classify(err, "get baseline")
	}
	return b, nil
}

// UpsertBaseline refreshes a baseline row (baselines are refreshed nightly).
func (s *Store) UpsertBaseline(ctx context.Context, b Baseline) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO baselines (tenant_id, env, metric_name, mean, stddev, p50, p95, p99, sample_count, refreshed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (tenant_id, env, metric_name) DO UPDATE SET
			mean = EXCLUDED.mean, stddev = EXCLUDED.stddev, p50 = EXCLUDED.p50, p95 = EXCLUDED.p95,
			p99 = EXCLUDED.p99, sample_count = EXCLUDED.sample_count, refreshed_at = now()`,
		b.TenantID, b.Env, b.MetricName, b.Mean, b.Stddev, b.P50, b.P95, b.P99, b.SampleCount)
	return classify(err, "upsert baseline")
}

// UpsertMetricSnapshot writes a rollup row, idempotent on (tenant_id, env, ts)
// by upserting on the period key.
func (s *Store) UpsertMetricSnapshot(ctx context.Context, m MetricSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metric_snapshots (ts, tenant_id, env, trust_score, risk_avoided_usd, sync_freshness_pct,
			drift_rate_pct, compliance_sla_pct, active_agents, active_workflows, total_events)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id, env, ts) DO UPDATE SET
			trust_score = EXCLUDED.trust_score, risk_avoided_usd = EXCLUDED.risk_avoided_usd,
			sync_freshness_pct = EXCLUDED.sync_freshness_pct, drift_rate_pct = EXCLUDED.drift_rate_pct,
			compliance_sla_pct = EXCLUDED.compliance_sla_pct, active_agents = EXCLUDED.active_agents,
			active_workflows = EXCLUDED.active_workflows, total_events = EXCLUDED.total_events`,
		m.TS, m.TenantID, m.Env, m.TrustScore, m.RiskAvoidedUSD, m.SyncFreshnessPct,
		m.DriftRatePct, m.ComplianceSLAPct, m.ActiveAgents, m.ActiveWorkflows, m.TotalEvents)
	return classify(err, "upsert metric snapshot")
}

// LatestMetricSnapshot fetches the most recent KPI rollup for a tenant.
func (s *Store) LatestMetricSnapshot(ctx context.Context, tenantID uuid.UUID, env string) (MetricSnapshot, error) {
	var m MetricSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT ts, tenant_id, env, trust_score, risk_avoided_usd, sync_freshness_pct,
			drift_rate_pct, compliance_sla_pct, active_agents, active_workflows, total_events
		FROM metric_snapshots WHERE tenant_id = $1 AND env = $2 ORDER BY ts DESC LIMIT 1`,
		tenantID, env,
	).Scan(&m.TS, &m.TenantID, &m.Env, &m.TrustScore, &m.RiskAvoidedUSD, &m.SyncFreshnessPct,
		&m.DriftRatePct, &m.ComplianceSLAPct, &m.ActiveAgents, &m.ActiveWorkflows, &m.TotalEvents)
	if err != nil {
		return MetricSnapshot{}, classify(err, "latest metric snapshot")
	}
	return m, nil
}

// TenantRef identifies one (tenant_id, env) pair known to the Context Store.
type TenantRef struct {
	ID  uuid.UUID
	Env string
}

// ListTenants enumerates every distinct (tenant_id, env) pair with at least
// one registered agent, the set the rollup and self-healing scans iterate
// over each cycle.
func (s *Store) ListTenants(ctx context.Context) ([]TenantRef, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT tenant_id, env FROM agents ORDER BY tenant_id`)
	if err != nil {
		return nil, classify(err, "list tenants")
	}
	defer rows.Close()

	var out []TenantRef
	for rows.Next() {
		var t TenantRef
		if err := rows.Scan(&t.ID, &t.Env); err != nil {
			return nil, classify(err, "scan tenant ref")
		}
		out = append(out, t)
	}
	return out, classify(rows.Err(), "list tenants")
}

// ListPolicyRules returns the enabled rule set for (tenantID, env).
func (s *Store) ListPolicyRules(ctx context.Context, tenantID uuid.UUID, env string) ([]PolicyRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, env, name, version, type, enabled, enforcement, rules, updated_at
		FROM policy_rules WHERE tenant_id = $1 AND env = $2 AND enabled ORDER BY name`,
		tenantID, env)
	if err != nil {
		return nil, classify(err, "list policy rules")
	}
	defer rows.Close()

	var out []PolicyRule
	for rows.Next() {
		var r PolicyRule
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Env, &r.Name, &r.Version, &r.Type, &r.Enabled, &r.Enforcement, &r.Rules, &r.UpdatedAt); err != nil {
			return nil, classify(err, "scan policy rule")
		}
		out = append(out, r)
	}
	return out, classify(rows.Err(), "list policy rules")
}

// UpsertPolicyRule inserts or bumps the version of a named policy rule.
func (s *Store) UpsertPolicyRule(ctx context.Context, r PolicyRule) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO policy_rules (id, tenant_id, env, name, version, type, enabled, enforcement, rules, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (tenant_id, env, name) DO UPDATE SET
			version = policy_rules.version + 1, type = EXCLUDED.type, enabled = EXCLUDED.enabled,
			enforcement = EXCLUDED.enforcement, rules = EXCLUDED.rules, updated_at = now()`,
		r.ID, r.TenantID, r.Env, r.Name, r.Version, r.Type, r.Enabled, r.Enforcement, r.Rules)
	return classify(err, "upsert policy rule")
}

// ConfigFlagsFor reads the server-resolved feature-flag snapshot for a
// tenant; callers are expected to cache the result for up to 5 minutes.
func (s *Store) ConfigFlagsFor(ctx context.Context, tenantID uuid.UUID, env string) (ConfigFlags, error) {
	var f ConfigFlags
	err := s.pool.QueryRow(ctx, `
		SELECT self_healing_enabled, policy_engine_mode, anomaly_detection_enabled
		FROM config_flags WHERE tenant_id = $1 AND env = $2`,
		tenantID, env,
	).Scan(&f.SelfHealingEnabled, &f.PolicyEngineMode, &f.AnomalyDetectionEnabled)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ConfigFlags{PolicyEngineMode: "enforcing"}, nil
		}
		return ConfigFlags{}, classify(err, "config flags")
	}
	return f, nil
}
