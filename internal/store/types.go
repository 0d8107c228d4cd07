// Package store implements the Context Store (C1): the transactional store
// for agents, events, telemetry, metrics, baselines, DLQ, quarantine, and
// idempotency, plus vector embeddings and materialized KPI views.
//
// Most queries compose (tenant_id, env); the exceptions are listed on
// Store. Queries are hand-written against pgx rather than generated.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AgentStatus enumerates the lifecycle states of an Agent.
type AgentStatus string

const (
	AgentActive      AgentStatus = "active"
	AgentSuspended   AgentStatus = "suspended"
	AgentQuarantined AgentStatus = "quarantined"
	AgentDeprecated  AgentStatus = "deprecated"
)

// Agent is a governed AI agent or workflow platform integration.
type Agent struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Env            string
	Type           string
	Vendor         string
	Model          string
	Status         AgentStatus
	ComplianceTier string
	TrustLevel     float64
	Owners         []string
	Policies       []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WorkflowSource enumerates the origin platforms an adapter ingests from.
type WorkflowSource string

const (
	SourceZapier   WorkflowSource = "zapier"
	SourceN8N      WorkflowSource = "n8n"
	SourceMake     WorkflowSource = "make"
	SourceAirflow  WorkflowSource = "airflow"
	SourceInternal WorkflowSource = "internal"
)

// Workflow is a tracked execution target of an adapter.
type Workflow struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Env        string
	Source     WorkflowSource
	Trigger    string
	Status     string
	LastRunAt  time.Time
	UpdatedAt  time.Time
}

// EventSource describes where a canonical event originated.
type EventSource struct {
	Adapter         string  `json:"adapter"`
	AgentID         string  `json:"agent_id"`
	IntegrationType *string `json:"integration_type,omitempty"`
	Region          *string `json:"region,omitempty"`
}

// EventMetadata carries tenant and session context for a canonical event.
type EventMetadata struct {
	TenantID   uuid.UUID         `json:"tenant_id"`
	UserID     *string           `json:"user_id,omitempty"`
	SessionID  *string           `json:"session_id,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	Priority   *string           `json:"priority,omitempty"`
	RetryCount *int              `json:"retry_count,omitempty"`
}

// EventSecurity carries signature and classification metadata.
type EventSecurity struct {
	Signature          *string `json:"signature,omitempty"`
	SignatureAlgorithm *string `json:"signature_algorithm,omitempty"`
	Classification     *string `json:"classification,omitempty"`
	RequiresEncryption *bool   `json:"requires_encryption,omitempty"`
}

// EventTelemetry carries trace linkage for a canonical event.
type EventTelemetry struct {
	TraceID      *string `json:"trace_id,omitempty"`
	SpanID       *string `json:"span_id,omitempty"`
	ParentSpanID *string `json:"parent_span_id,omitempty"`
}

// Event is the canonical, append-only representation of any inbound webhook.
type Event struct {
	EventID        uuid.UUID
	CorrelationID  string
	CausationID    *string
	EventType      string
	Source         EventSource
	Timestamp      time.Time
	Version        string
	Data           json.RawMessage
	Metadata       EventMetadata
	Security       EventSecurity
	Error          *string
	Telemetry      EventTelemetry
	WorkflowID     *uuid.UUID
	Env            string
	IdempotencyKey string
}

// TelemetryRecord is one point of an agent's operational time series.
type TelemetryRecord struct {
	AgentID          uuid.UUID
	TS               time.Time
	LatencyMS        float64
	Errors           int
	PolicyViolations int
	SuccessCount     int
	UptimePct        float64
}

// Baseline is the statistical baseline a metric is compared against for
// anomaly detection.
type Baseline struct {
	TenantID     uuid.UUID
	Env          string
	MetricName   string
	Mean         float64
	Stddev       float64
	P50          float64
	P95          float64
	P99          float64
	SampleCount  int
	RefreshedAt  time.Time
}

// MetricSnapshot is a point-in-time tenant KPI rollup row.
type MetricSnapshot struct {
	TS                time.Time
	TenantID          uuid.UUID
	Env               string
	TrustScore         float64
	RiskAvoidedUSD     float64
	SyncFreshnessPct   float64
	DriftRatePct       float64
	ComplianceSLAPct   float64
	ActiveAgents       int
	ActiveWorkflows    int
	TotalEvents        int
}

// Enforcement describes how a policy rule's violation affects the decision.
type Enforcement string

const (
	EnforcementBlocking Enforcement = "blocking"
	EnforcementLogging  Enforcement = "logging"
	EnforcementAdvisory Enforcement = "advisory"
)

// PolicyRule is a versioned, data-driven rule record: declarative rule
// records with a versioned schema rather than an object-literal DSL.
type PolicyRule struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Env         string
	Name        string
	Version     int
	Type        string
	Enabled     bool
	Enforcement Enforcement
	Rules       json.RawMessage
	UpdatedAt   time.Time
}

// DLQEntry records a terminally failed request for later inspection or replay.
type DLQEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Env           string
	Source        string
	Payload       json.RawMessage
	Error         string
	CorrelationID string
	Attempts      int
	FirstSeen     time.Time
	LastSeen      time.Time
}

// QuarantineEntry records why a resource was quarantined and when it opened.
type QuarantineEntry struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Env        string
	ResourceID string
	Reason     string
	OpenedAt   time.Time
	ReleasedAt *time.Time
	ReleasedBy *string
}

// ConfigFlags is the server-resolved feature-flag snapshot backing
// config_flags, cached with a 5-minute TTL by callers.
type ConfigFlags struct {
	SelfHealingEnabled      bool
	PolicyEngineMode        string
	AnomalyDetectionEnabled bool
}
