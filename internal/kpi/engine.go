// Package kpi implements the Trust/KPI Engine (C10): the weighted trust
// score and the tenant KPI bundle exported to the HTTP surface and the
// rollup pipeline, computing a weighted composite from several raw signals
// against a configurable weight vector.
package kpi

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/store"
)

// Weights is the trust-score weight vector, read from TRUST_SCORE_WEIGHTS,
// defaulting to 0.3/0.3/0.2/0.2 across reliability, policy adherence,
// context freshness, and risk exposure.
type Weights struct {
	Reliability      float64
	PolicyAdherence  float64
	ContextFreshness float64
	RiskExposure     float64
}

// DefaultWeights is the default trust-score composite.
func DefaultWeights() Weights {
	return Weights{Reliability: 0.3, PolicyAdherence: 0.3, ContextFreshness: 0.2, RiskExposure: 0.2}
}

// ParseWeights parses TRUST_SCORE_WEIGHTS's comma-separated
// reliability,policy-adherence,context-freshness,risk-exposure order,
// falling back to DefaultWeights on any malformed input, or on weights
// that do not sum to 1 (± 1e-6), rather than failing startup.
func ParseWeights(raw string) Weights {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return DefaultWeights()
	}
	vals := make([]float64, 4)
	sum := 0.0
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return DefaultWeights()
		}
		vals[i] = v
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		return DefaultWeights()
	}
	return Weights{Reliability: vals[0], PolicyAdherence: vals[1], ContextFreshness: vals[2], RiskExposure: vals[3]}
}

// Bundle is the full KPI snapshot for a tenant at a point in time.
type Bundle struct {
	TrustScore            float64
	RiskAvoidedUSD        float64
	SyncFreshnessPct      float64
	DriftRatePct          float64
	ComplianceSLAPct      float64
	SelfResolutionRatio   float64
	ActiveAgents          int
	ActiveWorkflows       int
	TotalEvents           int
}

// eventStore is the narrow read surface Compute needs.
type eventStore interface {
	ListTelemetry(ctx context.Context, agentID uuid.UUID, limit int) ([]store.TelemetryRecord, error)
	ListWorkflows(ctx context.Context, tenantID uuid.UUID, env string) ([]store.Workflow, error)
}

// Engine computes KPI bundles from raw telemetry and policy-decision counts.
type Engine struct {
	store           eventStore
	weights         Weights
	baselineCostUSD float64
	freshnessSLO    time.Duration
}

// NewEngine builds an Engine. baselineCostUSD is RISK_BASELINE_COST_USD,
// the assumed dollar cost of an unmitigated incident used to translate
// blocked policy violations into a risk-avoided dollar figure. freshnessSLO
// is SYNC_FRESHNESS_SLO_HOURS converted to a duration: a workflow whose
// last run falls outside this window counts as stale for Sync Freshness %.
func NewEngine(st eventStore, weights Weights, baselineCostUSD float64, freshnessSLO time.Duration) *Engine {
	return &Engine{store: st, weights: weights, baselineCostUSD: baselineCostUSD, freshnessSLO: freshnessSLO}
}

// Compute derives a Bundle for tenant (tenantID, env) from its current
// agent roster. Each percentage component is independently clamped to
// [0, 100], SelfResolutionRatio to [0, 1], and RiskAvoidedUSD is left as a
// raw dollar figure, so a single degraded input cannot push the composite
// out of its defined range.
func (e *Engine) Compute(ctx context.Context, tenantID uuid.UUID, env string, agents []store.Agent) (Bundle, error) {
	var (
		totalLatencySamples int
		totalErrors         int
		totalSuccess        int
		totalPolicyViol     int
		uptimeSum           float64
		uptimeSamples       int
		quarantined         int
	)

	for _, a := range agents {
		recs, err := e.store.ListTelemetry(ctx, a.ID, 200)
		if err != nil {
			return Bundle{}, err
		}
		for _, r := range recs {
			totalLatencySamples++
			totalErrors += r.Errors
			totalSuccess += r.SuccessCount
			totalPolicyViol += r.PolicyViolations
			uptimeSum += r.UptimePct
			uptimeSamples++
		}
		if a.Status == store.AgentQuarantined {
			quarantined++
		}
	}

	complianceSLA := 100.0
	if uptimeSamples > 0 {
		complianceSLA = clampPct(uptimeSum / float64(uptimeSamples))
	}

	driftRate := 0.0
	if totalLatencySamples > 0 {
		driftRate = clampPct(float64(totalErrors) / float64(totalLatencySamples) * 100)
	}

	selfResolution := 1.0
	if quarantined > 0 && len(agents) > 0 {
		selfResolution = clampRatio(1 - float64(quarantined)/float64(len(agents)))
	}

	workflows, err := e.store.ListWorkflows(ctx, tenantID, env)
	if err != nil {
		return Bundle{}, err
	}
	activeWorkflows := 0
	freshWorkflows := 0
	now := time.Now()
	for _, w := range workflows {
		if w.Status == "active" {
			activeWorkflows++
		}
		if now.Sub(w.LastRunAt) <= e.freshnessSLO {
			freshWorkflows++
		}
	}
	syncFreshness := 100.0
	if len(workflows) > 0 {
		syncFreshness = clampPct(float64(freshWorkflows) / float64(len(workflows)) * 100)
	}

	// Trust score factors: reliability (1 - error rate), policy adherence
	// (1 - policy violation rate), context-freshness ratio, and
	// 1 - normalized risk exposure (risk exposure tracked as the fraction
	// of the agent roster currently quarantined).
	errorRate := 0.0
	policyViolationRate := 0.0
	if totalLatencySamples > 0 {
		errorRate = float64(totalErrors) / float64(totalLatencySamples)
		policyViolationRate = float64(totalPolicyViol) / float64(totalLatencySamples)
	}
	reliability := clampRatio(1 - errorRate)
	policyAdherence := clampRatio(1 - policyViolationRate)
	contextFreshness := clampRatio(syncFreshness / 100)

	riskExposure := 0.0
	if len(agents) > 0 {
		riskExposure = float64(quarantined) / float64(len(agents))
	}
	riskFactor := clampRatio(1 - riskExposure)

	trust := (e.weights.Reliability*reliability +
		e.weights.PolicyAdherence*policyAdherence +
		e.weights.ContextFreshness*contextFreshness +
		e.weights.RiskExposure*riskFactor) * 100

	riskAvoided := float64(totalPolicyViol) * e.baselineCostUSD

	return Bundle{
		TrustScore:          clampPct(trust),
		RiskAvoidedUSD:      riskAvoided,
		SyncFreshnessPct:    syncFreshness,
		DriftRatePct:        driftRate,
		ComplianceSLAPct:    complianceSLA,
		SelfResolutionRatio: selfResolution,
		ActiveAgents:        len(agents) - quarantined,
		ActiveWorkflows:     activeWorkflows,
		TotalEvents:         totalSuccess + totalErrors,
	}, nil
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SnapshotAge reports how stale a MetricSnapshot is (time since its TS).
func SnapshotAge(m store.MetricSnapshot) time.Duration {
	return time.Since(m.TS)
}
