// Package anomaly implements the Anomaly Detector (C9): z-score drift,
// percentage regression, traffic spikes, and SLA breaches evaluated against
// rolling per-metric baselines through a poll -> evaluate -> emit loop.
package anomaly

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/obs"
	"github.com/aegishq/controlplane/internal/store"
)

// Kind enumerates the categories of anomaly this detector raises.
type Kind string

const (
	KindDrift      Kind = "drift"
	KindRegression Kind = "regression"
	KindSpike      Kind = "spike"
	KindSLABreach  Kind = "sla_breach"
)

// Severity enumerates the escalating tiers each anomaly kind maps onto.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Anomaly is one detected deviation from baseline, ready to be persisted
// and published.
type Anomaly struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Env        string
	AgentID    uuid.UUID
	MetricName string
	Kind       Kind
	Severity   Severity
	Observed   float64
	Baseline   float64
	DetectedAt time.Time
}

// MetricSample is one rolling-window observation fed to Evaluate.
type MetricSample struct {
	MetricName  string // "latency", "error_rate", "traffic", "uptime"
	Value       float64
	IsTraffic   bool
	IsLatency   bool
	IsErrorRate bool
	IsUptime    bool
}

// Evaluate compares sample against baseline and returns every anomaly it
// triggers (a single sample can trigger more than one kind, e.g. both drift
// and an SLA breach).
func Evaluate(baseline store.Baseline, sample MetricSample) []Anomaly {
	var out []Anomaly

	if baseline.Stddev > 0 {
		z := math.Abs(sample.Value-baseline.Mean) / baseline.Stddev
		if sev, ok := driftSeverity(z); ok {
			out = append(out, Anomaly{MetricName: sample.MetricName, Kind: KindDrift, Severity: sev,
				Observed: sample.Value, Baseline: baseline.Mean})
		}
	}

	if sample.IsLatency && baseline.P95 > 0 {
		pctIncrease := (sample.Value - baseline.P95) / baseline.P95 * 100
		if sev, ok := regressionSeverityLatency(pctIncrease); ok {
			out = append(out, Anomaly{MetricName: sample.MetricName, Kind: KindRegression, Severity: sev,
				Observed: sample.Value, Baseline: baseline.P95})
		}
	}

	if sample.IsErrorRate && baseline.Mean > 0 {
		pctIncrease := (sample.Value - baseline.Mean) / baseline.Mean * 100
		if sev, ok := regressionSeverityErrorRate(pctIncrease); ok {
			out = append(out, Anomaly{MetricName: sample.MetricName, Kind: KindRegression, Severity: sev,
				Observed: sample.Value, Baseline: baseline.Mean})
		}
	}

	if sample.IsTraffic && baseline.Mean > 0 {
		pctIncrease := (sample.Value - baseline.Mean) / baseline.Mean * 100
		if sev, ok := spikeSeverity(pctIncrease); ok {
			out = append(out, Anomaly{MetricName: sample.MetricName, Kind: KindSpike, Severity: sev,
				Observed: sample.Value, Baseline: baseline.Mean})
		}
	}

	if sample.IsErrorRate {
		if sev, ok := slaBreachSeverityErrorRate(sample.Value); ok {
			out = append(out, Anomaly{MetricName: sample.MetricName, Kind: KindSLABreach, Severity: sev,
				Observed: sample.Value})
		}
	}
	if sample.IsUptime {
		if sev, ok := slaBreachSeverityUptime(sample.Value); ok {
			out = append(out, Anomaly{MetricName: sample.MetricName, Kind: KindSLABreach, Severity: sev,
				Observed: sample.Value})
		}
	}

	for i := range out {
		out[i].ID = uuid.New()
		out[i].DetectedAt = time.Now().UTC()
		obs.AnomaliesDetectedTotal.WithLabelValues(string(out[i].Kind), string(out[i].Severity)).Inc()
	}
	return out
}

func driftSeverity(z float64) (Severity, bool) {
	switch {
	case z >= 5:
		return SeverityCritical, true
	case z >= 4:
		return SeverityHigh, true
	case z >= 3:
		return SeverityMedium, true
	default:
		return "", false
	}
}

func regressionSeverityLatency(pct float64) (Severity, bool) {
	switch {
	case pct > 50:
		return SeverityCritical, true
	case pct > 30:
		return SeverityHigh, true
	case pct > 20:
		return SeverityMedium, true
	default:
		return "", false
	}
}

func regressionSeverityErrorRate(pct float64) (Severity, bool) {
	switch {
	case pct > 100:
		return SeverityCritical, true
	case pct > 50:
		return SeverityHigh, true
	case pct > 20:
		return SeverityMedium, true
	default:
		return "", false
	}
}

func spikeSeverity(pct float64) (Severity, bool) {
	switch {
	case pct > 500:
		return SeverityCritical, true
	case pct > 300:
		return SeverityHigh, true
	case pct > 200:
		return SeverityMedium, true
	default:
		return "", false
	}
}

func slaBreachSeverityErrorRate(errorRatePct float64) (Severity, bool) {
	switch {
	case errorRatePct > 5:
		return SeverityCritical, true
	case errorRatePct > 1:
		return SeverityHigh, true
	default:
		return "", false
	}
}

func slaBreachSeverityUptime(uptimePct float64) (Severity, bool) {
	switch {
	case uptimePct < 99:
		return SeverityCritical, true
	case uptimePct < 99.9:
		return SeverityHigh, true
	default:
		return "", false
	}
}

// Poller runs Evaluate for every agent's freshest telemetry sample against
// its stored baseline on the configured polling interval.
type Poller struct {
	store interface {
		ListAgents(ctx context.Context, tenantID uuid.UUID, env string) ([]store.Agent, error)
		ListTelemetry(ctx context.Context, agentID uuid.UUID, limit int) ([]store.TelemetryRecord, error)
		GetBaseline(ctx context.Context, tenantID uuid.UUID, env, metricName string) (store.Baseline, error)
	}
	hub *Hub
}

// NewPoller builds a Poller publishing through hub.
func NewPoller(st interface {
	ListAgents(ctx context.Context, tenantID uuid.UUID, env string) ([]store.Agent, error)
	ListTelemetry(ctx context.Context, agentID uuid.UUID, limit int) ([]store.TelemetryRecord, error)
	GetBaseline(ctx context.Context, tenantID uuid.UUID, env, metricName string) (store.Baseline, error)
}, hub *Hub) *Poller {
	return &Poller{store: st, hub: hub}
}

// Poll scans (tenantID, env)'s agents for fresh telemetry and publishes any
// anomalies found.
func (p *Poller) Poll(ctx context.Context, tenantID uuid.UUID, env string) error {
	agents, err := p.store.ListAgents(ctx, tenantID, env)
	if err != nil {
		return err
	}

	for _, a := range agents {
		recs, err := p.store.ListTelemetry(ctx, a.ID, 1)
		if err != nil || len(recs) == 0 {
			continue
		}
		latest := recs[0]

		errRate := 0.0
		if latest.SuccessCount+latest.Errors > 0 {
			errRate = float64(latest.Errors) / float64(latest.SuccessCount+latest.Errors) * 100
		}

		samples := []MetricSample{
			{MetricName: "latency", Value: latest.LatencyMS, IsLatency: true},
			{MetricName: "error_rate", Value: errRate, IsErrorRate: true},
			{MetricName: "uptime", Value: latest.UptimePct, IsUptime: true},
		}

		for _, s := range samples {
			baseline, err := p.store.GetBaseline(ctx, tenantID, env, s.MetricName)
			if err != nil {
				continue
			}
			for _, an := range Evaluate(baseline, s) {
				an.TenantID = tenantID
				an.Env = env
				an.AgentID = a.ID
				p.hub.Publish(ctx, an)
			}
		}
	}
	return nil
}
