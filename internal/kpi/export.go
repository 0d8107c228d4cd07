package kpi

import (
	"fmt"
	"strings"

	"github.com/aegishq/controlplane/internal/store"
)

// Level is a traffic-light rating for one KPI value.
type Level string

const (
	LevelGreen  Level = "green"
	LevelYellow Level = "yellow"
	LevelRed    Level = "red"
)

// RateTrustScore buckets a trust score into a traffic-light level.
func RateTrustScore(score float64) Level {
	switch {
	case score >= 85:
		return LevelGreen
	case score >= 60:
		return LevelYellow
	default:
		return LevelRed
	}
}

// RateComplianceSLA buckets an SLA percentage per the breach thresholds
// (uptime < 99.9% warning, < 99% critical).
func RateComplianceSLA(pct float64) Level {
	switch {
	case pct >= 99.9:
		return LevelGreen
	case pct >= 99:
		return LevelYellow
	default:
		return LevelRed
	}
}

// ExportMarkdown renders a metric snapshot as the Markdown report body for
// POST /reports/export. When previous is non-nil it adds a narrative line
// derived from the trust-score delta against it; when nil, no narrative.
func ExportMarkdown(current store.MetricSnapshot, previous *store.MetricSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Trust & KPI Report\n\n")
	fmt.Fprintf(&b, "Period ending %s\n\n", current.TS.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "| Metric | Value | Status |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| Trust score | %.1f | %s |\n", current.TrustScore, RateTrustScore(current.TrustScore))
	fmt.Fprintf(&b, "| Risk avoided | $%.2f | |\n", current.RiskAvoidedUSD)
	fmt.Fprintf(&b, "| Sync freshness | %.1f%% | |\n", current.SyncFreshnessPct)
	fmt.Fprintf(&b, "| Drift rate | %.1f%% | |\n", current.DriftRatePct)
	fmt.Fprintf(&b, "| Compliance SLA | %.2f%% | %s |\n", current.ComplianceSLAPct, RateComplianceSLA(current.ComplianceSLAPct))
	fmt.Fprintf(&b, "| Active agents | %d | |\n", current.ActiveAgents)

	if previous != nil {
		delta := current.TrustScore - previous.TrustScore
		switch {
		case delta > 1:
			fmt.Fprintf(&b, "\nTrust score improved %.1f points since the last period.\n", delta)
		case delta < -1:
			fmt.Fprintf(&b, "\nTrust score dropped %.1f points since the last period; review recent policy violations and anomalies.\n", -delta)
		default:
			fmt.Fprintf(&b, "\nTrust score is stable.\n")
		}
	}

	return b.String()
}

// ExportCSV renders a metric snapshot as the CSV variant of the same
// report, without traffic-light levels or narrative.
func ExportCSV(current store.MetricSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "metric,value\n")
	fmt.Fprintf(&b, "trust_score,%.2f\n", current.TrustScore)
	fmt.Fprintf(&b, "risk_avoided_usd,%.2f\n", current.RiskAvoidedUSD)
	fmt.Fprintf(&b, "sync_freshness_pct,%.2f\n", current.SyncFreshnessPct)
	fmt.Fprintf(&b, "drift_rate_pct,%.2f\n", current.DriftRatePct)
	fmt.Fprintf(&b, "compliance_sla_pct,%.2f\n", current.ComplianceSLAPct)
	fmt.Fprintf(&b, "active_agents,%d\n", current.ActiveAgents)
	fmt.Fprintf(&b, "active_workflows,%d\n", current.ActiveWorkflows)
	fmt.Fprintf(&b, "total_events,%d\n", current.TotalEvents)
	return b.String()
}
