package anomaly

import (
	"testing"

	"github.com/aegishq/controlplane/internal/store"
)

func TestEvaluateDriftSeverityThresholds(t *testing.T) {
	baseline := store.Baseline{Mean: 100, Stddev: 10}

	cases := []struct {
		value float64
		want  Severity
		any   bool
	}{
		{100, "", false},
		{131, SeverityMedium, true}, // z = 3.1
		{141, SeverityHigh, true},   // z = 4.1
		{151, SeverityCritical, true},
	}
	for _, c := range cases {
		anomalies := Evaluate(baseline, MetricSample{MetricName: "latency", Value: c.value})
		if !c.any {
			for _, a := range anomalies {
				if a.Kind == KindDrift {
					t.Fatalf("value %v: expected no drift anomaly, got %v", c.value, a)
				}
			}
			continue
		}
		found := false
		for _, a := range anomalies {
			if a.Kind == KindDrift && a.Severity == c.want {
				found = true
			}
		}
		if !found {
			t.Fatalf("value %v: expected drift severity %v, got %v", c.value, c.want, anomalies)
		}
	}
}

func TestEvaluateSLABreachOnErrorRate(t *testing.T) {
	baseline := store.Baseline{}
	anomalies := Evaluate(baseline, MetricSample{MetricName: "error_rate", Value: 6, IsErrorRate: true})

	found := false
	for _, a := range anomalies {
		if a.Kind == KindSLABreach && a.Severity == SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected critical SLA breach for 6%% error rate, got %v", anomalies)
	}
}

func TestEvaluateSLABreachOnUptime(t *testing.T) {
	baseline := store.Baseline{}
	anomalies := Evaluate(baseline, MetricSample{MetricName: "uptime", Value: 99.5, IsUptime: true})

	found := false
	for _, a := range anomalies {
		if a.Kind == KindSLABreach && a.Severity == SeverityHigh {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected high SLA breach for 99.5%% uptime, got %v", anomalies)
	}
}

func TestEvaluateSpikeSeverity(t *testing.T) {
	baseline := store.Baseline{Mean: 100}
	anomalies := Evaluate(baseline, MetricSample{MetricName: "traffic", Value: 650, IsTraffic: true})

	found := false
	for _, a := range anomalies {
		if a.Kind == KindSpike && a.Severity == SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected critical spike for 550%% increase, got %v", anomalies)
	}
}
