package obs

import "github.com/prometheus/client_golang/prometheus"

// Package-level collectors shared across the HTTP surface and domain
// components.
var (
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aegis",
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	EventsReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "adapter",
		Name:      "events_received_total",
		Help:      "Webhook events received, by source and outcome.",
	}, []string{"source", "outcome"})

	PolicyDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "policy",
		Name:      "decisions_total",
		Help:      "Policy engine decisions, by tag.",
	}, []string{"decision"})

	AnomaliesDetectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "anomaly",
		Name:      "detected_total",
		Help:      "Anomalies detected, by type and severity.",
	}, []string{"anomaly_type", "severity"})

	SelfHealActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "selfheal",
		Name:      "actions_total",
		Help:      "Self-healing remediation actions taken, by action.",
	}, []string{"action"})

	SecretsAccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "secrets",
		Name:      "access_total",
		Help:      "Secrets Bridge lookups, by key and whether cached.",
	}, []string{"key", "cached"})

	BreakerStateChangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aegis",
		Subsystem: "resilience",
		Name:      "breaker_state_changes_total",
		Help:      "Circuit breaker state transitions, by target and new state.",
	}, []string{"target", "state"})
)

// NewMetricsRegistry builds a Prometheus registry with the Go/process
// collectors plus every service collector registered.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		HTTPRequestDuration,
		EventsReceivedTotal,
		PolicyDecisionsTotal,
		AnomaliesDetectedTotal,
		SelfHealActionsTotal,
		SecretsAccessTotal,
		BreakerStateChangesTotal,
	)
	return reg
}
