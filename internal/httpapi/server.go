// Package httpapi implements the HTTP Surface (C12): the normative routes
// mounted on a chi router with a global middleware chain, health/metrics
// endpoints, and CORS, authenticated via API key or HMAC webhook signature
// only (no OIDC/session layer).
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/aegishq/controlplane/internal/adapter"
	"github.com/aegishq/controlplane/internal/kpi"
	"github.com/aegishq/controlplane/internal/obs"
	"github.com/aegishq/controlplane/internal/resilience"
	"github.com/aegishq/controlplane/internal/store"
)

// Config holds the parameters NewServer needs, decoupled from the global
// config struct.
type Config struct {
	CORSAllowedOrigins []string
	KeyBindings        []KeyBinding
	GlobalRateLimitPer15m int
}

// Server holds the HTTP server's dependencies and mounted router.
type Server struct {
	Router   *chi.Mux
	Logger   *slog.Logger
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *prometheus.Registry
	Store    *store.Store
	Pipeline *adapter.Pipeline
	KPI      *kpi.Engine
	Breakers *resilience.Registry

	startedAt time.Time
}

// NewServer builds a Server with the global middleware chain, the
// unauthenticated health/metrics endpoints and the domain routes mounted.
func NewServer(cfg Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, st *store.Store, pipeline *adapter.Pipeline, kpiEngine *kpi.Engine, breakers *resilience.Registry) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Metrics:   metricsReg,
		Store:     st,
		Pipeline:  pipeline,
		KPI:       kpiEngine,
		Breakers:  breakers,
		startedAt: time.Now(),
	}

	s.Router.Use(obs.CorrelationMiddleware)
	s.Router.Use(obs.Logger(logger))
	s.Router.Use(obs.Metrics)
	s.Router.Use(chimiddleware.Recoverer)
	s.Router.Use(RateLimit(rdb, cfg.GlobalRateLimitPer15m))
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key", "X-Correlation-ID", "X-Signature", "X-Timestamp"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.Router.Get("/health", s.handleHealth)
	s.Router.Get("/status/liveness", s.handleLiveness)
	s.Router.Get("/status/readiness", s.handleReadiness)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Route("/adapters", func(r chi.Router) {
		r.Post("/{source}/webhook", s.handleWebhook)
	})

	s.Router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(cfg.KeyBindings))
		r.Get("/agents", s.handleListAgents)
		r.Get("/agents/{id}/telemetry", s.handleAgentTelemetry)
		r.Post("/agents/{id}/quarantine/release", s.handleReleaseQuarantine)
		r.Get("/trust", s.handleTrust)
		r.Post("/reports/export", s.handleReportsExport)
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.DB.Ping(ctx); err != nil {
		Respond(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "database": "unreachable"})
		return
	}
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	type check struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	var checks []check
	ok := true

	if err := s.DB.Ping(ctx); err != nil {
		checks = append(checks, check{Name: "database", Status: "fail", Error: err.Error()})
		ok = false
	} else {
		checks = append(checks, check{Name: "database", Status: "ok"})
	}

	if err := s.Redis.Ping(ctx).Err(); err != nil {
		checks = append(checks, check{Name: "redis", Status: "fail", Error: err.Error()})
		ok = false
	} else {
		checks = append(checks, check{Name: "redis", Status: "ok"})
	}

	stuckBreakers := 0
	for _, state := range s.Breakers.Snapshot() {
		if state == resilience.StateOpen {
			stuckBreakers++
		}
	}
	checks = append(checks, check{Name: "breakers", Status: "ok"})
	if stuckBreakers > 0 {
		checks[len(checks)-1].Status = "degraded"
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ok {
		status = "unavailable"
		httpStatus = http.StatusServiceUnavailable
	}

	Respond(w, httpStatus, map[string]any{"status": status, "checks": checks})
}
