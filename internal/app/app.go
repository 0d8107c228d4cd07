// Package app wires every component into the two runtime modes: api (HTTP
// surface, API-key authenticated) and worker (cron scheduler + rollup +
// anomaly poll + self-healing).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/aegishq/controlplane/internal/adapter"
	"github.com/aegishq/controlplane/internal/anomaly"
	"github.com/aegishq/controlplane/internal/config"
	"github.com/aegishq/controlplane/internal/httpapi"
	"github.com/aegishq/controlplane/internal/idempotency"
	"github.com/aegishq/controlplane/internal/kpi"
	"github.com/aegishq/controlplane/internal/notify"
	"github.com/aegishq/controlplane/internal/obs"
	"github.com/aegishq/controlplane/internal/platform"
	"github.com/aegishq/controlplane/internal/policy"
	"github.com/aegishq/controlplane/internal/resilience"
	"github.com/aegishq/controlplane/internal/secrets"
	"github.com/aegishq/controlplane/internal/selfheal"
	"github.com/aegishq/controlplane/internal/store"
	"github.com/aegishq/controlplane/internal/telemetry"
	"github.com/aegishq/controlplane/internal/tenantindex"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the appropriate mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.LogRedactMode)
	slog.SetDefault(logger)

	logger.Info("starting aegis control plane", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := obs.NewMetricsRegistry()

	deps, err := buildDependencies(cfg, logger, db, rdb)
	if err != nil {
		return fmt.Errorf("wiring dependencies: %w", err)
	}

	deps.telemetry.Start(ctx)
	defer deps.telemetry.Close()

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg, deps)
	case "worker":
		return runWorker(ctx, cfg, logger, deps)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// dependencies holds every component shared between api and worker mode.
type dependencies struct {
	store      *store.Store
	pipeline   *adapter.Pipeline
	kpi        *kpi.Engine
	breakers   *resilience.Registry
	roller     *telemetry.Roller
	poller     *anomaly.Poller
	hub        *anomaly.Hub
	controller *selfheal.Controller
	notifier   *notify.Notifier
	telemetry  *telemetry.Buffer
}

func buildDependencies(cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) (*dependencies, error) {
	st := store.New(db)

	configured := secrets.ProviderFor(cfg.SecretsProvider)
	secretsBridge := secrets.NewBridge(configured, rdb)

	idemSvc := idempotency.NewService(rdb, st)

	rateLimiter := policy.NewRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute)
	policyEngine := policy.NewEngine(rateLimiter)

	breakers := resilience.NewRegistry(resilience.DefaultConfig())

	dlq := adapter.NewDLQSink(st)

	telemetrySink := telemetry.NewStoreSink(st, logger)
	telemetryBuf := telemetry.NewBuffer(telemetrySink, logger)

	pipeline := adapter.NewPipeline(secretsBridge, idemSvc, policyEngine, breakers, st, dlq, telemetryBuf, logger)

	stalenessSLO := time.Duration(cfg.SyncFreshnessSLOHours) * time.Hour

	weights := kpi.ParseWeights(cfg.TrustScoreWeights)
	kpiEngine := kpi.NewEngine(st, weights, cfg.RiskBaselineCostUSD, stalenessSLO)

	roller := telemetry.NewRoller(st, tenantindex.ForTelemetry{Source: st}, kpiEngine, logger)

	hub := anomaly.NewHub(rdb, logger)
	poller := anomaly.NewPoller(st, hub)

	notifier := notify.NewNotifier(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)

	controller := selfheal.NewController(st, tenantindex.ForSelfHeal{Source: st}, breakers, notifier, stalenessSLO, logger)

	return &dependencies{
		store:      st,
		pipeline:   pipeline,
		kpi:        kpiEngine,
		breakers:   breakers,
		roller:     roller,
		poller:     poller,
		hub:        hub,
		controller: controller,
		notifier:   notifier,
		telemetry:  telemetryBuf,
	}, nil
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, deps *dependencies) error {
	bindings, err := httpapi.ParseKeyBindings(strings.Join(cfg.APIKeys, ","))
	if err != nil {
		return fmt.Errorf("parsing API_KEYS: %w", err)
	}

	srv := httpapi.NewServer(httpapi.Config{
		CORSAllowedOrigins:    cfg.CORSAllowedOrigins,
		KeyBindings:           bindings,
		GlobalRateLimitPer15m: cfg.GlobalRateLimitPer15m,
	}, logger, db, rdb, metricsReg, deps.store, deps.pipeline, deps.kpi, deps.breakers)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *dependencies) error {
	logger.Info("worker started")

	anomalies, unsubscribe := deps.hub.Subscribe(64)
	go bridgeAnomalyAlerts(ctx, anomalies, deps.notifier, logger)
	defer unsubscribe()

	scheduler := telemetry.NewScheduler(logger)

	anomalyPoll := func(ctx context.Context) error {
		tenants, err := deps.store.ListTenants(ctx)
		if err != nil {
			return err
		}
		for _, t := range tenants {
			if err := deps.poller.Poll(ctx, t.ID, t.Env); err != nil {
				logger.Error("anomaly poll failed", "tenant_id", t.ID, "error", err)
			}
		}
		return nil
	}

	selfHealScan := func(ctx context.Context) error {
		if !cfg.EnableSelfHealing {
			return nil
		}
		return deps.controller.Scan(ctx)
	}

	dlqPrune := func(ctx context.Context) error {
		return deps.store.PruneDLQEntries(ctx, 30*24*time.Hour)
	}

	for _, job := range telemetry.DefaultJobs(deps.roller, anomalyPoll, selfHealScan, dlqPrune) {
		if err := scheduler.Register(ctx, job); err != nil {
			return fmt.Errorf("registering job %s: %w", job.Name, err)
		}
	}

	scheduler.Start()
	defer scheduler.Stop()

	<-ctx.Done()
	logger.Info("worker shutting down")
	return nil
}

// bridgeAnomalyAlerts posts high and critical anomalies to Slack as they
// arrive on the hub; medium and below are surfaced only through the
// dashboard-facing KPI bundle, not paged.
func bridgeAnomalyAlerts(ctx context.Context, anomalies <-chan anomaly.Anomaly, notifier *notify.Notifier, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-anomalies:
			if !ok {
				return
			}
			if a.Severity != anomaly.SeverityHigh && a.Severity != anomaly.SeverityCritical {
				continue
			}
			sev := notify.SeverityMajor
			if a.Severity == anomaly.SeverityCritical {
				sev = notify.SeverityCritical
			}
			if _, err := notifier.PostAlert(ctx, notify.Alert{
				ID:       a.ID.String(),
				Title:    fmt.Sprintf("Anomaly detected: %s", a.Kind),
				Severity: sev,
				AgentID:  a.AgentID.String(),
				TenantID: a.TenantID.String(),
				Description: fmt.Sprintf("%s observed %.2f against baseline %.2f on %s",
					a.Kind, a.Observed, a.Baseline, a.MetricName),
			}); err != nil {
				logger.Error("posting anomaly alert", "anomaly_id", a.ID, "error", err)
			}
		}
	}
}
