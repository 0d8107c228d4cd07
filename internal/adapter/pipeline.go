package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/idempotency"
	"github.com/aegishq/controlplane/internal/obs"
	"github.com/aegishq/controlplane/internal/policy"
	"github.com/aegishq/controlplane/internal/resilience"
	"github.com/aegishq/controlplane/internal/secrets"
	"github.com/aegishq/controlplane/internal/store"
	"github.com/aegishq/controlplane/internal/telemetry"
)

const freshnessWindow = 5 * time.Minute

// Handler executes the adapter-specific work for one event, e.g. persisting
// the canonical event and invoking any downstream side effect.
type Handler func(ctx context.Context, evt store.Event) (result any, compensate func(context.Context) error, err error)

// Pipeline is the uniform middleware pipeline every webhook endpoint runs
// through: verify -> freshness -> idempotency -> policy -> execute
// (breaker-wrapped) -> record/compensate.
type Pipeline struct {
	secrets     *secrets.Bridge
	idempotency *idempotency.Service
	policy      *policy.Engine
	breakers    *resilience.Registry
	store       *store.Store
	dlq         *DLQSink
	telemetry   *telemetry.Buffer
	logger      interface {
		Error(msg string, args ...any)
	}
}

// NewPipeline wires the pipeline's dependencies. tb may be nil, in which
// case the pipeline runs without emitting telemetry records.
func NewPipeline(sb *secrets.Bridge, idem *idempotency.Service, pe *policy.Engine, br *resilience.Registry, st *store.Store, dlq *DLQSink, tb *telemetry.Buffer, logger interface {
	Error(msg string, args ...any)
}) *Pipeline {
	return &Pipeline{secrets: sb, idempotency: idem, policy: pe, breakers: br, store: st, dlq: dlq, telemetry: tb, logger: logger}
}

// enqueueTelemetry records one executed/failed sample for the agent the
// event referenced, if telemetry is wired and the agent id parses as a
// UUID; silently a no-op otherwise.
func (p *Pipeline) enqueueTelemetry(kind, agentID string, latency time.Duration, success bool) {
	if p.telemetry == nil {
		return
	}
	errs, succ := 1, 0
	if success {
		errs, succ = 0, 1
	}
	p.telemetry.Enqueue(telemetry.Event{
		Kind: kind,
		Payload: map[string]any{
			"agent_id":      agentID,
			"latency_ms":    float64(latency.Milliseconds()),
			"errors":        errs,
			"success_count": succ,
		},
	})
}

// Result is the outcome the HTTP surface reports for a processed webhook.
type Result struct {
	State   RequestState
	Decoded json.RawMessage
}

// Process runs env through the full pipeline for the given tenant/user
// context, invoking handle for the adapter-specific execution step.
func (p *Pipeline) Process(ctx context.Context, env Envelope, secretEnvVar string, tenantID uuid.UUID, tenantEnv string, pctx policy.Context, handle Handler) (Result, error) {
	start := time.Now()
	state := StateReceived

	// 1. Signature verification.
	secret, err := p.secrets.Get(ctx, secretEnvVar, nil)
	if err != nil {
		return Result{State: state}, err
	}
	if !Verify([]byte(secret), env.Body, env.Signature) {
		obs.EventsReceivedTotal.WithLabelValues(string(env.Source), "unauthorized").Inc()
		return Result{State: state}, obs.New(obs.Authentication, "adapter.bad_signature", "signature verification failed")
	}
	state = StateVerified

	// 2. Timestamp freshness (replay defense).
	ts := time.UnixMilli(env.TimestampMS)
	if d := time.Since(ts); d > freshnessWindow || d < -freshnessWindow {
		obs.EventsReceivedTotal.WithLabelValues(string(env.Source), "stale").Inc()
		return Result{State: state}, obs.New(obs.Validation, "adapter.stale_timestamp", "x-timestamp outside freshness window")
	}

	// 3. Idempotency check.
	key := env.IdempotencyKey
	if key == "" {
		raw, _ := Normalize(env.Source, env.Body)
		key = idempotency.DeriveKey(string(env.Source), raw.WorkflowID, raw.ExecutionID, env.Body)
	}
	if cached, hit, err := p.idempotency.Check(ctx, key); err != nil {
		return Result{State: state}, err
	} else if hit {
		state = StateDeduplicated
		return Result{State: StateSucceeded, Decoded: cached}, nil
	}
	state = StateDeduplicated

	// 4. Policy evaluation.
	rf, err := Normalize(env.Source, env.Body)
	if err != nil {
		return Result{State: state}, obs.Wrap(err, obs.Validation, "adapter.bad_payload", "decoding webhook body")
	}
	req := policy.Request{RequestID: env.CorrelationID, Prompt: string(rf.Data)}
	decision, err := p.policy.Evaluate(ctx, req, pctx)
	if err != nil {
		return Result{State: state}, err
	}
	if decision.Decision == policy.Deny {
		obs.EventsReceivedTotal.WithLabelValues(string(env.Source), "policy_denied").Inc()
		return Result{State: state}, obs.New(obs.PolicyViolation, "adapter.policy_denied", "policy engine denied the request")
	}
	state = StatePolicyCleared

	// 5. Quarantine check: a tenant under quarantine accepts no new events
	// for the quarantined resource.
	if quarantined, err := p.store.IsQuarantined(ctx, tenantID, tenantEnv, rf.AgentID); err != nil {
		return Result{State: state}, err
	} else if quarantined {
		obs.EventsReceivedTotal.WithLabelValues(string(env.Source), "quarantined").Inc()
		return Result{State: StateFailed}, obs.Wrap(&QuarantineError{ResourceID: rf.AgentID}, obs.Conflict, "adapter.quarantined", "resource is quarantined and not accepting new events")
	}

	// 6. Execute with breaker + retry.
	state = StateExecuting
	evt := store.Event{
		EventID:        uuid.New(),
		CorrelationID:  env.CorrelationID,
		EventType:      rf.EventType,
		Source:         store.EventSource{Adapter: string(env.Source), AgentID: rf.AgentID},
		Timestamp:      time.Now().UTC(),
		Version:        "1",
		Data:           rf.Data,
		Metadata:       store.EventMetadata{TenantID: tenantID},
		Env:            tenantEnv,
		IdempotencyKey: key,
	}

	saga := &Saga{CorrelationID: env.CorrelationID}
	breaker := p.breakers.For(string(env.Source))

	var result any
	execErr := breaker.Execute(func() error {
		return resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(err error) bool {
			return obs.Retryable(err)
		}, func() error {
			r, compensate, err := handle(ctx, evt)
			if err != nil {
				return err
			}
			result = r
			if compensate != nil {
				saga.Append(SagaStep{TaskID: evt.EventID.String(), Result: r, Compensate: compensate})
			}
			return nil
		})
	})

	if execErr != nil {
		return p.fail(ctx, env, evt, execErr, saga, start)
	}

	// Quarantine may have opened for this resource while the handler was
	// running. The result is discarded without compensation: nothing
	// downstream has observed the outcome yet, so there is nothing to undo.
	if quarantined, err := p.store.IsQuarantined(ctx, tenantID, tenantEnv, rf.AgentID); err == nil && quarantined {
		obs.EventsReceivedTotal.WithLabelValues(string(env.Source), "quarantined_failed").Inc()
		p.enqueueTelemetry("quarantined_failed", evt.Source.AgentID, time.Since(start), false)
		return Result{State: StateFailed}, obs.Wrap(&QuarantineError{ResourceID: rf.AgentID}, obs.Conflict, "adapter.quarantined", "resource was quarantined mid-flight")
	}

	// 7. Record success.
	state = StateSucceeded
	resultJSON, _ := json.Marshal(result)
	if err := p.idempotency.Store(ctx, key, resultJSON, idempotency.DefaultTTL); err != nil {
		p.logger.Error("idempotency store failed", "error", err, "correlation_id", env.CorrelationID)
	}
	if err := p.store.AppendEvent(ctx, evt); err != nil {
		p.logger.Error("append event failed", "error", err, "correlation_id", env.CorrelationID)
	}
	obs.EventsReceivedTotal.WithLabelValues(string(env.Source), "executed").Inc()
	p.enqueueTelemetry("executed", evt.Source.AgentID, time.Since(start), true)

	return Result{State: state, Decoded: resultJSON}, nil
}

func (p *Pipeline) fail(ctx context.Context, env Envelope, evt store.Event, cause error, saga *Saga, start time.Time) (Result, error) {
	if len(saga.Steps) > 0 {
		for _, cf := range saga.Compensate(ctx) {
			_ = p.dlq.Push(ctx, evt.Metadata.TenantID, evt.Env, string(env.Source), env.CorrelationID,
				env.Body, fmt.Errorf("compensation failed for %s: %w", cf.TaskID, cf.Err))
		}
	}

	_ = p.dlq.Push(ctx, evt.Metadata.TenantID, evt.Env, string(env.Source), env.CorrelationID, env.Body, cause)
	obs.EventsReceivedTotal.WithLabelValues(string(env.Source), "failed").Inc()
	p.enqueueTelemetry("failed", evt.Source.AgentID, time.Since(start), false)

	return Result{State: StateFailed}, cause
}
