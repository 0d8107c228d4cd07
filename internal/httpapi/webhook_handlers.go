package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/adapter"
	"github.com/aegishq/controlplane/internal/obs"
	"github.com/aegishq/controlplane/internal/policy"
	"github.com/aegishq/controlplane/internal/store"
)

// envelopeFields are the top-level fields every adapter payload carries in
// addition to its source-specific data, letting the ingestion endpoint
// resolve tenant scope without requiring a prior API-key login. There is
// no tenant-bearing header for webhooks, so tenant_id travels in the
// signed body itself.
type envelopeFields struct {
	TenantID string `json:"tenant_id"`
	Env      string `json:"env"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
}

var secretEnvVarBySource = map[adapter.Source]string{
	adapter.SourceZapier:  "ZAPIER_WEBHOOK_SECRET",
	adapter.SourceN8N:     "N8N_WEBHOOK_SECRET",
	adapter.SourceMake:    "MAKE_WEBHOOK_SECRET",
	adapter.SourceAirflow: "AIRFLOW_WEBHOOK_SECRET",
}

// handleWebhook ingests one adapter event through the full pipeline via
// POST /adapters/{source}/webhook.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	source := adapter.Source(chi.URLParam(r, "source"))
	secretEnvVar, ok := secretEnvVarBySource[source]
	if !ok {
		RespondError(w, obs.New(obs.NotFound, "httpapi.unknown_adapter", "unknown adapter source"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // payload JSON capped at 1 MiB
	if err != nil {
		RespondError(w, obs.Wrap(err, obs.Validation, "httpapi.body_read_failed", "failed to read request body"))
		return
	}

	var ef envelopeFields
	if err := json.Unmarshal(body, &ef); err != nil {
		RespondError(w, obs.Wrap(err, obs.Validation, "httpapi.bad_envelope", "body is not valid JSON"))
		return
	}
	tenantID, err := uuid.Parse(ef.TenantID)
	if err != nil {
		RespondError(w, obs.New(obs.Validation, "httpapi.missing_tenant_id", "body must carry tenant_id"))
		return
	}
	env := ef.Env
	if env == "" {
		env = "production"
	}

	timestampMS, _ := strconv.ParseInt(r.Header.Get("x-timestamp"), 10, 64)
	envelope := adapter.Envelope{
		Source:         source,
		CorrelationID:  obs.CorrelationID(r.Context()),
		IdempotencyKey: r.Header.Get("x-idempotency-key"),
		Signature:      r.Header.Get("x-signature"),
		TimestampMS:    timestampMS,
		Body:           body,
	}

	role := ef.Role
	if role == "" {
		role = "service"
	}
	pctx := policy.Context{UserID: ef.UserID, Role: role, TenantID: ef.TenantID, Env: env, RequiredAction: "ingest"}

	result, err := s.Pipeline.Process(r.Context(), envelope, secretEnvVar, tenantID, env, pctx, s.executeEvent)
	if err != nil {
		RespondError(w, err)
		return
	}

	Respond(w, http.StatusAccepted, map[string]any{"state": result.State, "correlation_id": envelope.CorrelationID})
}

// executeEvent is the adapter-specific execution step: the canonical event
// has already been assembled by the pipeline, so this just confirms
// acceptance. A SAGA compensation isn't needed for plain ingestion (no
// downstream side effect to undo), so compensate is nil.
func (s *Server) executeEvent(ctx context.Context, evt store.Event) (any, func(context.Context) error, error) {
	return map[string]string{"event_id": evt.EventID.String()}, nil, nil
}
