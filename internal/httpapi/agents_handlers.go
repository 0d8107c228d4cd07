package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/obs"
)

// handleListAgents handles GET /agents (tenant-scoped).
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	identity, ok := TenantFromContext(r.Context())
	if !ok {
		RespondError(w, obs.New(obs.Authentication, "httpapi.no_identity", "missing authenticated tenant"))
		return
	}

	agents, err := s.Store.ListAgents(r.Context(), identity.TenantID, identity.Env)
	if err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusOK, map[string]any{"agents": agents})
}

// handleAgentTelemetry handles GET /agents/{id}/telemetry?limit=.
func (s *Server) handleAgentTelemetry(w http.ResponseWriter, r *http.Request) {
	_, ok := TenantFromContext(r.Context())
	if !ok {
		RespondError(w, obs.New(obs.Authentication, "httpapi.no_identity", "missing authenticated tenant"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, obs.New(obs.Validation, "httpapi.bad_agent_id", "id is not a valid UUID"))
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	records, err := s.Store.ListTelemetry(r.Context(), id, limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusOK, map[string]any{"telemetry": records})
}

// handleReleaseQuarantine handles POST /agents/{id}/quarantine/release.
func (s *Server) handleReleaseQuarantine(w http.ResponseWriter, r *http.Request) {
	identity, ok := TenantFromContext(r.Context())
	if !ok {
		RespondError(w, obs.New(obs.Authentication, "httpapi.no_identity", "missing authenticated tenant"))
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		RespondError(w, obs.New(obs.Validation, "httpapi.bad_agent_id", "id is not a valid UUID"))
		return
	}

	releasedBy := r.Header.Get("X-API-Key")
	if err := s.Store.ReleaseQuarantine(r.Context(), identity.TenantID, identity.Env, id, HashKey(releasedBy)); err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusOK, map[string]string{"status": "released"})
}
