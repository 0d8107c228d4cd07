package httpapi

import (
	"net/http"

	"github.com/aegishq/controlplane/internal/obs"
)

// handleTrust handles GET /trust, returning the latest KPI bundle.
func (s *Server) handleTrust(w http.ResponseWriter, r *http.Request) {
	identity, ok := TenantFromContext(r.Context())
	if !ok {
		RespondError(w, obs.New(obs.Authentication, "httpapi.no_identity", "missing authenticated tenant"))
		return
	}

	snapshot, err := s.Store.LatestMetricSnapshot(r.Context(), identity.TenantID, identity.Env)
	if err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusOK, snapshot)
}
