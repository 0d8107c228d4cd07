package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/aegishq/controlplane/internal/kpi"
	"github.com/aegishq/controlplane/internal/obs"
)

type exportRequest struct {
	Format string `json:"format"` // "markdown" | "csv"
}

// handleReportsExport handles POST /reports/export.
func (s *Server) handleReportsExport(w http.ResponseWriter, r *http.Request) {
	identity, ok := TenantFromContext(r.Context())
	if !ok {
		RespondError(w, obs.New(obs.Authentication, "httpapi.no_identity", "missing authenticated tenant"))
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, obs.Wrap(err, obs.Validation, "httpapi.bad_export_request", "invalid request body"))
		return
	}

	snapshot, err := s.Store.LatestMetricSnapshot(r.Context(), identity.TenantID, identity.Env)
	if err != nil {
		RespondError(w, err)
		return
	}

	switch req.Format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(kpi.ExportCSV(snapshot)))
	case "markdown", "":
		w.Header().Set("Content-Type", "text/markdown")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(kpi.ExportMarkdown(snapshot, nil)))
	default:
		RespondError(w, obs.New(obs.Validation, "httpapi.bad_export_format", "format must be markdown or csv"))
	}
}
