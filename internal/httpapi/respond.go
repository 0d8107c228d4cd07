package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aegishq/controlplane/internal/obs"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes a JSON error response, translating obs.Error kinds to
// their HTTP status via Error.HTTPStatus when err is one.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	message := "an internal error occurred"

	var oe *obs.Error
	if e, ok := err.(*obs.Error); ok {
		oe = e
	}
	if oe != nil {
		status = oe.HTTPStatus()
		code = oe.Code
		message = oe.Message
	}

	Respond(w, status, ErrorResponse{Error: code, Message: message})
}
