package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestAPIKeyAuthAcceptsKnownKey(t *testing.T) {
	tenantID := uuid.New()
	bindings := []KeyBinding{{KeyHash: HashKey("secret-key"), TenantID: tenantID, Env: "production"}}

	var seen TenantIdentity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = TenantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()

	APIKeyAuth(bindings)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen.TenantID != tenantID || seen.Env != "production" {
		t.Fatalf("expected identity to be attached, got %+v", seen)
	}
}

func TestAPIKeyAuthRejectsUnknownKey(t *testing.T) {
	bindings := []KeyBinding{{KeyHash: HashKey("real-key"), TenantID: uuid.New(), Env: "production"}}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec := httptest.NewRecorder()

	APIKeyAuth(bindings)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAPIKeyAuthRejectsMissingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/agents", nil)
	rec := httptest.NewRecorder()

	APIKeyAuth(nil)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestParseKeyBindings(t *testing.T) {
	tenantID := uuid.New()
	raw := "key-a:" + tenantID.String() + ":production,key-b:" + tenantID.String() + ":staging"

	bindings, err := ParseKeyBindings(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(bindings))
	}
	if bindings[0].Env != "production" || bindings[1].Env != "staging" {
		t.Fatalf("unexpected envs: %+v", bindings)
	}
}
