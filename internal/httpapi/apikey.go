package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aegishq/controlplane/internal/obs"
)

type contextKey string

const tenantContextKey contextKey = "tenant"

// TenantIdentity is the authenticated caller attached to the request
// context by APIKeyAuth.
type TenantIdentity struct {
	TenantID uuid.UUID
	Env      string
}

// WithTenant attaches identity to ctx.
func WithTenant(ctx context.Context, identity TenantIdentity) context.Context {
	return context.WithValue(ctx, tenantContextKey, identity)
}

// TenantFromContext retrieves the identity attached by APIKeyAuth.
func TenantFromContext(ctx context.Context) (TenantIdentity, bool) {
	id, ok := ctx.Value(tenantContextKey).(TenantIdentity)
	return id, ok
}

// KeyBinding maps an API key hash to the tenant it authenticates, parsed
// from API_KEYS as comma-separated key:tenant_id:env triples.
type KeyBinding struct {
	KeyHash  string
	TenantID uuid.UUID
	Env      string
}

// APIKeyAuth is the sole non-HMAC authentication method: requests present
// X-API-Key, which is hashed and matched against the configured bindings.
func APIKeyAuth(bindings []KeyBinding) func(http.Handler) http.Handler {
	byHash := make(map[string]KeyBinding, len(bindings))
	for _, b := range bindings {
		byHash[b.KeyHash] = b
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				RespondError(w, obs.New(obs.Authentication, "httpapi.missing_api_key", "X-API-Key header is required"))
				return
			}

			hash := hashKey(key)
			binding, ok := byHash[hash]
			if !ok {
				RespondError(w, obs.New(obs.Authentication, "httpapi.invalid_api_key", "API key not recognized"))
				return
			}

			ctx := WithTenant(r.Context(), TenantIdentity{TenantID: binding.TenantID, Env: binding.Env})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// hashKey derives the lookup hash for an API key. SHA-256 (not bcrypt) is
// used here because API keys are high-entropy random tokens, not
// low-entropy passwords; bindings are compared by exact hash match rather
// than bcrypt's slow verify.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HashKey exposes hashKey for config loading / seeding tools that need to
// precompute KeyBinding.KeyHash from a raw key.
func HashKey(key string) string { return hashKey(key) }

// ParseKeyBindings parses the API_KEYS env var format
// "key:tenant_id:env,key2:tenant_id2:env2" into KeyBindings.
func ParseKeyBindings(raw string) ([]KeyBinding, error) {
	var out []KeyBinding
	if raw == "" {
		return out, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 {
			return nil, obs.New(obs.Configuration, "httpapi.bad_api_keys", "API_KEYS entries must be key:tenant_id:env")
		}
		tenantID, err := uuid.Parse(parts[1])
		if err != nil {
			return nil, obs.Wrap(err, obs.Configuration, "httpapi.bad_tenant_id", "API_KEYS tenant_id is not a valid UUID")
		}
		out = append(out, KeyBinding{KeyHash: hashKey(parts[0]), TenantID: tenantID, Env: parts[2]})
	}
	return out, nil
}
