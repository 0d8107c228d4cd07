// Package tenantindex adapts store.Store's tenant enumeration to the
// narrow TenantLister interfaces the telemetry rollup and self-healing
// packages each declare locally, since neither example repo in the pack
// exposed a tenant registry shaped like this spec's (tenant_id, env)
// pairing.
package tenantindex

import (
	"context"

	"github.com/aegishq/controlplane/internal/selfheal"
	"github.com/aegishq/controlplane/internal/store"
	"github.com/aegishq/controlplane/internal/telemetry"
)

// Source is the store method both adapters delegate to.
type Source interface {
	ListTenants(ctx context.Context) ([]store.TenantRef, error)
}

// ForTelemetry adapts a Source to telemetry.TenantLister.
type ForTelemetry struct{ Source Source }

func (f ForTelemetry) Tenants(ctx context.Context) ([]telemetry.Tenant, error) {
	refs, err := f.Source.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]telemetry.Tenant, len(refs))
	for i, r := range refs {
		out[i] = telemetry.Tenant{ID: r.ID, Env: r.Env}
	}
	return out, nil
}

// ForSelfHeal adapts a Source to the self-healing controller's tenant
// lister.
type ForSelfHeal struct{ Source Source }

func (f ForSelfHeal) Tenants(ctx context.Context) ([]selfheal.Tenant, error) {
	refs, err := f.Source.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]selfheal.Tenant, len(refs))
	for i, r := range refs {
		out[i] = selfheal.Tenant{ID: r.ID, Env: r.Env}
	}
	return out, nil
}
