// Package secrets implements the Secrets Bridge (C3): a uniform accessor
// over environment variables, KMS, and vault, with a cached TTL and audit
// counters.
package secrets

import (
	"context"
	"os"
)

// Provider resolves a secret by key. ok is false when the key is unknown to
// this provider (not an error — the bridge falls through to the next one).
type Provider interface {
	Fetch(ctx context.Context, key string) (value string, ok bool, err error)
}

// EnvProvider resolves secrets from process environment variables.
type EnvProvider struct{}

func (EnvProvider) Fetch(_ context.Context, key string) (string, bool, error) {
	v, ok := os.LookupEnv(key)
	return v, ok, nil
}

// StaticProvider resolves secrets from an in-memory map, for tests.
type StaticProvider map[string]string

func (p StaticProvider) Fetch(_ context.Context, key string) (string, bool, error) {
	v, ok := p[key]
	return v, ok, nil
}

// KMSStubProvider documents the integration point for a real KMS-backed
// provider (selected via SECRETS_PROVIDER=kms) without inventing a fake
// network client. It always misses, deferring to the next provider in the
// chain, until a real client is wired in.
type KMSStubProvider struct{}

func (KMSStubProvider) Fetch(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

// VaultStubProvider documents the integration point for a real Vault-backed
// provider (selected via SECRETS_PROVIDER=vault). Like KMSStubProvider it
// always misses until wired to a real client.
type VaultStubProvider struct{}

func (VaultStubProvider) Fetch(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

// ProviderFor selects the configured provider ahead of the environment
// fallback, per SECRETS_PROVIDER.
func ProviderFor(kind string) Provider {
	switch kind {
	case "kms":
		return KMSStubProvider{}
	case "vault":
		return VaultStubProvider{}
	default:
		return nil
	}
}
