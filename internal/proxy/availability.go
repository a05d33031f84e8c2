package proxy

import (
	"context"

	"github.com/llmgateway/gateway/internal/credentials"
)

// availability adapts internal/credentials.Store and EnvCredentials into the
// router.AvailableProviders view the router needs to tie-break candidate
// mappings (spec §4.6) without importing internal/credentials itself.
type availability struct {
	ctx   context.Context
	orgID string
	store credentials.Store
	env   credentials.EnvCredentials
}

func (a availability) HasStoredKey(providerID string) bool {
	key, ok, err := a.store.GetProviderKey(a.ctx, a.orgID, providerID)
	return err == nil && ok && key.Active
}

func (a availability) HasEnvCredential(providerID string) bool {
	_, ok := a.env.Lookup(providerID)
	return ok
}

func (a availability) HasCustomProvider(name string) bool {
	key, ok, err := a.store.GetCustomProviderKey(a.ctx, a.orgID, name)
	return err == nil && ok && key.Active
}
