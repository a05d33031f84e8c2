package proxy

import (
	"context"
	"errors"
	"testing"

	"github.com/llmgateway/gateway/internal/credentials"
)

var errBoom = errors.New("boom")

type fakeCredStore struct {
	providerKeys map[string]credentials.StoredKey
	customKeys   map[string]credentials.StoredKey
}

func (f fakeCredStore) GetProviderKey(_ context.Context, orgID, providerID string) (credentials.StoredKey, bool, error) {
	k, ok := f.providerKeys[orgID+"/"+providerID]
	return k, ok, nil
}

func (f fakeCredStore) GetCustomProviderKey(_ context.Context, orgID, name string) (credentials.StoredKey, bool, error) {
	k, ok := f.customKeys[orgID+"/"+name]
	return k, ok, nil
}

func (f fakeCredStore) GetOrganization(_ context.Context, orgID string) (credentials.Organization, error) {
	return credentials.Organization{ID: orgID}, nil
}

type fakeEnvCreds map[string]string

func (f fakeEnvCreds) Lookup(providerID string) (string, bool) {
	v, ok := f[providerID]
	return v, ok
}

func TestAvailability_HasStoredKey(t *testing.T) {
	store := fakeCredStore{providerKeys: map[string]credentials.StoredKey{
		"org1/openai": {Token: "sk-test", Active: true},
		"org1/gemini": {Token: "sk-inactive", Active: false},
	}}
	av := availability{ctx: context.Background(), orgID: "org1", store: store, env: &fakeEnvCreds{}}

	if !av.HasStoredKey("openai") {
		t.Error("expected active stored key to be available")
	}
	if av.HasStoredKey("gemini") {
		t.Error("inactive stored key should not be available")
	}
	if av.HasStoredKey("anthropic") {
		t.Error("missing stored key should not be available")
	}
}

func TestAvailability_HasEnvCredential(t *testing.T) {
	env := fakeEnvCreds{"openai": "sk-env"}
	av := availability{ctx: context.Background(), orgID: "org1", store: fakeCredStore{}, env: &env}

	if !av.HasEnvCredential("openai") {
		t.Error("expected env credential to be available")
	}
	if av.HasEnvCredential("anthropic") {
		t.Error("missing env credential should not be available")
	}
}

func TestAvailability_HasCustomProvider(t *testing.T) {
	store := fakeCredStore{customKeys: map[string]credentials.StoredKey{
		"org1/my-proxy": {Token: "sk-custom", Active: true},
	}}
	av := availability{ctx: context.Background(), orgID: "org1", store: store, env: &fakeEnvCreds{}}

	if !av.HasCustomProvider("my-proxy") {
		t.Error("expected custom provider to be available")
	}
	if av.HasCustomProvider("unknown") {
		t.Error("missing custom provider should not be available")
	}
}

func TestAvailability_StoreErrorTreatedAsUnavailable(t *testing.T) {
	av := availability{ctx: context.Background(), orgID: "org1", store: erroringCredStore{}, env: &fakeEnvCreds{}}
	if av.HasStoredKey("openai") {
		t.Error("a store error should not be treated as an available key")
	}
	if av.HasCustomProvider("my-proxy") {
		t.Error("a store error should not be treated as an available custom provider")
	}
}

type erroringCredStore struct{}

func (erroringCredStore) GetProviderKey(_ context.Context, _, _ string) (credentials.StoredKey, bool, error) {
	return credentials.StoredKey{}, false, errBoom
}

func (erroringCredStore) GetCustomProviderKey(_ context.Context, _, _ string) (credentials.StoredKey, bool, error) {
	return credentials.StoredKey{}, false, errBoom
}

func (erroringCredStore) GetOrganization(_ context.Context, orgID string) (credentials.Organization, error) {
	return credentials.Organization{}, errBoom
}
