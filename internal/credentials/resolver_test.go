package credentials

import (
	"context"
	"testing"
)

type fakeStore struct {
	keys map[string]StoredKey
	orgs map[string]Organization
}

func (f *fakeStore) GetProviderKey(ctx context.Context, orgID, providerID string) (StoredKey, bool, error) {
	k, ok := f.keys[orgID+"/"+providerID]
	return k, ok, nil
}
func (f *fakeStore) GetCustomProviderKey(ctx context.Context, orgID, name string) (StoredKey, bool, error) {
	k, ok := f.keys[orgID+"/custom/"+name]
	return k, ok, nil
}
func (f *fakeStore) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	return f.orgs[orgID], nil
}

type fakeEnv map[string]string

func (f fakeEnv) Lookup(providerID string) (string, bool) {
	v, ok := f[providerID]
	return v, ok
}

func TestResolveAPIKeysModeMissingKey(t *testing.T) {
	r := New(&fakeStore{keys: map[string]StoredKey{}}, fakeEnv{})
	_, err := r.Resolve(context.Background(), Project{OrgID: "o1", Mode: ModeAPIKeys}, "openai", "")
	var e *Error
	if err == nil {
		t.Fatal("expected error")
	}
	if !asError(err, &e) || e.Kind != KindNoProviderKey {
		t.Fatalf("got %v", err)
	}
}

func TestResolveCreditsModeDisallowsCustom(t *testing.T) {
	r := New(&fakeStore{}, fakeEnv{"openai": "sk-env"})
	_, err := r.Resolve(context.Background(), Project{OrgID: "o1", Mode: ModeCredits}, "openai", "myCustom")
	var e *Error
	if !asError(err, &e) || e.Kind != KindCustomInCreditsMode {
		t.Fatalf("got %v", err)
	}
}

func TestResolveCreditsModeRequiresPositiveBalance(t *testing.T) {
	store := &fakeStore{orgs: map[string]Organization{"o1": {ID: "o1", Credits: 0}}}
	r := New(store, fakeEnv{"openai": "sk-env"})
	_, err := r.Resolve(context.Background(), Project{OrgID: "o1", Mode: ModeCredits}, "openai", "")
	var e *Error
	if !asError(err, &e) || e.Kind != KindInsufficientCredits {
		t.Fatalf("got %v", err)
	}
}

func TestResolveHybridPrefersStored(t *testing.T) {
	store := &fakeStore{
		keys: map[string]StoredKey{"o1/openai": {Token: "sk-stored", Active: true}},
		orgs: map[string]Organization{"o1": {ID: "o1", Credits: 0}},
	}
	r := New(store, fakeEnv{"openai": "sk-env"})
	res, err := r.Resolve(context.Background(), Project{OrgID: "o1", Mode: ModeHybrid}, "openai", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Token != "sk-stored" || res.FromEnv {
		t.Fatalf("expected stored key preferred, got %+v", res)
	}
}

func TestResolveHybridFallsBackToEnv(t *testing.T) {
	store := &fakeStore{orgs: map[string]Organization{"o1": {ID: "o1", Credits: 5}}}
	r := New(store, fakeEnv{"openai": "sk-env"})
	res, err := r.Resolve(context.Background(), Project{OrgID: "o1", Mode: ModeHybrid}, "openai", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Token != "sk-env" || !res.FromEnv {
		t.Fatalf("expected env fallback, got %+v", res)
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
