// Package credentials implements the credential resolver (spec §4.5):
// choosing the upstream API key for (org, provider) under a project's
// billing mode, and resolving custom-provider definitions.
package credentials

import (
	"context"
	"errors"
)

// BillingMode is a project's billing policy (spec §3 Project).
type BillingMode string

const (
	ModeAPIKeys BillingMode = "api-keys"
	ModeCredits BillingMode = "credits"
	ModeHybrid  BillingMode = "hybrid"
)

// Kind enumerates the credential-resolution failure kinds from spec §7 that
// this package can produce.
type Kind string

const (
	KindNoProviderKey      Kind = "NoProviderKey"
	KindNoProviderEnv      Kind = "NoProviderEnv"
	KindCustomInCreditsMode Kind = "CustomInCreditsMode"
	KindInsufficientCredits Kind = "InsufficientCredits"
)

// Error carries a resolution failure kind for the handler to map to the
// full apierr taxonomy.
type Error struct {
	Kind Kind
}

func (e *Error) Error() string { return string(e.Kind) }

// Project is the narrow view of spec §3's Project this package needs.
type Project struct {
	ID    string
	OrgID string
	Mode  BillingMode
}

// Organization is the narrow view of spec §3's Organization this package
// needs.
type Organization struct {
	ID      string
	Credits float64 // signed decimal in spec §3; float64 suffices for the > 0 gate here
}

// StoredKey is a ProviderKey row (spec §3).
type StoredKey struct {
	Token      string
	BaseURL    string
	Active     bool
}

// Store is the persistence seam for stored provider keys, custom-provider
// definitions, and organizations. A Redis- or datastore-backed
// implementation is supplied by internal/app at startup.
type Store interface {
	// GetProviderKey returns the stored key for (orgID, providerID), with
	// found=false if none exists. An inactive key may be returned with
	// Active=false; the Resolver treats it as absent.
	GetProviderKey(ctx context.Context, orgID, providerID string) (StoredKey, bool, error)
	// GetCustomProviderKey returns the stored key for a named custom
	// provider definition registered by orgID.
	GetCustomProviderKey(ctx context.Context, orgID, customName string) (StoredKey, bool, error)
	// GetOrganization loads the organization's current credit balance.
	GetOrganization(ctx context.Context, orgID string) (Organization, error)
}

// EnvCredentials resolves a provider's default (env-configured) credential.
type EnvCredentials interface {
	// Lookup returns the default credential for providerID, or ("", false)
	// if the environment variable named by the catalog's
	// DefaultCredentialEnv is unset.
	Lookup(providerID string) (token string, ok bool)
}

// Resolver implements spec §4.5.
type Resolver struct {
	store Store
	env   EnvCredentials
}

// New builds a Resolver.
func New(store Store, env EnvCredentials) *Resolver {
	return &Resolver{store: store, env: env}
}

// Resolved is the outcome of a successful resolution.
type Resolved struct {
	Token       string
	BaseURL     string
	FromEnv     bool
	ProviderKeyID string
}

// Resolve implements the three billing-mode branches of spec §4.5.
// customProviderName is non-empty only when the router has already
// determined the request targets a named custom provider (router rule 2/3).
func (r *Resolver) Resolve(ctx context.Context, proj Project, providerID, customProviderName string) (Resolved, error) {
	switch proj.Mode {
	case ModeAPIKeys:
		return r.resolveStored(ctx, proj, providerID, customProviderName)

	case ModeCredits:
		if customProviderName != "" {
			return Resolved{}, &Error{Kind: KindCustomInCreditsMode}
		}
		return r.resolveEnv(ctx, proj, providerID)

	case ModeHybrid:
		if res, ok, err := r.tryStored(ctx, proj, providerID, customProviderName); err != nil {
			return Resolved{}, err
		} else if ok {
			return res, nil
		}
		return r.resolveEnv(ctx, proj, providerID)
	}
	return Resolved{}, errors.New("credentials: unknown billing mode")
}

func (r *Resolver) resolveStored(ctx context.Context, proj Project, providerID, customProviderName string) (Resolved, error) {
	res, ok, err := r.tryStored(ctx, proj, providerID, customProviderName)
	if err != nil {
		return Resolved{}, err
	}
	if !ok {
		return Resolved{}, &Error{Kind: KindNoProviderKey}
	}
	return res, nil
}

func (r *Resolver) tryStored(ctx context.Context, proj Project, providerID, customProviderName string) (Resolved, bool, error) {
	var key StoredKey
	var found bool
	var err error
	if customProviderName != "" {
		key, found, err = r.store.GetCustomProviderKey(ctx, proj.OrgID, customProviderName)
	} else {
		key, found, err = r.store.GetProviderKey(ctx, proj.OrgID, providerID)
	}
	if err != nil {
		return Resolved{}, false, err
	}
	if !found || !key.Active {
		return Resolved{}, false, nil
	}
	return Resolved{Token: key.Token, BaseURL: key.BaseURL}, true, nil
}

func (r *Resolver) resolveEnv(ctx context.Context, proj Project, providerID string) (Resolved, error) {
	token, ok := r.env.Lookup(providerID)
	if !ok {
		return Resolved{}, &Error{Kind: KindNoProviderEnv}
	}
	org, err := r.store.GetOrganization(ctx, proj.OrgID)
	if err != nil {
		return Resolved{}, err
	}
	if org.Credits <= 0 {
		return Resolved{}, &Error{Kind: KindInsufficientCredits}
	}
	return Resolved{Token: token, FromEnv: true}, nil
}
