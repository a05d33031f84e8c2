package proxy

import (
	"context"

	"github.com/llmgateway/gateway/internal/credentials"
)

// APIKey is the narrow view of a stored API key the handler's auth step
// (spec §4.9 step 4) needs.
type APIKey struct {
	ID        string
	ProjectID string
	Active    bool
}

// Project is the narrow view of spec §3's Project the handler needs beyond
// what internal/credentials already models.
type Project struct {
	ID             string
	OrgID          string
	Mode           credentials.BillingMode
	CachingEnabled bool
}

// AuthStore resolves the incoming bearer token and its owning project —
// spec §4.9 steps 4-5. A Postgres- or Redis-backed implementation is
// supplied by internal/app at startup.
type AuthStore interface {
	// ResolveAPIKey looks up the api key by its bearer token value. found is
	// false for an unknown token; callers must additionally check
	// key.Active.
	ResolveAPIKey(ctx context.Context, token string) (key APIKey, found bool, err error)
	// GetProject loads the project owning an api key.
	GetProject(ctx context.Context, projectID string) (proj Project, found bool, err error)
}
