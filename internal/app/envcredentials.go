package app

import (
	"os"

	"github.com/llmgateway/gateway/internal/catalog"
)

// EnvCredentials implements credentials.EnvCredentials by reading each
// provider's DefaultCredentialEnv variable from the process environment at
// startup, the same "org has no stored key, fall back to the deployment's
// own provider key" path spec §4.5 describes.
type EnvCredentials struct {
	byProvider map[string]string
}

// NewEnvCredentials snapshots os.Getenv(p.DefaultCredentialEnv) for every
// provider in the catalog.
func NewEnvCredentials(providers []catalog.Provider) *EnvCredentials {
	m := make(map[string]string, len(providers))
	for _, p := range providers {
		if p.DefaultCredentialEnv == "" {
			continue
		}
		if v := os.Getenv(p.DefaultCredentialEnv); v != "" {
			m[p.ID] = v
		}
	}
	return &EnvCredentials{byProvider: m}
}

// Lookup returns the deployment-wide default credential for providerID.
func (e *EnvCredentials) Lookup(providerID string) (string, bool) {
	v, ok := e.byProvider[providerID]
	return v, ok
}
