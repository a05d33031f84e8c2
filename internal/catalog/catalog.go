// Package catalog holds the static, read-only table of providers and models
// that the router, translator, and cost calculator consult. It is built once
// at startup and never mutated afterward — all lookups are safe for
// concurrent use without locking.
package catalog

import (
	"strings"
	"time"
)

// Family identifies the wire-protocol dialect a provider speaks.
type Family string

const (
	FamilyOpenAI    Family = "openai"
	FamilyAnthropic Family = "anthropic"
	FamilyGoogle    Family = "google"
	FamilyMistral   Family = "mistral"
)

// AuthScheme identifies how a credential is attached to an upstream request.
type AuthScheme string

const (
	AuthBearer     AuthScheme = "bearer"
	AuthHeader     AuthScheme = "header" // e.g. Anthropic's x-api-key
	AuthQueryParam AuthScheme = "query"  // e.g. Google AI Studio's ?key=
)

// Provider describes a single upstream LLM vendor.
type Provider struct {
	ID                   string
	Name                 string
	Endpoint             string // request URL template; may contain {model}
	StreamEndpoint       string // optional, defaults to Endpoint when empty
	AuthScheme           AuthScheme
	AuthHeaderName       string // used when AuthScheme == AuthHeader
	Family               Family
	CancellationSafe     bool // upstream tolerates an aborted in-flight request
	DefaultCredentialEnv string
}

// PriceTier is a context-size-range-scoped price override.
type PriceTier struct {
	MinContextSize int
	MaxContextSize int // inclusive; 0 means unbounded
	InputPrice     float64
	OutputPrice    float64
	CachedPrice    float64
}

// ProviderMapping binds a canonical Model to one upstream provider's native
// name and pricing/capability metadata.
type ProviderMapping struct {
	ProviderID        string
	ProviderModelName string

	InputPrice   float64 // USD per token, flat
	OutputPrice  float64
	CachedPrice  float64
	ImagePrice   float64
	RequestPrice float64
	Tiers        []PriceTier // optional, consulted before the flat prices

	ContextSize int
	MaxOutput   int

	Streaming bool
	Vision    bool
	Reasoning bool
}

// Model is a canonical, provider-agnostic model identity.
type Model struct {
	ID             string
	JSONOutput     bool
	DeprecatedAt   *time.Time
	DeactivatedAt  *time.Time
	Mappings       []ProviderMapping
}

// Catalog is the read-only in-memory table described by spec §4.1.
type Catalog struct {
	providers     map[string]Provider
	providerOrder []string // declared order
	models        map[string]Model
	modelList     []string // declared order, for "auto" iteration (rule 1)

	// byProviderModelName maps "providerID/providerModelName" -> model id,
	// for lookupModelByProviderModelName.
	byProviderModelName map[string]string
}

// New builds a Catalog from declared providers and models. Both inputs are
// copied; mutating the slices afterward has no effect on the Catalog.
func New(providers []Provider, models []Model) *Catalog {
	c := &Catalog{
		providers:            make(map[string]Provider, len(providers)),
		providerOrder:        make([]string, 0, len(providers)),
		models:                make(map[string]Model, len(models)),
		modelList:             make([]string, 0, len(models)),
		byProviderModelName:   make(map[string]string),
	}
	for _, p := range providers {
		c.providers[p.ID] = p
		c.providerOrder = append(c.providerOrder, p.ID)
	}
	for _, m := range models {
		c.models[m.ID] = m
		c.modelList = append(c.modelList, m.ID)
		for _, mp := range m.Mappings {
			key := mp.ProviderID + "/" + mp.ProviderModelName
			c.byProviderModelName[key] = m.ID
		}
	}
	return c
}

// LookupModel returns the model with the given canonical id.
func (c *Catalog) LookupModel(id string) (Model, bool) {
	m, ok := c.models[id]
	return m, ok
}

// LookupModelByProviderModelName resolves a (providerID, providerModelName)
// pair back to its canonical model id — used when a router-rule-3 prefix
// match needs to validate that the catalog actually lists the mapping.
func (c *Catalog) LookupModelByProviderModelName(providerID, name string) (Model, bool) {
	id, ok := c.byProviderModelName[providerID+"/"+name]
	if !ok {
		return Model{}, false
	}
	return c.LookupModel(id)
}

// FindProvider returns the provider with the given id.
func (c *Catalog) FindProvider(id string) (Provider, bool) {
	p, ok := c.providers[id]
	return p, ok
}

// ModelIDs returns model ids in declared order (used by "auto" routing).
func (c *Catalog) ModelIDs() []string {
	out := make([]string, len(c.modelList))
	copy(out, c.modelList)
	return out
}

// ProviderIDs returns provider ids in declared order — used to seed a
// CircuitBreaker with one entry per known provider up front.
func (c *Catalog) ProviderIDs() []string {
	out := make([]string, len(c.providerOrder))
	copy(out, c.providerOrder)
	return out
}

// MappingFor returns the ProviderMapping of model for providerID, if any.
func (c *Catalog) MappingFor(modelID, providerID string) (ProviderMapping, bool) {
	m, ok := c.models[modelID]
	if !ok {
		return ProviderMapping{}, false
	}
	for _, mp := range m.Mappings {
		if mp.ProviderID == providerID {
			return mp, true
		}
	}
	return ProviderMapping{}, false
}

// StreamingSupported reports whether (modelID, providerID) supports streaming.
func (c *Catalog) StreamingSupported(modelID, providerID string) bool {
	mp, ok := c.MappingFor(modelID, providerID)
	return ok && mp.Streaming
}

// ReasoningSupported reports whether any mapping of modelID supports
// reasoning effort.
func (c *Catalog) ReasoningSupported(modelID string) bool {
	m, ok := c.models[modelID]
	if !ok {
		return false
	}
	for _, mp := range m.Mappings {
		if mp.Reasoning {
			return true
		}
	}
	return false
}

// JSONOutputSupported reports whether modelID supports response_format=json_object.
func (c *Catalog) JSONOutputSupported(modelID string) bool {
	m, ok := c.models[modelID]
	return ok && m.JSONOutput
}

// IsDeactivated reports whether modelID's deactivation timestamp has passed.
func (c *Catalog) IsDeactivated(modelID string, now time.Time) bool {
	m, ok := c.models[modelID]
	if !ok || m.DeactivatedAt == nil {
		return false
	}
	return !now.Before(*m.DeactivatedAt)
}

// IsDeprecated reports whether modelID's deprecation timestamp has passed.
func (c *Catalog) IsDeprecated(modelID string, now time.Time) bool {
	m, ok := c.models[modelID]
	if !ok || m.DeprecatedAt == nil {
		return false
	}
	return !now.Before(*m.DeprecatedAt)
}

// PriceFor returns the pricing to apply for (modelID, providerID) given the
// prompt token count, tie-breaking tiered prices by the range containing
// contextSize and falling back to the mapping's flat prices.
func (c *Catalog) PriceFor(modelID, providerID string, contextSize int) (PriceTier, bool) {
	mp, ok := c.MappingFor(modelID, providerID)
	if !ok {
		return PriceTier{}, false
	}
	for _, t := range mp.Tiers {
		if contextSize < t.MinContextSize {
			continue
		}
		if t.MaxContextSize > 0 && contextSize > t.MaxContextSize {
			continue
		}
		return t, true
	}
	return PriceTier{
		MinContextSize: 0,
		MaxContextSize: 0,
		InputPrice:     mp.InputPrice,
		OutputPrice:    mp.OutputPrice,
		CachedPrice:    mp.CachedPrice,
	}, true
}

// ProviderFamily is a convenience lookup used by the translator/normalizer.
func (c *Catalog) ProviderFamily(providerID string) (Family, bool) {
	p, ok := c.providers[providerID]
	if !ok {
		return "", false
	}
	return p.Family, true
}

// SplitProviderPrefix splits a router input of the form "provider/model"
// on the first slash, as required by router rule 3. ok is false when there
// is no slash.
func SplitProviderPrefix(modelString string) (prefix, rest string, ok bool) {
	i := strings.IndexByte(modelString, '/')
	if i < 0 {
		return "", "", false
	}
	return modelString[:i], modelString[i+1:], true
}
