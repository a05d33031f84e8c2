// Package router implements the router (spec §4.6): mapping a requested
// model string + project billing mode + available credentials to a
// concrete (provider, model, endpoint, token) tuple, and the capability
// gates applied after resolution.
package router

import (
	"fmt"
	"time"

	"github.com/llmgateway/gateway/internal/catalog"
)

// Kind enumerates the router/gate failure kinds from spec §7 this package
// can produce.
type Kind string

const (
	KindUnsupportedModel           Kind = "UnsupportedModel"
	KindModelProviderPrefixRequired Kind = "ModelProviderPrefixRequired"
	KindProviderUnsupported        Kind = "ProviderUnsupported"
	KindCustomProviderNotFound      Kind = "CustomProviderNotFound"
	KindModelDeactivated           Kind = "ModelDeactivated"
	KindJSONOutputUnsupported      Kind = "JsonOutputUnsupported"
	KindReasoningUnsupported       Kind = "ReasoningUnsupported"
	KindStreamingUnsupported       Kind = "StreamingUnsupported"
	KindMaxTokensExceedsMaxOutput  Kind = "MaxTokensExceedsMaxOutput"
	KindNoAvailableProvider        Kind = "NoAvailableProvider"
)

// Error carries a router failure kind plus a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// BillingMode mirrors credentials.BillingMode without importing that
// package, to keep router decoupled from the credential store shape.
type BillingMode string

const (
	ModeAPIKeys BillingMode = "api-keys"
	ModeCredits BillingMode = "credits"
	ModeHybrid  BillingMode = "hybrid"
)

// AvailableProviders reports, per spec §4.6, which providers a project may
// use under its billing mode. The handler builds this from the credential
// store (stored keys) and the env-credential set before calling Resolve.
type AvailableProviders interface {
	// HasStoredKey reports whether the org has an active stored key for
	// providerID (used in api-keys and hybrid modes).
	HasStoredKey(providerID string) bool
	// HasEnvCredential reports whether providerID has an env-configured
	// default credential (used in credits and hybrid modes).
	HasEnvCredential(providerID string) bool
	// HasCustomProvider reports whether a named custom-provider definition
	// exists for the org.
	HasCustomProvider(name string) bool
}

// BreakerGate lets the router skip a provider whose circuit breaker is
// open when tie-breaking rule 4's cheapest-mapping choice (supplemental
// wiring of the teacher's circuit breaker, see SPEC_FULL.md).
type BreakerGate interface {
	Allow(providerID string) bool
}

// Route is the resolved output of Resolve: the provider and its model name,
// or a named custom provider. The bearer token is resolved later by
// credentials.Resolver. Resolve leaves Endpoint and StreamEndpoint empty;
// the dispatcher reads endpoints from the catalog.
type Route struct {
	ProviderID         string
	ProviderModelName  string
	Endpoint           string
	StreamEndpoint     string
	IsCustomProvider   bool
	CustomProviderName string
}

// RequestParams is the subset of the incoming chat request the gates in
// Resolve need to check.
type RequestParams struct {
	ResponseFormatJSON bool
	ReasoningEffort    string
	Stream             bool
	MaxTokens          int
}

const fallbackModel = "gpt-4o-mini"
const fallbackProvider = "openai"

// Router resolves router input per spec §4.6.
type Router struct {
	cat *catalog.Catalog
}

// New builds a Router backed by cat.
func New(cat *catalog.Catalog) *Router {
	return &Router{cat: cat}
}

// Resolve implements router rules 1-6 plus the post-resolution gates.
// breaker may be nil, in which case no provider is skipped for an open
// circuit.
func (rt *Router) Resolve(modelString string, mode BillingMode, avail AvailableProviders, breaker BreakerGate, params RequestParams, now time.Time) (Route, error) {
	route, err := rt.resolveRoute(modelString, mode, avail, breaker, now)
	if err != nil {
		return Route{}, err
	}
	if err := rt.applyGates(route, params, now); err != nil {
		return Route{}, err
	}
	return route, nil
}

func (rt *Router) resolveRoute(modelString string, mode BillingMode, avail AvailableProviders, breaker BreakerGate, now time.Time) (Route, error) {
	switch {
	case modelString == "auto":
		return rt.resolveAuto(avail, breaker, now)

	case modelString == "custom":
		return Route{ProviderID: "llmgateway", IsCustomProvider: true}, nil

	default:
		if prefix, rest, ok := catalog.SplitProviderPrefix(modelString); ok {
			return rt.resolvePrefixed(prefix, rest, avail)
		}
		return rt.resolveBareModel(modelString, avail, breaker)
	}
}

func (rt *Router) resolveAuto(avail AvailableProviders, breaker BreakerGate, now time.Time) (Route, error) {
	for _, modelID := range rt.cat.ModelIDs() {
		m, ok := rt.cat.LookupModel(modelID)
		if !ok || rt.cat.IsDeprecated(modelID, now) {
			continue
		}
		for _, mp := range m.Mappings {
			if !providerAvailable(mp.ProviderID, avail) {
				continue
			}
			if breaker != nil && !breaker.Allow(mp.ProviderID) {
				continue
			}
			return Route{ProviderID: mp.ProviderID, ProviderModelName: mp.ProviderModelName}, nil
		}
	}
	// Per Design Notes' "Open question": the source unconditionally falls
	// back to (openai, gpt-4o-mini) regardless of credential availability.
	// This spec adopts the stricter behavior: fail instead of returning an
	// unusable route.
	if providerAvailable(fallbackProvider, avail) {
		if mp, ok := rt.cat.MappingFor(fallbackModel, fallbackProvider); ok {
			return Route{ProviderID: fallbackProvider, ProviderModelName: mp.ProviderModelName}, nil
		}
	}
	return Route{}, &Error{Kind: KindNoAvailableProvider, Message: "auto: no available provider for any cataloged model"}
}

func (rt *Router) resolvePrefixed(prefix, rest string, avail AvailableProviders) (Route, error) {
	if p, ok := rt.cat.FindProvider(prefix); ok {
		if _, ok := rt.cat.LookupModelByProviderModelName(prefix, rest); !ok {
			return Route{}, &Error{Kind: KindUnsupportedModel,
				Message: fmt.Sprintf("model %q is not supported for provider %q", rest, prefix)}
		}
		_ = p
		return Route{ProviderID: prefix, ProviderModelName: rest}, nil
	}
	// Unknown prefix: treat as a custom-provider name.
	if !avail.HasCustomProvider(prefix) {
		return Route{}, &Error{Kind: KindCustomProviderNotFound,
			Message: fmt.Sprintf("no custom provider definition named %q", prefix)}
	}
	return Route{ProviderID: "llmgateway", IsCustomProvider: true, CustomProviderName: prefix, ProviderModelName: rest}, nil
}

func (rt *Router) resolveBareModel(modelString string, avail AvailableProviders, breaker BreakerGate) (Route, error) {
	m, ok := rt.cat.LookupModel(modelString)
	if !ok {
		if isProviderSpecificName(rt.cat, modelString) {
			return Route{}, &Error{Kind: KindModelProviderPrefixRequired,
				Message: fmt.Sprintf("%q matches a provider-specific model name; use the provider/model form", modelString)}
		}
		return Route{}, &Error{Kind: KindUnsupportedModel, Message: fmt.Sprintf("model %q is not supported", modelString)}
	}

	if len(m.Mappings) == 1 {
		return Route{ProviderID: m.Mappings[0].ProviderID, ProviderModelName: m.Mappings[0].ProviderModelName}, nil
	}

	var best *catalog.ProviderMapping
	var bestDegraded *catalog.ProviderMapping
	for i := range m.Mappings {
		mp := &m.Mappings[i]
		if !providerAvailable(mp.ProviderID, avail) {
			continue
		}
		if breaker != nil && !breaker.Allow(mp.ProviderID) {
			if bestDegraded == nil || cheaper(*mp, *bestDegraded) {
				bestDegraded = mp
			}
			continue
		}
		if best == nil || cheaper(*mp, *best) {
			best = mp
		}
	}
	if best == nil {
		best = bestDegraded // all candidates' breakers open: still attempt, degraded preference only
	}
	if best == nil {
		return Route{}, &Error{Kind: KindNoAvailableProvider,
			Message: fmt.Sprintf("no available provider for model %q", modelString)}
	}
	return Route{ProviderID: best.ProviderID, ProviderModelName: best.ProviderModelName}, nil
}

func cheaper(a, b catalog.ProviderMapping) bool {
	return (a.InputPrice + a.OutputPrice) < (b.InputPrice + b.OutputPrice)
}

func providerAvailable(providerID string, avail AvailableProviders) bool {
	return avail.HasStoredKey(providerID) || avail.HasEnvCredential(providerID)
}

// isProviderSpecificName reports whether modelString matches some mapping's
// ProviderModelName but is not itself a canonical model id (router rule 5).
func isProviderSpecificName(cat *catalog.Catalog, modelString string) bool {
	for _, id := range cat.ModelIDs() {
		m, _ := cat.LookupModel(id)
		for _, mp := range m.Mappings {
			if mp.ProviderModelName == modelString {
				return true
			}
		}
	}
	return false
}

func (rt *Router) applyGates(route Route, params RequestParams, now time.Time) error {
	if route.IsCustomProvider {
		return nil // capability gates don't apply to opaque custom endpoints
	}

	modelID, ok := rt.modelIDFor(route)
	if !ok {
		return nil
	}

	if rt.cat.IsDeactivated(modelID, now) {
		return &Error{Kind: KindModelDeactivated, Message: fmt.Sprintf("model %q is deactivated", modelID)}
	}
	if params.ResponseFormatJSON && !rt.cat.JSONOutputSupported(modelID) {
		return &Error{Kind: KindJSONOutputUnsupported, Message: fmt.Sprintf("model %q does not support json_object response format", modelID)}
	}
	if params.ReasoningEffort != "" && !rt.cat.ReasoningSupported(modelID) {
		return &Error{Kind: KindReasoningUnsupported, Message: fmt.Sprintf("model %q does not support reasoning_effort", modelID)}
	}
	if params.Stream && !rt.cat.StreamingSupported(modelID, route.ProviderID) {
		return &Error{Kind: KindStreamingUnsupported, Message: fmt.Sprintf("model %q on provider %q does not support streaming", modelID, route.ProviderID)}
	}
	if mp, ok := rt.cat.MappingFor(modelID, route.ProviderID); ok && mp.MaxOutput > 0 && params.MaxTokens > mp.MaxOutput {
		return &Error{Kind: KindMaxTokensExceedsMaxOutput,
			Message: fmt.Sprintf("max_tokens %d exceeds model %q's max output %d", params.MaxTokens, modelID, mp.MaxOutput)}
	}
	return nil
}

func (rt *Router) modelIDFor(route Route) (string, bool) {
	m, ok := rt.cat.LookupModelByProviderModelName(route.ProviderID, route.ProviderModelName)
	if !ok {
		return "", false
	}
	return m.ID, true
}
