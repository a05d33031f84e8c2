package router

import (
	"testing"
	"time"

	"github.com/llmgateway/gateway/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]catalog.Provider{
			{ID: "openai", Family: catalog.FamilyOpenAI},
			{ID: "anthropic", Family: catalog.FamilyAnthropic},
			{ID: "xai", Family: catalog.FamilyOpenAI},
		},
		[]catalog.Model{
			{
				ID: "gpt-4o-mini", JSONOutput: true,
				Mappings: []catalog.ProviderMapping{{
					ProviderID: "openai", ProviderModelName: "gpt-4o-mini",
					InputPrice: 1, OutputPrice: 1, MaxOutput: 100, Streaming: true,
				}},
			},
			{
				ID: "claude-opus-4",
				Mappings: []catalog.ProviderMapping{{
					ProviderID: "anthropic", ProviderModelName: "claude-opus-4-20250514",
					InputPrice: 10, OutputPrice: 10, Streaming: true, Reasoning: true,
				}},
			},
			{
				ID: "grok-2", JSONOutput: false,
				Mappings: []catalog.ProviderMapping{{
					ProviderID: "xai", ProviderModelName: "grok-2-latest",
					InputPrice: 2, OutputPrice: 2, Streaming: true,
				}},
			},
			{
				ID: "multi",
				Mappings: []catalog.ProviderMapping{
					{ProviderID: "openai", ProviderModelName: "multi-openai", InputPrice: 5, OutputPrice: 5},
					{ProviderID: "anthropic", ProviderModelName: "multi-anthropic", InputPrice: 1, OutputPrice: 1},
				},
			},
		},
	)
}

type fakeAvail struct {
	stored map[string]bool
	env    map[string]bool
	custom map[string]bool
}

func (f fakeAvail) HasStoredKey(p string) bool      { return f.stored[p] }
func (f fakeAvail) HasEnvCredential(p string) bool  { return f.env[p] }
func (f fakeAvail) HasCustomProvider(n string) bool { return f.custom[n] }

func TestResolveUnknownModel(t *testing.T) {
	r := New(testCatalog())
	_, err := r.Resolve("mythical-1", ModeCredits, fakeAvail{}, nil, RequestParams{}, time.Now())
	var e *Error
	if err == nil {
		t.Fatal("expected error")
	}
	if !castErr(err, &e) || e.Kind != KindUnsupportedModel {
		t.Fatalf("got %v", err)
	}
}

func TestResolveProviderPrefix(t *testing.T) {
	r := New(testCatalog())
	route, err := r.Resolve("anthropic/claude-opus-4-20250514", ModeCredits, fakeAvail{}, nil, RequestParams{}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if route.ProviderID != "anthropic" || route.ProviderModelName != "claude-opus-4-20250514" {
		t.Fatalf("got %+v", route)
	}
}

func TestResolveAutoCreditsOnlyOpenAI(t *testing.T) {
	r := New(testCatalog())
	avail := fakeAvail{env: map[string]bool{"openai": true}}
	route, err := r.Resolve("auto", ModeCredits, avail, nil, RequestParams{}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if route.ProviderID != "openai" {
		t.Fatalf("got %+v", route)
	}
}

func TestResolveAutoNoAvailableProviderIsStrict(t *testing.T) {
	r := New(testCatalog())
	_, err := r.Resolve("auto", ModeCredits, fakeAvail{}, nil, RequestParams{}, time.Now())
	var e *Error
	if !castErr(err, &e) || e.Kind != KindNoAvailableProvider {
		t.Fatalf("expected NoAvailableProvider (stricter than the source's unconditional fallback), got %v", err)
	}
}

func TestResolveJSONOutputGate(t *testing.T) {
	r := New(testCatalog())
	avail := fakeAvail{env: map[string]bool{"xai": true}}
	_, err := r.Resolve("xai/grok-2-latest", ModeCredits, avail, nil, RequestParams{ResponseFormatJSON: true}, time.Now())
	var e *Error
	if !castErr(err, &e) || e.Kind != KindJSONOutputUnsupported {
		t.Fatalf("got %v", err)
	}
}

func TestResolveMaxTokensGate(t *testing.T) {
	r := New(testCatalog())
	avail := fakeAvail{env: map[string]bool{"openai": true}}
	_, err := r.Resolve("gpt-4o-mini", ModeCredits, avail, nil, RequestParams{MaxTokens: 101}, time.Now())
	var e *Error
	if !castErr(err, &e) || e.Kind != KindMaxTokensExceedsMaxOutput {
		t.Fatalf("got %v", err)
	}
	// boundary: == maxOutput is allowed
	if _, err := r.Resolve("gpt-4o-mini", ModeCredits, avail, nil, RequestParams{MaxTokens: 100}, time.Now()); err != nil {
		t.Fatalf("max_tokens == maxOutput should be allowed: %v", err)
	}
}

func TestResolveCheapestMappingTiebreak(t *testing.T) {
	r := New(testCatalog())
	avail := fakeAvail{env: map[string]bool{"openai": true, "anthropic": true}}
	route, err := r.Resolve("multi", ModeCredits, avail, nil, RequestParams{}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if route.ProviderID != "anthropic" {
		t.Fatalf("expected cheaper anthropic mapping, got %+v", route)
	}
}

func TestResolveProviderSpecificNameRequiresPrefix(t *testing.T) {
	r := New(testCatalog())
	_, err := r.Resolve("claude-opus-4-20250514", ModeCredits, fakeAvail{}, nil, RequestParams{}, time.Now())
	var e *Error
	if !castErr(err, &e) || e.Kind != KindModelProviderPrefixRequired {
		t.Fatalf("got %v", err)
	}
}

func TestResolveModelDeactivatedGate(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	cat := catalog.New(
		[]catalog.Provider{{ID: "openai", Family: catalog.FamilyOpenAI}},
		[]catalog.Model{{
			ID: "old", DeactivatedAt: &past,
			Mappings: []catalog.ProviderMapping{{ProviderID: "openai", ProviderModelName: "old-model"}},
		}},
	)
	r := New(cat)
	avail := fakeAvail{env: map[string]bool{"openai": true}}
	_, err := r.Resolve("old", ModeCredits, avail, nil, RequestParams{}, time.Now())
	var e *Error
	if !castErr(err, &e) || e.Kind != KindModelDeactivated {
		t.Fatalf("got %v", err)
	}
}

func castErr(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}
	return ok
}
