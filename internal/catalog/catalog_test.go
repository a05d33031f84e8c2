package catalog

import (
	"testing"
	"time"
)

func testCatalog() *Catalog {
	return New(
		[]Provider{
			{ID: "openai", Family: FamilyOpenAI, AuthScheme: AuthBearer},
			{ID: "anthropic", Family: FamilyAnthropic, AuthScheme: AuthHeader},
		},
		[]Model{
			{
				ID:         "gpt-4o-mini",
				JSONOutput: true,
				Mappings: []ProviderMapping{{
					ProviderID: "openai", ProviderModelName: "gpt-4o-mini",
					InputPrice: 1, OutputPrice: 2,
					Tiers: []PriceTier{
						{MinContextSize: 0, MaxContextSize: 1000, InputPrice: 0.5, OutputPrice: 1},
					},
					MaxOutput: 100, Streaming: true,
				}},
			},
			{
				ID: "claude-opus-4",
				Mappings: []ProviderMapping{{
					ProviderID: "anthropic", ProviderModelName: "claude-opus-4-20250514",
					InputPrice: 10, OutputPrice: 20, Reasoning: true,
				}},
			},
		},
	)
}

func TestLookupModelByProviderModelName(t *testing.T) {
	c := testCatalog()
	m, ok := c.LookupModelByProviderModelName("anthropic", "claude-opus-4-20250514")
	if !ok || m.ID != "claude-opus-4" {
		t.Fatalf("got %+v, %v", m, ok)
	}
	if _, ok := c.LookupModelByProviderModelName("anthropic", "unknown"); ok {
		t.Fatal("expected miss")
	}
}

func TestPriceForTierVsFlat(t *testing.T) {
	c := testCatalog()

	tier, ok := c.PriceFor("gpt-4o-mini", "openai", 500)
	if !ok || tier.InputPrice != 0.5 {
		t.Fatalf("expected tiered price, got %+v", tier)
	}

	flat, ok := c.PriceFor("gpt-4o-mini", "openai", 5000)
	if !ok || flat.InputPrice != 1 {
		t.Fatalf("expected flat fallback price, got %+v", flat)
	}
}

func TestIsDeactivated(t *testing.T) {
	c := testCatalog()
	if c.IsDeactivated("gpt-4o-mini", time.Now()) {
		t.Fatal("model has no deactivatedAt, should not be deactivated")
	}

	past := time.Now().Add(-time.Hour)
	deactivated := New(nil, []Model{{ID: "old", DeactivatedAt: &past}})
	if !deactivated.IsDeactivated("old", time.Now()) {
		t.Fatal("expected deactivated")
	}
}

func TestReasoningAndJSONSupport(t *testing.T) {
	c := testCatalog()
	if !c.ReasoningSupported("claude-opus-4") {
		t.Fatal("expected reasoning support")
	}
	if c.ReasoningSupported("gpt-4o-mini") {
		t.Fatal("expected no reasoning support")
	}
	if !c.JSONOutputSupported("gpt-4o-mini") {
		t.Fatal("expected json output support")
	}
}

func TestSplitProviderPrefix(t *testing.T) {
	prefix, rest, ok := SplitProviderPrefix("anthropic/claude-opus-4-0")
	if !ok || prefix != "anthropic" || rest != "claude-opus-4-0" {
		t.Fatalf("got %q %q %v", prefix, rest, ok)
	}
	if _, _, ok := SplitProviderPrefix("gpt-4o-mini"); ok {
		t.Fatal("expected no slash")
	}
	// Rejoin-on-first-slash semantics: only the first "/" splits.
	prefix, rest, ok = SplitProviderPrefix("together/meta-llama/Llama-3.3-70B")
	if !ok || prefix != "together" || rest != "meta-llama/Llama-3.3-70B" {
		t.Fatalf("got %q %q %v", prefix, rest, ok)
	}
}
