package costcalc

import (
	"testing"

	"github.com/llmgateway/gateway/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]catalog.Provider{{ID: "openai", Family: catalog.FamilyOpenAI}},
		[]catalog.Model{{
			ID: "gpt-4o-mini",
			Mappings: []catalog.ProviderMapping{{
				ProviderID: "openai", ProviderModelName: "gpt-4o-mini",
				InputPrice: 0.001, OutputPrice: 0.002, CachedPrice: 0.0001,
			}},
		}},
	)
}

func TestComputeSubtractsCachedFromPrompt(t *testing.T) {
	c := New(testCatalog())

	res := c.Compute(Input{
		ModelID: "gpt-4o-mini", ProviderID: "openai",
		PromptTokens: 1000, OutputTokens: 100, CachedTokens: 400,
	})

	// billable prompt = 1000 - 400 = 600
	wantInput := 600 * 0.001
	if got, _ := res.InputCost.Float64(); got != wantInput {
		t.Fatalf("input cost = %v, want %v", got, wantInput)
	}
	wantCached := 400 * 0.0001
	if got, _ := res.CachedInputCost.Float64(); got != wantCached {
		t.Fatalf("cached cost = %v, want %v", got, wantCached)
	}
	wantOutput := 100 * 0.002
	if got, _ := res.OutputCost.Float64(); got != wantOutput {
		t.Fatalf("output cost = %v, want %v", got, wantOutput)
	}
}

func TestComputeEstimatedFlag(t *testing.T) {
	c := New(testCatalog())
	res := c.Compute(Input{ModelID: "gpt-4o-mini", ProviderID: "openai", Estimated: true})
	if !res.EstimatedCost {
		t.Fatal("expected EstimatedCost to propagate")
	}
}

func TestComputeUnknownMapping(t *testing.T) {
	c := New(testCatalog())
	res := c.Compute(Input{ModelID: "nope", ProviderID: "openai"})
	if !res.TotalCost.IsZero() {
		t.Fatalf("expected zero cost for unknown mapping, got %v", res.TotalCost)
	}
}
