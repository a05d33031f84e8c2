// Package costcalc computes per-request billing amounts from token counts
// and catalog pricing. All money math is done with shopspring/decimal to
// avoid floating-point drift in per-token unit prices multiplied by large
// token counts.
package costcalc

import (
	"github.com/shopspring/decimal"

	"github.com/llmgateway/gateway/internal/catalog"
)

// Input is the (model, provider, token counts) tuple described by spec §4.2.
type Input struct {
	ModelID      string
	ProviderID   string
	PromptTokens int
	OutputTokens int
	CachedTokens int

	// Estimated is true when any of the token counts above were imputed by
	// the tokenizer adapter rather than reported by the upstream provider.
	Estimated bool
}

// Result carries the computed cost buckets in USD.
type Result struct {
	InputCost       decimal.Decimal
	OutputCost      decimal.Decimal
	CachedInputCost decimal.Decimal
	RequestCost     decimal.Decimal
	TotalCost       decimal.Decimal
	EstimatedCost   bool
}

// Calculator computes costs against a Catalog's pricing tables.
type Calculator struct {
	cat *catalog.Catalog
}

// New builds a Calculator backed by cat.
func New(cat *catalog.Catalog) *Calculator {
	return &Calculator{cat: cat}
}

// Compute implements spec §4.2: cached tokens are subtracted from prompt
// tokens before the flat/tiered input price is applied, and the cached
// price is applied to the cached portion separately.
func (c *Calculator) Compute(in Input) Result {
	mp, ok := c.cat.MappingFor(in.ModelID, in.ProviderID)
	if !ok {
		return Result{EstimatedCost: in.Estimated}
	}

	tier, _ := c.cat.PriceFor(in.ModelID, in.ProviderID, in.PromptTokens)

	billablePrompt := in.PromptTokens - in.CachedTokens
	if billablePrompt < 0 {
		billablePrompt = 0
	}

	inputCost := decimal.NewFromInt(int64(billablePrompt)).Mul(decimal.NewFromFloat(tier.InputPrice))
	outputCost := decimal.NewFromInt(int64(in.OutputTokens)).Mul(decimal.NewFromFloat(tier.OutputPrice))

	cachedPrice := tier.CachedPrice
	cachedCost := decimal.NewFromInt(int64(in.CachedTokens)).Mul(decimal.NewFromFloat(cachedPrice))

	requestCost := decimal.NewFromFloat(mp.RequestPrice)

	total := inputCost.Add(outputCost).Add(cachedCost).Add(requestCost)

	return Result{
		InputCost:       inputCost,
		OutputCost:      outputCost,
		CachedInputCost: cachedCost,
		RequestCost:     requestCost,
		TotalCost:       total,
		EstimatedCost:   in.Estimated,
	}
}
