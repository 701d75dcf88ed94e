package governor

import "fmt"

// ModelPrice holds per-million-token USD pricing for one model id.
type ModelPrice struct {
	InputPerMillionUSD  float64
	OutputPerMillionUSD float64
}

// PricingTable maps model ids to prices. Unknown model ids fail closed:
// Cost returns an error and the governor rejects the call rather than
// assuming the model is free.
type PricingTable map[string]ModelPrice

// DefaultPricing returns the built-in pricing table. Operators can extend it
// from config; entries here track published list prices.
func DefaultPricing() PricingTable {
	return PricingTable{
		"anthropic.claude-3-5-sonnet-20241022-v2:0": {InputPerMillionUSD: 3.00, OutputPerMillionUSD: 15.00},
		"anthropic.claude-3-5-haiku-20241022-v1:0":  {InputPerMillionUSD: 0.80, OutputPerMillionUSD: 4.00},
		"anthropic.claude-3-haiku-20240307-v1:0":    {InputPerMillionUSD: 0.25, OutputPerMillionUSD: 1.25},
		"amazon.titan-text-express-v1":              {InputPerMillionUSD: 0.20, OutputPerMillionUSD: 0.60},
		"meta.llama3-70b-instruct-v1:0":             {InputPerMillionUSD: 2.65, OutputPerMillionUSD: 3.50},
	}
}

// Cost computes the USD cost for a call. Unknown model ids return an error.
func (t PricingTable) Cost(modelID string, inputTokens, outputTokens int) (float64, error) {
	price, ok := t[modelID]
	if !ok {
		return 0, fmt.Errorf("no pricing for model %q", modelID)
	}
	return float64(inputTokens)/1e6*price.InputPerMillionUSD +
		float64(outputTokens)/1e6*price.OutputPerMillionUSD, nil
}
