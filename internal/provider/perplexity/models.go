package perplexity

import "github.com/vnmchuo/llm-relay/internal/catalog"

// perRequest is the low search-context fee charged on every sonar call.
const perRequest = 0.005

func text(id string, pricing catalog.ReasoningTokenPricing) catalog.Model {
	return catalog.Model{
		ID:           id,
		Modalities:   catalog.Text,
		TokenDivisor: catalog.PerMillion,
		Pricing:      pricing,
	}
}

// See https://docs.perplexity.ai/guides/pricing
var models = []catalog.Model{
	text("sonar", catalog.ReasoningTokenPricing{Input: 1.0, Output: 1.0, PerRequest: perRequest}),
	text("sonar-pro", catalog.ReasoningTokenPricing{Input: 3.0, Output: 15.0, PerRequest: perRequest}),
	text("sonar-deep-research", catalog.ReasoningTokenPricing{Input: 2.0, Output: 8.0, Reasoning: 3.0, PerRequest: perRequest}),
	text("sonar-reasoning", catalog.ReasoningTokenPricing{Input: 1.0, Output: 5.0, PerRequest: perRequest}),
	text("sonar-reasoning-pro", catalog.ReasoningTokenPricing{Input: 2.0, Output: 8.0, PerRequest: perRequest}),
	text("r1-1776", catalog.ReasoningTokenPricing{Input: 2.0, Output: 8.0}),
}
