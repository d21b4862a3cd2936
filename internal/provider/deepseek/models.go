package deepseek

import "github.com/vnmchuo/llm-relay/internal/catalog"

// See https://api-docs.deepseek.com/quick_start/pricing
var models = []catalog.Model{
	{
		ID:              "deepseek-chat",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 8_192,
		Pricing:         catalog.FlatTokenPricing{Input: 0.27, CachedInput: 0.07, Output: 1.10},
	},
	{
		ID:              "deepseek-reasoner",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 65_536,
		Pricing:         catalog.FlatTokenPricing{Input: 0.55, CachedInput: 0.14, Output: 2.19},
	},
}
