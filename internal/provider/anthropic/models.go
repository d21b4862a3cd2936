package anthropic

import "github.com/vnmchuo/llm-relay/internal/catalog"

// Prices are USD per million tokens; see https://www.anthropic.com/pricing#api
var models = []catalog.Model{
	{
		ID:              "claude-opus-4-20250514",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 32_000,
		Pricing:         catalog.FlatTokenPricing{Input: 15.00, Output: 75.00, CacheWrite: 18.75, CachedInput: 1.50},
	},
	{
		ID:              "claude-sonnet-4-20250514",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 64_000,
		Pricing:         catalog.FlatTokenPricing{Input: 3.00, Output: 15.00, CacheWrite: 3.75, CachedInput: 0.30},
	},
	{
		ID:              "claude-3-7-sonnet-20250219",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 64_000,
		Pricing:         catalog.FlatTokenPricing{Input: 3.00, Output: 15.00, CacheWrite: 3.75, CachedInput: 0.30},
	},
	{
		ID:              "claude-3-5-sonnet-20241022",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 8_192,
		Pricing:         catalog.FlatTokenPricing{Input: 3.00, Output: 15.00, CacheWrite: 3.75, CachedInput: 0.30},
	},
	{
		ID:              "claude-3-5-haiku-20241022",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 8_192,
		Pricing:         catalog.FlatTokenPricing{Input: 0.80, Output: 4.00, CacheWrite: 1.00, CachedInput: 0.08},
	},
	{
		ID:              "claude-3-opus-20240229",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 4_096,
		Pricing:         catalog.FlatTokenPricing{Input: 15.00, Output: 75.00, CacheWrite: 18.75, CachedInput: 1.50},
	},
	{
		ID:              "claude-3-haiku-20240307",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 4_096,
		Pricing:         catalog.FlatTokenPricing{Input: 0.25, Output: 1.25, CacheWrite: 0.30, CachedInput: 0.03},
	},
}
