package gemini

import "github.com/vnmchuo/llm-relay/internal/catalog"

// Prices are USD per million tokens, tiered by token count;
// see https://ai.google.dev/gemini-api/docs/pricing
var models = []catalog.Model{
	{
		ID:              "gemini-2.5-pro",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 65_536,
		Pricing: catalog.TieredTokenPricing{
			Prompt:     []catalog.Tier{{MaxTokens: 200_000, Price: 1.25}, {Price: 2.50}},
			Candidates: []catalog.Tier{{MaxTokens: 200_000, Price: 10.00}, {Price: 15.00}},
			Cache:      []catalog.Tier{{MaxTokens: 200_000, Price: 0.31}, {Price: 0.625}},
		},
	},
	{
		ID:              "gemini-2.5-flash",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 65_536,
		Pricing: catalog.TieredTokenPricing{
			Prompt:     []catalog.Tier{{Price: 0.30}},
			Candidates: []catalog.Tier{{Price: 2.50}},
			Cache:      []catalog.Tier{{Price: 0.075}},
		},
	},
	{
		ID:              "gemini-2.0-flash",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 8_192,
		Pricing: catalog.TieredTokenPricing{
			Prompt:     []catalog.Tier{{Price: 0.10}},
			Candidates: []catalog.Tier{{Price: 0.40}},
			Cache:      []catalog.Tier{{Price: 0.025}},
		},
	},
	{
		ID:              "gemini-2.0-flash-lite",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 8_192,
		Pricing: catalog.TieredTokenPricing{
			Prompt:     []catalog.Tier{{Price: 0.075}},
			Candidates: []catalog.Tier{{Price: 0.30}},
		},
	},
	{
		ID:              "gemini-1.5-pro",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 8_192,
		Pricing: catalog.TieredTokenPricing{
			Prompt:     []catalog.Tier{{MaxTokens: 128_000, Price: 1.25}, {Price: 2.50}},
			Candidates: []catalog.Tier{{MaxTokens: 128_000, Price: 5.00}, {Price: 10.00}},
			Cache:      []catalog.Tier{{MaxTokens: 128_000, Price: 0.3125}, {Price: 0.625}},
		},
	},
	{
		ID:              "gemini-1.5-flash",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 8_192,
		Pricing: catalog.TieredTokenPricing{
			Prompt:     []catalog.Tier{{MaxTokens: 128_000, Price: 0.075}, {Price: 0.15}},
			Candidates: []catalog.Tier{{MaxTokens: 128_000, Price: 0.30}, {Price: 0.60}},
			Cache:      []catalog.Tier{{MaxTokens: 128_000, Price: 0.01875}, {Price: 0.0375}},
		},
	},
	{
		ID:           "imagen-3.0-generate-002",
		Modalities:   catalog.Image,
		TokenDivisor: 1,
		Pricing:      catalog.FlatImagePricing{Price: 0.03},
	},
}
