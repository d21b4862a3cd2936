package openai

import "github.com/vnmchuo/llm-relay/internal/catalog"

var dallE3 = catalog.PerImagePricing{ByQualityAndSize: map[string]map[string]float64{
	"standard": {"1024x1024": 0.040, "1024x1792": 0.080, "1792x1024": 0.080},
	"hd":       {"1024x1024": 0.080, "1024x1792": 0.120, "1792x1024": 0.120},
}}

var dallE2 = catalog.PerImagePricing{ByQualityAndSize: map[string]map[string]float64{
	"standard": {"256x256": 0.016, "512x512": 0.018, "1024x1024": 0.020},
}}

// Prices are USD per million tokens; see https://openai.com/api/pricing/
var models = []catalog.Model{
	{
		ID:              "gpt-4o",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 16_384,
		Pricing:         catalog.FlatTokenPricing{Input: 2.50, CachedInput: 1.25, Output: 10.00},
	},
	{
		ID:              "gpt-4o-mini",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 16_384,
		Pricing:         catalog.FlatTokenPricing{Input: 0.15, CachedInput: 0.075, Output: 0.60},
	},
	{
		ID:              "gpt-4.1",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 32_768,
		Pricing:         catalog.FlatTokenPricing{Input: 2.00, CachedInput: 0.50, Output: 8.00},
	},
	{
		ID:              "gpt-4.1-mini",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 32_768,
		Pricing:         catalog.FlatTokenPricing{Input: 0.40, CachedInput: 0.10, Output: 1.60},
	},
	{
		ID:              "gpt-4.1-nano",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 32_768,
		Pricing:         catalog.FlatTokenPricing{Input: 0.10, CachedInput: 0.025, Output: 0.40},
	},
	{
		ID:                       "o1",
		Modalities:               catalog.Text,
		TokenDivisor:             catalog.PerMillion,
		MaxOutputTokens:          100_000,
		UsesCompletionTokenField: true,
		Pricing:                  catalog.FlatTokenPricing{Input: 15.00, CachedInput: 7.50, Output: 60.00},
	},
	{
		ID:                       "o1-mini",
		Modalities:               catalog.Text,
		TokenDivisor:             catalog.PerMillion,
		MaxOutputTokens:          65_536,
		UsesCompletionTokenField: true,
		NoSystemRole:             true,
		Pricing:                  catalog.FlatTokenPricing{Input: 1.10, CachedInput: 0.55, Output: 4.40},
	},
	{
		ID:                       "o3-mini",
		Modalities:               catalog.Text,
		TokenDivisor:             catalog.PerMillion,
		MaxOutputTokens:          100_000,
		UsesCompletionTokenField: true,
		Pricing:                  catalog.FlatTokenPricing{Input: 1.10, CachedInput: 0.55, Output: 4.40},
	},
	{
		ID:              "gpt-4-turbo",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 4_096,
		Pricing:         catalog.FlatTokenPricing{Input: 10.00, Output: 30.00},
	},
	{
		ID:              "gpt-3.5-turbo",
		Modalities:      catalog.Text,
		TokenDivisor:    catalog.PerMillion,
		MaxOutputTokens: 4_096,
		Pricing:         catalog.FlatTokenPricing{Input: 0.50, Output: 1.50},
	},
	{
		ID:           "dall-e-3",
		Modalities:   catalog.Image,
		TokenDivisor: 1,
		Pricing:      dallE3,
	},
	{
		ID:           "dall-e-2",
		Modalities:   catalog.Image,
		TokenDivisor: 1,
		Pricing:      dallE2,
	},
}
