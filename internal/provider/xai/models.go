package xai

import "github.com/vnmchuo/llm-relay/internal/catalog"

func text(id string, pricing catalog.FlatTokenPricing) catalog.Model {
	return catalog.Model{
		ID:           id,
		Modalities:   catalog.Text,
		TokenDivisor: catalog.PerMillion,
		Pricing:      pricing,
	}
}

// See https://docs.x.ai/docs/models
var models = []catalog.Model{
	text("grok-4", catalog.FlatTokenPricing{Input: 5.00, Output: 15.00}),
	text("grok-3", catalog.FlatTokenPricing{Input: 3.00, Output: 12.00}),
	text("grok-3-mini", catalog.FlatTokenPricing{Input: 1.00, Output: 5.00}),
	text("grok-2", catalog.FlatTokenPricing{Input: 2.00, Output: 10.00}),
	text("grok-2-vision", catalog.FlatTokenPricing{Input: 2.00, ImageInput: 2.00, Output: 10.00}),
	text("grok-vision-beta", catalog.FlatTokenPricing{Input: 5.00, ImageInput: 5.00, Output: 15.00}),
	text("grok-beta", catalog.FlatTokenPricing{Input: 5.00, Output: 15.00}),
	{
		ID:           "grok-2-image",
		Modalities:   catalog.Image,
		TokenDivisor: 1,
		Pricing:      catalog.FlatImagePricing{Price: 0.07},
	},
}
