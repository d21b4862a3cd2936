package provider

import (
	"errors"
	"fmt"

	"github.com/vnmchuo/llm-relay/internal/catalog"
)

// Lookup finds a model in an adapter's catalog for a generate call.
func Lookup(models []catalog.Model, id string) (catalog.Model, error) {
	m, ok := catalog.Lookup(models, id)
	if !ok {
		return catalog.Model{}, fmt.Errorf("%w: %s", ErrUnsupportedModel, id)
	}
	return m, nil
}

// Price evaluates the model's pricing against u. A model with no price for
// the observed usage is reported as ErrUnsupportedModelForCost.
func Price(models []catalog.Model, id string, u catalog.Usage) (float64, error) {
	m, ok := catalog.Lookup(models, id)
	if !ok || m.Pricing == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedModelForCost, id)
	}
	cost, err := m.Pricing.Cost(u, m.TokenDivisor)
	if err != nil {
		if errors.Is(err, catalog.ErrUnpriced) {
			return 0, fmt.Errorf("%w: %s: %v", ErrUnsupportedModelForCost, id, err)
		}
		return 0, err
	}
	return cost, nil
}

// TextOnly is the response for image requests on a vendor with no image models.
func TextOnly(displayName string) *Response {
	return Unsupported(
		fmt.Sprintf("Image generation is not supported by %s. Please select a different model.", displayName),
		"Image generation not supported",
		"Use models like OpenAI's DALL-E for image generation tasks.",
	)
}

// WrongModality is the response for a model asked to do something outside
// its modalities, e.g. a text prompt sent to an image model.
func WrongModality(model string, want catalog.Modality) *Response {
	return Unsupported(
		fmt.Sprintf("Model %s does not support %s generation. Please select a different model.", model, want),
		"Unsupported operation for model",
		fmt.Sprintf("Pick a model listed under modality %q.", want),
	)
}
