// Package catalog holds the static model descriptors every provider
// registers at startup: modalities, output ceilings, and pricing.
//
// Descriptors are plain values built once per process and never mutated,
// so they are safe to share across goroutines without locking.
package catalog

import "slices"

type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// ParseModality maps a wire value to a Modality. Unknown values are rejected.
func ParseModality(s string) (Modality, bool) {
	switch Modality(s) {
	case ModalityText, ModalityImage:
		return Modality(s), true
	}
	return "", false
}

// Model describes one vendor model id.
type Model struct {
	ID         string
	Modalities []Modality
	Pricing    Pricing

	// TokenDivisor turns "price per N tokens" into "price per token".
	// Image-priced models use 1.
	TokenDivisor float64

	// MaxOutputTokens is the model's output ceiling. Zero means unknown.
	MaxOutputTokens int

	// NoSystemRole marks models that reject a native system message.
	NoSystemRole bool

	// UsesCompletionTokenField selects max_completion_tokens over max_tokens
	// on OpenAI-style wires.
	UsesCompletionTokenField bool
}

func (m Model) Supports(mod Modality) bool {
	return slices.Contains(m.Modalities, mod)
}

func (m Model) SupportsSystemRole() bool {
	return !m.NoSystemRole
}

// Lookup returns the model with the given id.
func Lookup(models []Model, id string) (Model, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// Filter returns the models supporting mod, preserving registration order.
func Filter(models []Model, mod Modality) []Model {
	var out []Model
	for _, m := range models {
		if m.Supports(mod) {
			out = append(out, m)
		}
	}
	return out
}

// Text and Image are shorthands used by the provider catalogs.
var (
	Text  = []Modality{ModalityText}
	Image = []Modality{ModalityImage}
)

const PerMillion = 1_000_000
