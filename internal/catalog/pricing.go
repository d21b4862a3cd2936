package catalog

import (
	"errors"
	"fmt"
)

// ErrUnpriced is returned when a pricing table has no entry for the
// requested option, e.g. an image size the model was never priced for.
var ErrUnpriced = errors.New("no price for requested option")

const (
	DefaultImageQuality = "standard"
	DefaultImageSize    = "1024x1024"
)

// Usage is the vendor-reported consumption of a single call, already split
// into disjoint categories: a token counted in CacheRead is not also
// counted in Input.
type Usage struct {
	Input      int
	CacheRead  int
	CacheWrite int
	Output     int
	Reasoning  int
	ImageInput int

	// TierBasis, when positive, is the count tiered prompt and cache prices
	// are selected by. Vendors that tier on the whole prompt set it to the
	// reported prompt size, cached tokens included.
	TierBasis int

	// Image sizing, from the request.
	Quality string
	Size    string
	N       int
}

// Pricing is implemented by each pricing shape. Cost returns USD.
type Pricing interface {
	Cost(u Usage, divisor float64) (float64, error)
	pricing()
}

// FlatTokenPricing bills every token category at a fixed unit price.
// A zero CachedInput, CacheWrite or ImageInput bills those tokens at Input.
type FlatTokenPricing struct {
	Input       float64
	Output      float64
	CachedInput float64
	CacheWrite  float64
	ImageInput  float64
}

func (FlatTokenPricing) pricing() {}

func (p FlatTokenPricing) Cost(u Usage, divisor float64) (float64, error) {
	cached := p.CachedInput
	if cached == 0 {
		cached = p.Input
	}
	write := p.CacheWrite
	if write == 0 {
		write = p.Input
	}
	cost := perToken(u.Input, p.Input, divisor) +
		perToken(u.CacheRead, cached, divisor) +
		perToken(u.CacheWrite, write, divisor) +
		perToken(u.Output, p.Output, divisor)
	image := p.ImageInput
	if image == 0 {
		image = p.Input
	}
	return cost + perToken(u.ImageInput, image, divisor), nil
}

// Tier is one volume bracket. MaxTokens of zero is the unbounded tier.
type Tier struct {
	MaxTokens int
	Price     float64
}

// TieredTokenPricing selects a tier independently for prompt, candidate and
// cache tokens.
type TieredTokenPricing struct {
	Prompt     []Tier
	Candidates []Tier
	Cache      []Tier
}

func (TieredTokenPricing) pricing() {}

func (p TieredTokenPricing) Cost(u Usage, divisor float64) (float64, error) {
	promptBasis, cacheBasis := u.Input, u.CacheRead
	if u.TierBasis > 0 {
		promptBasis, cacheBasis = u.TierBasis, u.TierBasis
	}
	prompt, err := SelectTier(p.Prompt, promptBasis)
	if err != nil {
		return 0, fmt.Errorf("prompt tier: %w", err)
	}
	candidates, err := SelectTier(p.Candidates, u.Output)
	if err != nil {
		return 0, fmt.Errorf("candidate tier: %w", err)
	}
	cost := perToken(u.Input, prompt.Price, divisor) + perToken(u.Output, candidates.Price, divisor)

	if u.CacheRead > 0 {
		cache := prompt
		if len(p.Cache) > 0 {
			if cache, err = SelectTier(p.Cache, cacheBasis); err != nil {
				return 0, fmt.Errorf("cache tier: %w", err)
			}
		}
		cost += perToken(u.CacheRead, cache.Price, divisor)
	}
	return cost, nil
}

// SelectTier picks the tier with the smallest bound that still covers count.
// When no bounded tier covers it, the unbounded tier is used, falling back to
// the last tier if none is marked unbounded.
func SelectTier(tiers []Tier, count int) (Tier, error) {
	if len(tiers) == 0 {
		return Tier{}, ErrUnpriced
	}
	best := -1
	for i, t := range tiers {
		if t.MaxTokens <= 0 || t.MaxTokens < count {
			continue
		}
		if best < 0 || t.MaxTokens < tiers[best].MaxTokens {
			best = i
		}
	}
	if best >= 0 {
		return tiers[best], nil
	}
	for _, t := range tiers {
		if t.MaxTokens <= 0 {
			return t, nil
		}
	}
	return tiers[len(tiers)-1], nil
}

// PerImagePricing prices by (quality, size).
type PerImagePricing struct {
	ByQualityAndSize map[string]map[string]float64
}

func (PerImagePricing) pricing() {}

func (p PerImagePricing) Cost(u Usage, _ float64) (float64, error) {
	quality := u.Quality
	if quality == "" {
		quality = DefaultImageQuality
	}
	size := u.Size
	if size == "" {
		size = DefaultImageSize
	}
	price, ok := p.ByQualityAndSize[quality][size]
	if !ok {
		return 0, fmt.Errorf("%w: quality %q size %q", ErrUnpriced, quality, size)
	}
	return price * float64(imageCount(u.N)), nil
}

// FlatImagePricing charges the same price for every image.
type FlatImagePricing struct {
	Price float64
}

func (FlatImagePricing) pricing() {}

func (p FlatImagePricing) Cost(u Usage, _ float64) (float64, error) {
	return p.Price * float64(imageCount(u.N)), nil
}

// ReasoningTokenPricing adds a per-request fee and, when the vendor reports
// reasoning tokens, a reasoning surcharge on top of input/output pricing.
type ReasoningTokenPricing struct {
	Input      float64
	Output     float64
	Reasoning  float64
	PerRequest float64
}

func (ReasoningTokenPricing) pricing() {}

func (p ReasoningTokenPricing) Cost(u Usage, divisor float64) (float64, error) {
	cost := perToken(u.Input, p.Input, divisor) + perToken(u.Output, p.Output, divisor)
	if p.Reasoning > 0 && u.Reasoning > 0 {
		cost += perToken(u.Reasoning, p.Reasoning, divisor)
	}
	return cost + p.PerRequest, nil
}

func perToken(tokens int, price, divisor float64) float64 {
	if tokens <= 0 || price <= 0 {
		return 0
	}
	if divisor <= 0 {
		divisor = 1
	}
	return float64(tokens) * price / divisor
}

func imageCount(n int) int {
	return max(n, 1)
}
