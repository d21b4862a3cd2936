package deepseek

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/internal/provider/openaicompat"
)

const defaultBaseURL = "https://api.deepseek.com/v1"

type DeepSeekProvider struct {
	apiKey           string
	baseURL          string
	client           *http.Client
	defaultMaxTokens int
}

func New(cfg provider.Config) provider.Provider {
	return &DeepSeekProvider{
		apiKey:           cfg.APIKey,
		baseURL:          cfg.BaseURLOr(defaultBaseURL),
		client:           cfg.HTTPClient(),
		defaultMaxTokens: cfg.DefaultMaxTokens,
	}
}

func (p *DeepSeekProvider) Name() string {
	return "deepseek"
}

func (p *DeepSeekProvider) Models() []catalog.Model {
	return models
}

func (p *DeepSeekProvider) GenerateText(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.chat(ctx, req)
}

func (p *DeepSeekProvider) GenerateStructuredData(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.chat(ctx, req)
}

func (p *DeepSeekProvider) GenerateImage(ctx context.Context, req *provider.ImageRequest) (*provider.Response, error) {
	return provider.TextOnly("DeepSeek models"), nil
}

func (p *DeepSeekProvider) chat(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	m, err := provider.Lookup(models, req.Model)
	if err != nil {
		return nil, err
	}
	body, err := openaicompat.BuildChatRequest(m, req, openaicompat.Options{DefaultMaxTokens: p.defaultMaxTokens})
	if err != nil {
		return nil, err
	}
	return openaicompat.Chat(ctx, p.client, p.Name(), p.baseURL, p.apiKey, body)
}

// CalculateCost bills cache hits and misses separately. When the cache
// counters are absent every prompt token is a miss.
func (p *DeepSeekProvider) CalculateCost(modelID string, fullResponse json.RawMessage, _ provider.CostParams) (float64, error) {
	if _, ok := catalog.Lookup(models, modelID); !ok {
		return 0, fmt.Errorf("%w: %s", provider.ErrUnsupportedModelForCost, modelID)
	}

	usage, err := openaicompat.DecodeUsage(fullResponse)
	if err != nil {
		return 0, err
	}

	miss := usage.PromptCacheMissTokens
	if usage.PromptCacheHitTokens+usage.PromptCacheMissTokens == 0 {
		miss = usage.PromptTokens
	}
	return provider.Price(models, modelID, catalog.Usage{
		Input:     miss,
		CacheRead: usage.PromptCacheHitTokens,
		Output:    usage.CompletionTokens,
	})
}

func (p *DeepSeekProvider) NormalizeError(err error) *provider.Error {
	return provider.NormalizeError(err, openaicompat.ParseError)
}
