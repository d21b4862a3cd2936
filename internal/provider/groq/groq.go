package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/internal/provider/openaicompat"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

type GroqProvider struct {
	apiKey           string
	baseURL          string
	client           *http.Client
	defaultMaxTokens int
}

func New(cfg provider.Config) provider.Provider {
	return &GroqProvider{
		apiKey:           cfg.APIKey,
		baseURL:          cfg.BaseURLOr(defaultBaseURL),
		client:           cfg.HTTPClient(),
		defaultMaxTokens: cfg.DefaultMaxTokens,
	}
}

func (p *GroqProvider) Name() string {
	return "groq"
}

func (p *GroqProvider) Models() []catalog.Model {
	return models
}

func (p *GroqProvider) GenerateText(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.chat(ctx, req)
}

func (p *GroqProvider) GenerateStructuredData(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.chat(ctx, req)
}

func (p *GroqProvider) GenerateImage(ctx context.Context, req *provider.ImageRequest) (*provider.Response, error) {
	return provider.TextOnly("Groq"), nil
}

func (p *GroqProvider) chat(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	m, err := provider.Lookup(models, req.Model)
	if err != nil {
		return nil, err
	}
	body, err := openaicompat.BuildChatRequest(m, req, openaicompat.Options{DefaultMaxTokens: p.defaultMaxTokens})
	if err != nil {
		return nil, err
	}
	// Groq rejects logit_bias.
	body.LogitBias = nil
	return openaicompat.Chat(ctx, p.client, p.Name(), p.baseURL, p.apiKey, body)
}

func (p *GroqProvider) CalculateCost(modelID string, fullResponse json.RawMessage, _ provider.CostParams) (float64, error) {
	if _, ok := catalog.Lookup(models, modelID); !ok {
		return 0, fmt.Errorf("%w: %s", provider.ErrUnsupportedModelForCost, modelID)
	}
	usage, err := openaicompat.DecodeUsage(fullResponse)
	if err != nil {
		return 0, err
	}
	return provider.Price(models, modelID, catalog.Usage{
		Input:  usage.PromptTokens,
		Output: usage.CompletionTokens,
	})
}

func (p *GroqProvider) NormalizeError(err error) *provider.Error {
	return provider.NormalizeError(err, openaicompat.ParseError)
}
