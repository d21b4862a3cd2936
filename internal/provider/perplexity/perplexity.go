package perplexity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/internal/provider/openaicompat"
)

const defaultBaseURL = "https://api.perplexity.ai"

type PerplexityProvider struct {
	apiKey           string
	baseURL          string
	client           *http.Client
	defaultMaxTokens int
}

type perplexityRequest struct {
	*openaicompat.ChatRequest

	WebSearchOptions       *webSearchOptions `json:"web_search_options,omitempty"`
	SearchDomainFilter     []string          `json:"search_domain_filter,omitempty"`
	SearchRecencyFilter    string            `json:"search_recency_filter,omitempty"`
	ReturnRelatedQuestions *bool             `json:"return_related_questions,omitempty"`
}

type webSearchOptions struct {
	SearchContextSize string `json:"search_context_size"`
}

func New(cfg provider.Config) provider.Provider {
	return &PerplexityProvider{
		apiKey:           cfg.APIKey,
		baseURL:          cfg.BaseURLOr(defaultBaseURL),
		client:           cfg.HTTPClient(),
		defaultMaxTokens: cfg.DefaultMaxTokens,
	}
}

func (p *PerplexityProvider) Name() string {
	return "perplexity"
}

func (p *PerplexityProvider) Models() []catalog.Model {
	return models
}

func (p *PerplexityProvider) GenerateText(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.chat(ctx, req)
}

func (p *PerplexityProvider) GenerateStructuredData(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.chat(ctx, req)
}

func (p *PerplexityProvider) GenerateImage(ctx context.Context, req *provider.ImageRequest) (*provider.Response, error) {
	return provider.TextOnly("Perplexity models"), nil
}

func (p *PerplexityProvider) chat(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	m, err := provider.Lookup(models, req.Model)
	if err != nil {
		return nil, err
	}
	body, err := p.mapRequest(m, req)
	if err != nil {
		return nil, err
	}
	return openaicompat.Chat(ctx, p.client, p.Name(), p.baseURL, p.apiKey, body)
}

// mapRequest folds structured data into the prompt: Perplexity rejects two
// user turns in a row.
func (p *PerplexityProvider) mapRequest(m catalog.Model, req *provider.Request) (*perplexityRequest, error) {
	chat, err := openaicompat.BuildChatRequest(m, req, openaicompat.Options{
		DefaultMaxTokens: p.defaultMaxTokens,
		DataInPrompt:     true,
		DataSeparator:    ": \n\n",
	})
	if err != nil {
		return nil, err
	}
	// Not accepted by the sonar API.
	chat.Stop = nil
	chat.LogitBias = nil
	chat.ResponseFormat = nil
	chat.N = nil
	chat.Seed = nil

	params := req.Params
	body := &perplexityRequest{
		ChatRequest:            chat,
		SearchDomainFilter:     params.SearchDomainFilter,
		SearchRecencyFilter:    params.SearchRecencyFilter,
		ReturnRelatedQuestions: params.ReturnRelatedQuestions,
	}
	if params.SearchContextSize != "" {
		body.WebSearchOptions = &webSearchOptions{SearchContextSize: params.SearchContextSize}
	}
	return body, nil
}

// CalculateCost adds the per-request search fee and, for deep research,
// the reasoning surcharge.
func (p *PerplexityProvider) CalculateCost(modelID string, fullResponse json.RawMessage, _ provider.CostParams) (float64, error) {
	if _, ok := catalog.Lookup(models, modelID); !ok {
		return 0, fmt.Errorf("%w: %s", provider.ErrUnsupportedModelForCost, modelID)
	}
	usage, err := openaicompat.DecodeUsage(fullResponse)
	if err != nil {
		return 0, err
	}
	reasoning := usage.ReasoningTokens
	if reasoning == 0 && usage.CompletionTokensDetails != nil {
		reasoning = usage.CompletionTokensDetails.ReasoningTokens
	}
	return provider.Price(models, modelID, catalog.Usage{
		Input:     usage.PromptTokens,
		Output:    usage.CompletionTokens,
		Reasoning: reasoning,
	})
}

func (p *PerplexityProvider) NormalizeError(err error) *provider.Error {
	return provider.NormalizeError(err, openaicompat.ParseError)
}
