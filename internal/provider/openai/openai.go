package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/internal/provider/openaicompat"
)

const defaultBaseURL = "https://api.openai.com/v1"

type OpenAIProvider struct {
	apiKey           string
	baseURL          string
	client           *http.Client
	defaultMaxTokens int
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	User           string `json:"user,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func New(cfg provider.Config) provider.Provider {
	return &OpenAIProvider{
		apiKey:           cfg.APIKey,
		baseURL:          cfg.BaseURLOr(defaultBaseURL),
		client:           cfg.HTTPClient(),
		defaultMaxTokens: cfg.DefaultMaxTokens,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Models() []catalog.Model {
	return models
}

func (p *OpenAIProvider) GenerateText(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.chat(ctx, req)
}

func (p *OpenAIProvider) GenerateStructuredData(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.chat(ctx, req)
}

func (p *OpenAIProvider) chat(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	m, err := provider.Lookup(models, req.Model)
	if err != nil {
		return nil, err
	}
	if !m.Supports(catalog.ModalityText) {
		return provider.WrongModality(m.ID, catalog.ModalityText), nil
	}

	body, err := openaicompat.BuildChatRequest(m, req, openaicompat.Options{DefaultMaxTokens: p.defaultMaxTokens})
	if err != nil {
		return nil, err
	}
	return openaicompat.Chat(ctx, p.client, p.Name(), p.baseURL, p.apiKey, body)
}

func (p *OpenAIProvider) GenerateImage(ctx context.Context, req *provider.ImageRequest) (*provider.Response, error) {
	m, err := provider.Lookup(models, req.Model)
	if err != nil {
		return nil, err
	}
	if !m.Supports(catalog.ModalityImage) {
		return provider.WrongModality(m.ID, catalog.ModalityImage), nil
	}

	body := imageRequest{
		Model:          m.ID,
		Prompt:         req.Prompt,
		N:              req.Params.N,
		Size:           req.Params.Size,
		Quality:        req.Params.Quality,
		Style:          req.Params.Style,
		User:           req.Params.User,
		ResponseFormat: req.Params.ResponseFormat,
	}

	url := fmt.Sprintf("%s/images/generations", p.baseURL)
	raw, status, err := provider.PostJSON(ctx, p.client, p.Name(), url, openaicompat.BearerHeader(p.apiKey), body)
	if err != nil {
		return nil, err
	}

	var resp imageResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("openai: decode image response: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai api returned no images")
	}

	content := resp.Data[0].B64JSON
	if content == "" {
		content = resp.Data[0].URL
	}
	return &provider.Response{
		Content:      content,
		FullResponse: raw,
		Status:       status,
	}, nil
}

// CalculateCost prices text calls from usage, with cached prompt tokens
// moved out of the regular input count, and image calls from the request.
func (p *OpenAIProvider) CalculateCost(modelID string, fullResponse json.RawMessage, params provider.CostParams) (float64, error) {
	m, ok := catalog.Lookup(models, modelID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", provider.ErrUnsupportedModelForCost, modelID)
	}

	if m.Supports(catalog.ModalityImage) {
		return provider.Price(models, modelID, catalog.Usage{
			Quality: params.Image.Quality,
			Size:    params.Image.Size,
			N:       params.Image.N,
		})
	}

	usage, err := openaicompat.DecodeUsage(fullResponse)
	if err != nil {
		return 0, err
	}
	cached := 0
	if usage.PromptTokensDetails != nil {
		cached = usage.PromptTokensDetails.CachedTokens
	}
	return provider.Price(models, modelID, catalog.Usage{
		Input:     usage.PromptTokens - cached,
		CacheRead: cached,
		Output:    usage.CompletionTokens,
	})
}

func (p *OpenAIProvider) NormalizeError(err error) *provider.Error {
	return provider.NormalizeError(err, openaicompat.ParseError)
}
