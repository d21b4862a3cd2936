package xai

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/internal/provider/openaicompat"
)

const (
	defaultBaseURL        = "https://api.x.ai/v1"
	defaultMaxTokens      = 4096
	defaultResponseFormat = "b64_json"
)

type XAIProvider struct {
	apiKey           string
	baseURL          string
	client           *http.Client
	defaultMaxTokens int
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func New(cfg provider.Config) provider.Provider {
	fallback := cfg.DefaultMaxTokens
	if fallback <= 0 {
		fallback = defaultMaxTokens
	}
	return &XAIProvider{
		apiKey:           cfg.APIKey,
		baseURL:          cfg.BaseURLOr(defaultBaseURL),
		client:           cfg.HTTPClient(),
		defaultMaxTokens: fallback,
	}
}

func (p *XAIProvider) Name() string {
	return "xai"
}

func (p *XAIProvider) Models() []catalog.Model {
	return models
}

func (p *XAIProvider) GenerateText(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.chat(ctx, req)
}

func (p *XAIProvider) GenerateStructuredData(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.chat(ctx, req)
}

func (p *XAIProvider) chat(ctx context.Context, req *provider.Request) (*provider.Response, error) {
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

func (p *XAIProvider) GenerateImage(ctx context.Context, req *provider.ImageRequest) (*provider.Response, error) {
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
		N:              max(req.Params.N, 1),
		ResponseFormat: req.Params.ResponseFormat,
	}
	if body.ResponseFormat == "" {
		body.ResponseFormat = defaultResponseFormat
	}

	url := fmt.Sprintf("%s/images/generations", p.baseURL)
	raw, status, err := provider.PostJSON(ctx, p.client, p.Name(), url, openaicompat.BearerHeader(p.apiKey), body)
	if err != nil {
		return nil, err
	}

	var resp imageResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("xai: decode image response: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("xai api returned no images")
	}

	return &provider.Response{
		Content:      stripDataURL(cmp.Or(resp.Data[0].B64JSON, resp.Data[0].URL)),
		FullResponse: raw,
		Status:       status,
	}, nil
}

// stripDataURL turns "data:image/png;base64,AAAA" into "AAAA".
func stripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if _, payload, ok := strings.Cut(s, ","); ok {
		return payload
	}
	return s
}

// CalculateCost bills image-input tokens at their own rate, separate from
// the text prompt tokens that contain them.
func (p *XAIProvider) CalculateCost(modelID string, fullResponse json.RawMessage, params provider.CostParams) (float64, error) {
	m, ok := catalog.Lookup(models, modelID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", provider.ErrUnsupportedModelForCost, modelID)
	}

	if m.Supports(catalog.ModalityImage) {
		return provider.Price(models, modelID, catalog.Usage{N: params.Image.N})
	}

	usage, err := openaicompat.DecodeUsage(fullResponse)
	if err != nil {
		return 0, err
	}
	images := usage.ImageTokens
	if images == 0 && usage.PromptTokensDetails != nil {
		images = usage.PromptTokensDetails.ImageTokens
	}
	return provider.Price(models, modelID, catalog.Usage{
		Input:      usage.PromptTokens - images,
		ImageInput: images,
		Output:     usage.CompletionTokens,
	})
}

func (p *XAIProvider) NormalizeError(err error) *provider.Error {
	return provider.NormalizeError(err, openaicompat.ParseError)
}
