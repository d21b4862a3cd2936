package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GeminiProvider struct {
	apiKey           string
	baseURL          string
	client           *http.Client
	defaultMaxTokens int
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	TopK             *int     `json:"topK,omitempty"`
	StopSequences    []string `json:"stopSequences,omitempty"`
	CandidateCount   *int     `json:"candidateCount,omitempty"`
	PresencePenalty  *float64 `json:"presencePenalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequencyPenalty,omitempty"`
	Seed             *int64   `json:"seed,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

// promptTokenCount includes cachedContentTokenCount.
type geminiUsageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
	TotalTokenCount         int `json:"totalTokenCount"`
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount int `json:"sampleCount"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

type geminiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func New(cfg provider.Config) provider.Provider {
	return &GeminiProvider{
		apiKey:           cfg.APIKey,
		baseURL:          cfg.BaseURLOr(defaultBaseURL),
		client:           cfg.HTTPClient(),
		defaultMaxTokens: cfg.DefaultMaxTokens,
	}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Models() []catalog.Model {
	return models
}

func (p *GeminiProvider) GenerateText(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.generateContent(ctx, req)
}

func (p *GeminiProvider) GenerateStructuredData(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.generateContent(ctx, req)
}

func (p *GeminiProvider) generateContent(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	m, err := provider.Lookup(models, req.Model)
	if err != nil {
		return nil, err
	}
	if !m.Supports(catalog.ModalityText) {
		return provider.WrongModality(m.ID, catalog.ModalityText), nil
	}

	body, err := p.mapRequest(m, req)
	if err != nil {
		return nil, err
	}

	raw, status, err := p.post(ctx, m.ID, "generateContent", body)
	if err != nil {
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini api returned no candidates")
	}

	out := &provider.Response{
		Content:      resp.Candidates[0].Content.Parts[0].Text,
		FullResponse: raw,
		Status:       status,
	}
	if resp.UsageMetadata != nil {
		total := resp.UsageMetadata.TotalTokenCount
		out.TotalTokens = &total
	}
	return out, nil
}

// mapRequest sends the system prompt as its own user turn since Gemini has
// no system role here; structured data rides as a second part.
func (p *GeminiProvider) mapRequest(m catalog.Model, req *provider.Request) (geminiRequest, error) {
	data, err := provider.DataText(req.Data)
	if err != nil {
		return geminiRequest{}, err
	}

	var contents []geminiContent
	if req.System != "" {
		contents = append(contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{Text: "System prompt: " + req.System}},
		})
	}
	parts := []geminiPart{{Text: req.Prompt}}
	if data != "" {
		parts = append(parts, geminiPart{Text: data})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: parts})

	params := req.Params
	cfg := &generationConfig{
		MaxOutputTokens:  provider.ResolveMaxTokens(params.MaxTokens, m.MaxOutputTokens, p.defaultMaxTokens),
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		TopK:             params.TopK,
		StopSequences:    params.StopSequences,
		CandidateCount:   params.CandidateCount,
		PresencePenalty:  params.PresencePenalty,
		FrequencyPenalty: params.FrequencyPenalty,
		Seed:             params.Seed,
	}
	switch params.ResponseFormat {
	case "json":
		cfg.ResponseMimeType = "application/json"
	case "text":
		cfg.ResponseMimeType = "text/plain"
	}

	return geminiRequest{Contents: contents, GenerationConfig: cfg}, nil
}

func (p *GeminiProvider) GenerateImage(ctx context.Context, req *provider.ImageRequest) (*provider.Response, error) {
	m, err := provider.Lookup(models, req.Model)
	if err != nil {
		return nil, err
	}
	if !m.Supports(catalog.ModalityImage) {
		return provider.WrongModality(m.ID, catalog.ModalityImage), nil
	}

	body := predictRequest{
		Instances:  []predictInstance{{Prompt: req.Prompt}},
		Parameters: predictParameters{SampleCount: max(req.Params.N, 1)},
	}
	raw, status, err := p.post(ctx, m.ID, "predict", body)
	if err != nil {
		return nil, err
	}

	var resp predictResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("gemini: decode predict response: %w", err)
	}
	if len(resp.Predictions) == 0 {
		return nil, fmt.Errorf("gemini api returned no images")
	}
	return &provider.Response{
		Content:      resp.Predictions[0].BytesBase64Encoded,
		FullResponse: raw,
		Status:       status,
	}, nil
}

// post calls models/{model}:{method} with the key as a query parameter.
// Transport errors have the URL redacted so the key never reaches logs.
func (p *GeminiProvider) post(ctx context.Context, model, method string, body any) (json.RawMessage, int, error) {
	endpoint := fmt.Sprintf("%s/models/%s:%s", p.baseURL, url.PathEscape(model), method)
	raw, status, err := provider.PostJSON(ctx, p.client, p.Name(), endpoint+"?key="+url.QueryEscape(p.apiKey), nil, body)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = endpoint
		}
		return nil, status, err
	}
	return raw, status, nil
}

// CalculateCost splits cached tokens out of the prompt count and bills
// thinking tokens as candidates. Prompt and cache tiers follow the full
// prompt size.
func (p *GeminiProvider) CalculateCost(modelID string, fullResponse json.RawMessage, params provider.CostParams) (float64, error) {
	m, ok := catalog.Lookup(models, modelID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", provider.ErrUnsupportedModelForCost, modelID)
	}

	if m.Supports(catalog.ModalityImage) {
		return provider.Price(models, modelID, catalog.Usage{N: params.Image.N})
	}

	var resp geminiResponse
	if err := json.Unmarshal(fullResponse, &resp); err != nil {
		return 0, fmt.Errorf("gemini: decode usage: %w", err)
	}
	var usage geminiUsageMetadata
	if resp.UsageMetadata != nil {
		usage = *resp.UsageMetadata
	}

	return provider.Price(models, modelID, catalog.Usage{
		Input:     usage.PromptTokenCount - usage.CachedContentTokenCount,
		CacheRead: usage.CachedContentTokenCount,
		Output:    usage.CandidatesTokenCount + usage.ThoughtsTokenCount,
		TierBasis: usage.PromptTokenCount,
	})
}

func (p *GeminiProvider) NormalizeError(err error) *provider.Error {
	return provider.NormalizeError(err, parseError)
}

func parseError(body []byte) (message, code, typ string, ok bool) {
	var env geminiError
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return "", "", "", false
	}
	return env.Error.Message, env.Error.Status, env.Error.Status, true
}
