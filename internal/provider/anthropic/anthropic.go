package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

type AnthropicProvider struct {
	apiKey           string
	baseURL          string
	client           *http.Client
	defaultMaxTokens int
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	System        string             `json:"system,omitempty"`
	Messages      []anthropicMessage `json:"messages"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	TopK          *int               `json:"top_k,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Content []anthropicContent `json:"content"`
	Usage   *anthropicUsage    `json:"usage"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func New(cfg provider.Config) provider.Provider {
	fallback := cfg.DefaultMaxTokens
	if fallback <= 0 {
		fallback = defaultMaxTokens
	}
	return &AnthropicProvider{
		apiKey:           cfg.APIKey,
		baseURL:          cfg.BaseURLOr(defaultBaseURL),
		client:           cfg.HTTPClient(),
		defaultMaxTokens: fallback,
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Models() []catalog.Model {
	return models
}

func (p *AnthropicProvider) GenerateText(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.messages(ctx, req)
}

func (p *AnthropicProvider) GenerateStructuredData(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return p.messages(ctx, req)
}

func (p *AnthropicProvider) GenerateImage(ctx context.Context, req *provider.ImageRequest) (*provider.Response, error) {
	return provider.TextOnly("Anthropic models"), nil
}

func (p *AnthropicProvider) messages(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	m, err := provider.Lookup(models, req.Model)
	if err != nil {
		return nil, err
	}
	body, err := p.mapRequest(m, req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/messages", p.baseURL)
	header := http.Header{}
	header.Set("x-api-key", p.apiKey)
	header.Set("anthropic-version", apiVersion)

	raw, status, err := provider.PostJSON(ctx, p.client, p.Name(), url, header, body)
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("anthropic api returned no content")
	}

	out := &provider.Response{
		Content:      firstText(resp.Content),
		FullResponse: raw,
		Status:       status,
	}
	if resp.Usage != nil {
		total := resp.Usage.InputTokens + resp.Usage.OutputTokens
		out.TotalTokens = &total
	}
	return out, nil
}

// mapRequest puts the system prompt in the top-level field; messages only
// ever carry the user turn, with structured data as a second text block.
func (p *AnthropicProvider) mapRequest(m catalog.Model, req *provider.Request) (anthropicRequest, error) {
	data, err := provider.DataText(req.Data)
	if err != nil {
		return anthropicRequest{}, err
	}

	content := []anthropicContent{{Type: "text", Text: req.Prompt}}
	if data != "" {
		content = append(content, anthropicContent{Type: "text", Text: data})
	}

	maxTokens := defaultMaxTokens
	if n := provider.ResolveMaxTokens(req.Params.MaxTokens, m.MaxOutputTokens, p.defaultMaxTokens); n != nil {
		maxTokens = *n
	}

	return anthropicRequest{
		Model:         m.ID,
		MaxTokens:     maxTokens,
		System:        req.System,
		Messages:      []anthropicMessage{{Role: "user", Content: content}},
		Temperature:   req.Params.Temperature,
		TopP:          req.Params.TopP,
		TopK:          req.Params.TopK,
		StopSequences: req.Params.StopSequences,
		Stream:        req.Params.Stream,
	}, nil
}

func firstText(blocks []anthropicContent) string {
	for _, b := range blocks {
		if b.Type == "text" {
			return b.Text
		}
	}
	return blocks[0].Text
}

// CalculateCost bills input_tokens, cache reads and cache writes at their
// own rates. Anthropic reports the three as disjoint counts.
func (p *AnthropicProvider) CalculateCost(modelID string, fullResponse json.RawMessage, _ provider.CostParams) (float64, error) {
	if _, ok := catalog.Lookup(models, modelID); !ok {
		return 0, fmt.Errorf("%w: %s", provider.ErrUnsupportedModelForCost, modelID)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(fullResponse, &resp); err != nil {
		return 0, fmt.Errorf("anthropic: decode usage: %w", err)
	}
	var usage anthropicUsage
	if resp.Usage != nil {
		usage = *resp.Usage
	}

	return provider.Price(models, modelID, catalog.Usage{
		Input:      usage.InputTokens,
		CacheRead:  usage.CacheReadInputTokens,
		CacheWrite: usage.CacheCreationInputTokens,
		Output:     usage.OutputTokens,
	})
}

func (p *AnthropicProvider) NormalizeError(err error) *provider.Error {
	return provider.NormalizeError(err, parseError)
}

func parseError(body []byte) (message, code, typ string, ok bool) {
	var env anthropicError
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return "", "", "", false
	}
	return env.Error.Message, env.Error.Type, env.Error.Type, true
}
