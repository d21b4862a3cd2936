// Package openaicompat holds the chat-completions wire format shared by
// OpenAI and the vendors that copy it (DeepSeek, Groq, xAI, Perplexity).
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type ChatRequest struct {
	Model               string             `json:"model"`
	Messages            []Message          `json:"messages"`
	MaxTokens           *int               `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int               `json:"max_completion_tokens,omitempty"`
	Temperature         *float64           `json:"temperature,omitempty"`
	TopP                *float64           `json:"top_p,omitempty"`
	Stop                []string           `json:"stop,omitempty"`
	FrequencyPenalty    *float64           `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64           `json:"presence_penalty,omitempty"`
	LogitBias           map[string]float64 `json:"logit_bias,omitempty"`
	ResponseFormat      *ResponseFormat    `json:"response_format,omitempty"`
	N                   *int               `json:"n,omitempty"`
	Seed                *int64             `json:"seed,omitempty"`
	Stream              bool               `json:"stream,omitempty"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage is the union of the usage fields reported by the vendors on this
// wire. Each adapter reads the ones its vendor populates.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
		ImageTokens  int `json:"image_tokens"`
	} `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details,omitempty"`

	// DeepSeek
	PromptCacheHitTokens  int `json:"prompt_cache_hit_tokens"`
	PromptCacheMissTokens int `json:"prompt_cache_miss_tokens"`

	// Perplexity
	ReasoningTokens int `json:"reasoning_tokens"`

	// xAI
	ImageTokens int `json:"image_tokens"`
}

// Options tune how a canonical request maps onto the wire.
type Options struct {
	DefaultMaxTokens int

	// DataInPrompt appends structured data to the user prompt with
	// DataSeparator instead of sending it as its own user message.
	DataInPrompt  bool
	DataSeparator string
}

// BuildChatRequest maps a canonical request onto the chat-completions body.
func BuildChatRequest(m catalog.Model, req *provider.Request, opts Options) (*ChatRequest, error) {
	data, err := provider.DataText(req.Data)
	if err != nil {
		return nil, err
	}

	var messages []Message
	if req.System != "" {
		if m.SupportsSystemRole() {
			messages = append(messages, Message{Role: "system", Content: req.System})
		} else {
			messages = append(messages, Message{Role: "user", Content: "System prompt: " + req.System})
		}
	}

	prompt := req.Prompt
	if data != "" && opts.DataInPrompt {
		prompt += opts.DataSeparator + data
	}
	messages = append(messages, Message{Role: "user", Content: prompt})
	if data != "" && !opts.DataInPrompt {
		messages = append(messages, Message{Role: "user", Content: data})
	}

	p := req.Params
	body := &ChatRequest{
		Model:            m.ID,
		Messages:         messages,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		Stop:             p.StopSequences,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
		LogitBias:        p.LogitBias,
		ResponseFormat:   responseFormat(p.ResponseFormat),
		N:                p.CandidateCount,
		Seed:             p.Seed,
		Stream:           p.Stream,
	}

	maxTokens := provider.ResolveMaxTokens(p.MaxTokens, m.MaxOutputTokens, opts.DefaultMaxTokens)
	if m.UsesCompletionTokenField {
		body.MaxCompletionTokens = maxTokens
	} else {
		body.MaxTokens = maxTokens
	}
	return body, nil
}

// responseFormat maps the canonical format. xml has no wire equivalent and
// is left to the prompt.
func responseFormat(f string) *ResponseFormat {
	switch f {
	case "json":
		return &ResponseFormat{Type: "json_object"}
	case "text":
		return &ResponseFormat{Type: "text"}
	}
	return nil
}

// Chat POSTs body to baseURL/chat/completions with bearer auth.
func Chat(ctx context.Context, client *http.Client, vendor, baseURL, apiKey string, body any) (*provider.Response, error) {
	raw, status, err := provider.PostJSON(ctx, client, vendor, baseURL+"/chat/completions", BearerHeader(apiKey), body)
	if err != nil {
		return nil, err
	}
	return ParseChat(vendor, raw, status)
}

// ParseChat extracts content and token totals from a successful body.
func ParseChat(vendor string, raw json.RawMessage, status int) (*provider.Response, error) {
	var resp ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", vendor, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s api returned no choices", vendor)
	}

	out := &provider.Response{
		Content:      resp.Choices[0].Message.Content,
		FullResponse: raw,
		Status:       status,
	}
	if resp.Usage != nil {
		total := resp.Usage.TotalTokens
		if total == 0 {
			total = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
		}
		out.TotalTokens = &total
	}
	return out, nil
}

// DecodeUsage reads the usage block of a stored response.
func DecodeUsage(raw json.RawMessage) (Usage, error) {
	var resp struct {
		Usage *Usage `json:"usage"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Usage{}, fmt.Errorf("decode usage: %w", err)
	}
	if resp.Usage == nil {
		return Usage{}, nil
	}
	return *resp.Usage, nil
}

func BearerHeader(apiKey string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+apiKey)
	return h
}

// ParseError reads both the OpenAI envelope {"error":{"message","type","code"}}
// and the flat {"error":"...","code":"..."} form some compatible vendors use.
func ParseError(body []byte) (message, code, typ string, ok bool) {
	var env struct {
		Error json.RawMessage `json:"error"`
		Code  json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return "", "", "", false
	}

	var nested struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	}
	if err := json.Unmarshal(env.Error, &nested); err == nil {
		return nested.Message, scalar(nested.Code), nested.Type, true
	}

	var flat string
	if err := json.Unmarshal(env.Error, &flat); err == nil {
		return flat, scalar(env.Code), "", true
	}
	return "", "", "", false
}

// scalar renders a JSON string or number code; null and objects yield "".
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
