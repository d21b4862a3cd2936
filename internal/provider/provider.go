package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vnmchuo/llm-relay/internal/catalog"
)

type Operation string

const (
	OpGenerateText           Operation = "generateText"
	OpGenerateStructuredData Operation = "generateStructuredData"
	OpGenerateImage          Operation = "generateImage"
)

// Request is the canonical text / structured-data request.
type Request struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system"`
	// Data is attached as auxiliary content in structured-data mode.
	Data   any    `json:"data,omitempty"`
	Params Params `json:"params"`
}

// Params is the generation options bag. Nil pointers mean "not set" and are
// left out of the vendor body.
type Params struct {
	MaxTokens        *int               `json:"maxTokens,omitempty"`
	Temperature      *float64           `json:"temperature,omitempty"`
	TopP             *float64           `json:"topP,omitempty"`
	TopK             *int               `json:"topK,omitempty"`
	StopSequences    []string           `json:"stopSequences,omitempty"`
	FrequencyPenalty *float64           `json:"frequencyPenalty,omitempty"`
	PresencePenalty  *float64           `json:"presencePenalty,omitempty"`
	LogitBias        map[string]float64 `json:"logitBias,omitempty"`
	ResponseFormat   string             `json:"responseFormat,omitempty"` // json, text or xml
	CandidateCount   *int               `json:"candidateCount,omitempty"`
	Seed             *int64             `json:"seed,omitempty"`
	Stream           bool               `json:"stream,omitempty"`

	// Vendor-specific passthrough; adapters that don't know them ignore them.
	SearchContextSize      string   `json:"searchContextSize,omitempty"`
	SearchDomainFilter     []string `json:"searchDomainFilter,omitempty"`
	SearchRecencyFilter    string   `json:"searchRecencyFilter,omitempty"`
	ReturnRelatedQuestions *bool    `json:"returnRelatedQuestions,omitempty"`
}

// ImageRequest is the canonical image generation request.
type ImageRequest struct {
	Model  string      `json:"model"`
	Prompt string      `json:"prompt"`
	System string      `json:"system"`
	Params ImageParams `json:"params"`
}

type ImageParams struct {
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"responseFormat,omitempty"`
	User           string `json:"user,omitempty"`
}

// Response is the canonical response. FullResponse is the vendor body,
// kept verbatim for cost calculation and for the caller.
type Response struct {
	Content      string          `json:"content"`
	TotalTokens  *int            `json:"totalTokens,omitempty"`
	FullResponse json.RawMessage `json:"fullResponse"`
	Status       int             `json:"status"`
}

// CostParams carries the request fields a calculator may need.
type CostParams struct {
	Image ImageParams
}

type Provider interface {
	Name() string
	Models() []catalog.Model
	GenerateText(ctx context.Context, req *Request) (*Response, error)
	GenerateStructuredData(ctx context.Context, req *Request) (*Response, error)
	GenerateImage(ctx context.Context, req *ImageRequest) (*Response, error)
	CalculateCost(modelID string, fullResponse json.RawMessage, params CostParams) (float64, error)
	NormalizeError(err error) *Error
}

// Config is passed to every adapter constructor.
type Config struct {
	APIKey  string
	BaseURL string
	Client  *http.Client

	// DefaultMaxTokens applies when neither the caller nor the catalog
	// provides an output ceiling.
	DefaultMaxTokens int
}

// HTTPClient returns the configured client or http.DefaultClient.
func (c Config) HTTPClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// BaseURLOr returns the configured base URL or fallback, without a
// trailing slash.
func (c Config) BaseURLOr(fallback string) string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fallback
}
