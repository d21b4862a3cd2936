package billing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
)

// UsageRecord is one billed vendor call.
type UsageRecord struct {
	ID           string
	TenantID     string
	OrgID        string
	RequestID    string
	APIKeyID     string
	Provider     string
	Model        string
	Operation    string
	SkuID        string
	SkuName      string
	Millicredits int64
	CostUSD      float64
	TotalTokens  int
	Status       int
	LatencyMs    int64
	CreatedAt    time.Time
}

// Reporter receives usage for billing. Implementations may fail
// independently of the call being billed.
type Reporter interface {
	ReportUsage(ctx context.Context, rec *UsageRecord) error
}

// Totals aggregates a tenant's usage over a period.
type Totals struct {
	Requests     int64   `json:"requests"`
	CostUSD      float64 `json:"cost_usd"`
	Millicredits int64   `json:"millicredits"`
}

type Store interface {
	Reporter
	GetUsageByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]*UsageRecord, error)
	GetTotalsByTenant(ctx context.Context, tenantID string, from, to time.Time) (*Totals, error)
}

// SkuID is the stable analytics key for a billable call.
func SkuID(providerID, operation, modelID string) string {
	return fmt.Sprintf("llm:%s:%s:%s", providerID, operation, modelID)
}

var providerNames = map[string]string{
	"openai":     "OpenAI",
	"anthropic":  "Anthropic",
	"gemini":     "Gemini",
	"deepseek":   "DeepSeek",
	"groq":       "Groq",
	"xai":        "xAI",
	"perplexity": "Perplexity",
}

// SkuName is the human-readable form of SkuID, e.g.
// "LLM OpenAI Generate Text gpt-4o-mini".
func SkuName(providerID, operation, modelID string) string {
	name, ok := providerNames[providerID]
	if !ok {
		name = providerID
	}
	return fmt.Sprintf("LLM %s %s %s", name, titleWords(operation), modelID)
}

// titleWords splits a lowerCamel identifier into capitalized words.
func titleWords(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Millicredits converts a USD cost to whole millicredits, rounding up so a
// priced call is never billed as free. Zero cost or a zero price yields 0.
func Millicredits(costUSD, pricePerCredit float64) int64 {
	if costUSD <= 0 || pricePerCredit <= 0 {
		return 0
	}
	v := costUSD / pricePerCredit * 1000
	if v >= math.MaxInt64 || math.IsNaN(v) {
		return math.MaxInt64
	}
	// Absorb float noise such as 0.1/0.01*1000 = 10000.000000000002.
	n := int64(math.Ceil(v - 1e-9))
	return max(n, 1)
}
