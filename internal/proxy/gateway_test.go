package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/vnmchuo/llm-relay/internal/auth"
	"github.com/vnmchuo/llm-relay/internal/billing"
	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/internal/provider/anthropic"
	"github.com/vnmchuo/llm-relay/internal/provider/openai"
	"github.com/vnmchuo/llm-relay/pkg/ratelimit"
)

func tenantCtx() context.Context {
	ctx := auth.WithIdentity(context.Background(), auth.Identity{TenantID: "tenant-1", OrgID: "org-1"})
	ctx = auth.WithAPIKeyID(ctx, "key-1")
	return auth.WithRequestID(ctx, "req-1")
}

type openAIServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newOpenAIServer(t *testing.T, status int, body string) *openAIServer {
	t.Helper()
	s := &openAIServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

const chatBody = `{
	"id": "chatcmpl-1",
	"choices": [{"message": {"role": "assistant", "content": "hello"}}],
	"usage": {"prompt_tokens": 1000, "completion_tokens": 500, "total_tokens": 1500}
}`

func setupGateway(t *testing.T, vendor *openAIServer, limit int) (*Gateway, *mockBillingStore, *countingStore) {
	t.Helper()
	providers := []provider.Provider{
		openai.New(provider.Config{APIKey: "test-key", BaseURL: vendor.URL}),
		anthropic.New(provider.Config{APIKey: "test-key", BaseURL: vendor.URL}),
	}
	store := newCountingStore()
	reporter := &mockBillingStore{}
	g := NewGateway(NewRouter(providers), ratelimit.NewHourlyLimiter(store, limit, 0), reporter, Options{PricePerCredit: 0.01})
	return g, reporter, store
}

func TestGateway_GenerateText_BillsUsage(t *testing.T) {
	vendor := newOpenAIServer(t, http.StatusOK, chatBody)
	g, reporter, store := setupGateway(t, vendor, 10)

	resp, err := g.GenerateText(tenantCtx(), &provider.Request{Model: "gpt-4o-mini", Prompt: "hi", System: "be terse"})
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("Expected 'hello', got %q", resp.Content)
	}
	if store.incrs != 1 {
		t.Errorf("Expected one rate limit increment, got %d", store.incrs)
	}

	if len(reporter.records) != 1 {
		t.Fatalf("Expected one usage record, got %d", len(reporter.records))
	}
	rec := reporter.records[0]
	if rec.SkuID != "llm:openai:generateText:gpt-4o-mini" {
		t.Errorf("unexpected sku id %q", rec.SkuID)
	}
	if rec.SkuName != "LLM OpenAI Generate Text gpt-4o-mini" {
		t.Errorf("unexpected sku name %q", rec.SkuName)
	}
	if rec.TenantID != "tenant-1" || rec.OrgID != "org-1" || rec.RequestID != "req-1" || rec.APIKeyID != "key-1" {
		t.Errorf("unexpected identity on record: %+v", rec)
	}
	// 1000 * 0.15/1M + 500 * 0.60/1M = 0.00045 USD = 45 millicredits at 0.01.
	if rec.Millicredits != 45 {
		t.Errorf("Expected 45 millicredits, got %d", rec.Millicredits)
	}
	if rec.TotalTokens != 1500 || rec.Status != http.StatusOK {
		t.Errorf("unexpected tokens/status: %d/%d", rec.TotalTokens, rec.Status)
	}
}

func TestGateway_UnsupportedModel_NoCallNoIncrement(t *testing.T) {
	vendor := newOpenAIServer(t, http.StatusOK, chatBody)
	g, reporter, store := setupGateway(t, vendor, 10)

	_, err := g.GenerateText(tenantCtx(), &provider.Request{Model: "not-a-real-model", Prompt: "hi"})
	if !errors.Is(err, provider.ErrUnsupportedModel) {
		t.Fatalf("Expected ErrUnsupportedModel, got %v", err)
	}
	if vendor.hits.Load() != 0 {
		t.Errorf("Expected no vendor call, got %d", vendor.hits.Load())
	}
	if store.incrs != 0 {
		t.Errorf("Expected no rate limit increment, got %d", store.incrs)
	}
	if len(reporter.records) != 0 {
		t.Errorf("Expected nothing billed")
	}
}

func TestGateway_Unauthenticated(t *testing.T) {
	vendor := newOpenAIServer(t, http.StatusOK, chatBody)
	g, _, store := setupGateway(t, vendor, 10)

	_, err := g.GenerateText(context.Background(), &provider.Request{Model: "gpt-4o-mini", Prompt: "hi"})
	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("Expected ErrUnauthenticated, got %v", err)
	}
	if vendor.hits.Load() != 0 || store.incrs != 0 {
		t.Error("Expected no side effects for unauthenticated calls")
	}
}

func TestGateway_RateLimitExceeded(t *testing.T) {
	vendor := newOpenAIServer(t, http.StatusOK, chatBody)
	g, reporter, _ := setupGateway(t, vendor, 1)

	req := &provider.Request{Model: "gpt-4o-mini", Prompt: "hi"}
	if _, err := g.GenerateText(tenantCtx(), req); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	_, err := g.GenerateText(tenantCtx(), req)
	if !errors.Is(err, ratelimit.ErrRateLimitExceeded) {
		t.Fatalf("Expected ErrRateLimitExceeded, got %v", err)
	}
	if vendor.hits.Load() != 1 {
		t.Errorf("Expected the vendor to be called once, got %d", vendor.hits.Load())
	}
	if len(reporter.records) != 1 {
		t.Errorf("Expected one billed call, got %d", len(reporter.records))
	}
}

func TestGateway_BillingFailureStillReturnsResponse(t *testing.T) {
	vendor := newOpenAIServer(t, http.StatusOK, chatBody)
	g, reporter, _ := setupGateway(t, vendor, 10)
	reporter.reportFunc = func(context.Context, *billing.UsageRecord) error {
		return errors.New("billing down")
	}

	resp, err := g.GenerateText(tenantCtx(), &provider.Request{Model: "gpt-4o-mini", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Expected the vendor response despite billing failure, got %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("Expected 'hello', got %q", resp.Content)
	}
}

func TestGateway_VendorErrorNormalized(t *testing.T) {
	vendor := newOpenAIServer(t, http.StatusTooManyRequests,
		`{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`)
	g, reporter, _ := setupGateway(t, vendor, 10)

	_, err := g.GenerateText(tenantCtx(), &provider.Request{Model: "gpt-4o-mini", Prompt: "hi"})
	var normalized *provider.Error
	if !errors.As(err, &normalized) {
		t.Fatalf("Expected *provider.Error, got %T: %v", err, err)
	}
	if normalized.Status != http.StatusTooManyRequests || normalized.Code != "rate_limit_exceeded" {
		t.Errorf("unexpected normalized error: %+v", normalized)
	}
	if normalized.Message != "Rate limit reached" {
		t.Errorf("unexpected message %q", normalized.Message)
	}
	if len(reporter.records) != 0 {
		t.Error("Expected vendor failures to be unbilled")
	}
}

func TestGateway_UnsupportedOperationNotBilled(t *testing.T) {
	vendor := newOpenAIServer(t, http.StatusOK, chatBody)
	g, reporter, _ := setupGateway(t, vendor, 10)

	resp, err := g.GenerateImage(tenantCtx(), &provider.ImageRequest{Model: "claude-3-5-haiku-20241022", Prompt: "a cat"})
	if err != nil {
		t.Fatalf("Expected a response, got %v", err)
	}
	if resp.Status != http.StatusBadRequest || resp.Content == "" {
		t.Errorf("Expected explanatory 400 response, got %+v", resp)
	}
	if vendor.hits.Load() != 0 {
		t.Error("Expected no vendor call")
	}
	if len(reporter.records) != 0 {
		t.Error("Expected unsupported operations to be unbilled")
	}
}

func TestGateway_UnpricedModelFails(t *testing.T) {
	p := &MockProvider{
		name:   "mock",
		models: []catalog.Model{textModel("m")},
		costFunc: func(id string, _ json.RawMessage, _ provider.CostParams) (float64, error) {
			return 0, provider.ErrUnsupportedModelForCost
		},
	}
	reporter := &mockBillingStore{}
	g := NewGateway(NewRouter([]provider.Provider{p}), nil, reporter, Options{PricePerCredit: 0.01})

	_, err := g.GenerateText(tenantCtx(), &provider.Request{Model: "m"})
	if !errors.Is(err, provider.ErrUnsupportedModelForCost) {
		t.Fatalf("Expected ErrUnsupportedModelForCost, got %v", err)
	}
	if len(reporter.records) != 0 {
		t.Error("Expected nothing billed at zero cost")
	}
}

func TestGateway_BillingOutlivesCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(tenantCtx())
	defer cancel()

	p := &MockProvider{
		name:   "mock",
		models: []catalog.Model{textModel("m")},
		textFunc: func(context.Context, *provider.Request) (*provider.Response, error) {
			cancel()
			return okResponse("done"), nil
		},
	}
	var reportErr error
	reporter := &mockBillingStore{reportFunc: func(ctx context.Context, _ *billing.UsageRecord) error {
		reportErr = ctx.Err()
		return nil
	}}
	g := NewGateway(NewRouter([]provider.Provider{p}), nil, reporter, Options{PricePerCredit: 0.01})

	if _, err := g.GenerateText(ctx, &provider.Request{Model: "m"}); err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if len(reporter.records) != 1 {
		t.Fatalf("Expected one usage record, got %d", len(reporter.records))
	}
	if reportErr != nil {
		t.Errorf("billing saw a cancelled context: %v", reportErr)
	}
	if reporter.records[0].Millicredits != 1050 {
		t.Errorf("Expected 1050 millicredits, got %d", reporter.records[0].Millicredits)
	}
}

func TestGateway_ImagePassesCostParams(t *testing.T) {
	var got provider.CostParams
	p := &MockProvider{
		name:   "mock",
		models: []catalog.Model{imageModel("img")},
		costFunc: func(_ string, _ json.RawMessage, params provider.CostParams) (float64, error) {
			got = params
			return 0.08, nil
		},
	}
	reporter := &mockBillingStore{}
	g := NewGateway(NewRouter([]provider.Provider{p}), nil, reporter, Options{PricePerCredit: 0.01})

	_, err := g.GenerateImage(tenantCtx(), &provider.ImageRequest{
		Model:  "img",
		Prompt: "a cat",
		Params: provider.ImageParams{N: 2, Size: "1024x1792", Quality: "hd"},
	})
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if got.Image.N != 2 || got.Image.Size != "1024x1792" || got.Image.Quality != "hd" {
		t.Errorf("unexpected cost params %+v", got)
	}
	if rec := reporter.records[0]; rec.SkuID != "llm:mock:generateImage:img" || rec.Millicredits != 8000 {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestGateway_Models(t *testing.T) {
	p := &MockProvider{name: "mock", models: []catalog.Model{textModel("t"), imageModel("i")}}
	g := NewGateway(NewRouter([]provider.Provider{p}), nil, nil, Options{})

	if got := g.Models(catalog.ModalityImage); len(got) != 1 || got[0] != "i" {
		t.Errorf("unexpected image models %v", got)
	}
}

func TestGateway_RateLimits(t *testing.T) {
	vendor := newOpenAIServer(t, http.StatusOK, chatBody)
	g, _, _ := setupGateway(t, vendor, 10)

	if _, err := g.GenerateText(tenantCtx(), &provider.Request{Model: "gpt-4o-mini", Prompt: "hi"}); err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}

	limits, err := g.RateLimits(tenantCtx())
	if err != nil {
		t.Fatalf("RateLimits failed: %v", err)
	}
	if len(limits) != 1 || limits[0].Scope != "hourly" || limits[0].Limit != 10 || limits[0].Remaining != 9 {
		t.Errorf("unexpected limits %+v", limits)
	}

	if _, err := g.RateLimits(context.Background()); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated, got %v", err)
	}

	open := NewGateway(NewRouter(nil), nil, nil, Options{})
	limits, err = open.RateLimits(tenantCtx())
	if err != nil || len(limits) != 0 {
		t.Errorf("Expected no limits without guards, got %+v, %v", limits, err)
	}
}

func TestEstimateTokens(t *testing.T) {
	req := &provider.Request{Prompt: "12345678", System: "1234", Params: provider.Params{MaxTokens: provider.IntPtr(100)}}
	if got := estimateTokens(req); got != 103 {
		t.Errorf("Expected 103, got %d", got)
	}
}
