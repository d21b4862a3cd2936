package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vnmchuo/llm-relay/internal/auth"
	"github.com/vnmchuo/llm-relay/internal/billing"
	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/pkg/ratelimit"
)

func withTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithIdentity(r.Context(), auth.Identity{TenantID: "tenant-1", OrgID: "org-1"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func setupHandler(p *MockProvider, limiter ratelimit.Guard, authenticated bool) (http.Handler, *mockBillingStore) {
	store := &mockBillingStore{}
	g := NewGateway(NewRouter([]provider.Provider{p}), limiter, store, Options{PricePerCredit: 0.01})
	h := NewHandler(g, store)

	r := chi.NewRouter()
	if authenticated {
		r.Use(withTenant)
	}
	h.Routes(r)
	return r, store
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var out struct {
		Error errorBody `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return out.Error
}

func defaultMock() *MockProvider {
	return &MockProvider{name: "mock", models: []catalog.Model{textModel("m"), imageModel("img")}}
}

func TestHandleModels(t *testing.T) {
	h, _ := setupHandler(defaultMock(), nil, true)

	w := serve(h, http.MethodGet, "/v1/models?modality=image", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var out struct {
		Models []string `json:"models"`
	}
	json.NewDecoder(w.Body).Decode(&out)
	if len(out.Models) != 1 || out.Models[0] != "img" {
		t.Errorf("unexpected models %v", out.Models)
	}

	if w := serve(h, http.MethodGet, "/v1/models?modality=audio", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown modality, got %d", w.Code)
	}
}

func TestHandleGenerateText_Success(t *testing.T) {
	h, store := setupHandler(defaultMock(), nil, true)

	w := serve(h, http.MethodPost, "/v1/llm/generate-text", `{"request": {"model": "m", "prompt": "hi"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Response provider.Response `json:"response"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Response.Content != "mock" || out.Response.Status != 200 {
		t.Errorf("unexpected response %+v", out.Response)
	}
	if len(store.records) != 1 {
		t.Errorf("Expected one usage record, got %d", len(store.records))
	}
}

func TestHandleGenerateStructuredData(t *testing.T) {
	var got *provider.Request
	p := defaultMock()
	p.textFunc = func(_ context.Context, req *provider.Request) (*provider.Response, error) {
		got = req
		return okResponse("{}"), nil
	}
	h, _ := setupHandler(p, nil, true)

	w := serve(h, http.MethodPost, "/v1/llm/generate-structured-data",
		`{"request": {"model": "m", "prompt": "extract", "data": {"a": 1}, "params": {"responseFormat": "json"}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got == nil || got.Params.ResponseFormat != "json" || got.Data == nil {
		t.Errorf("request not passed through: %+v", got)
	}
}

func TestHandleGenerateImage(t *testing.T) {
	h, store := setupHandler(defaultMock(), nil, true)

	w := serve(h, http.MethodPost, "/v1/llm/generate-image", `{"request": {"model": "img", "prompt": "a cat", "params": {"n": 2}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if len(store.records) != 1 || store.records[0].Operation != "generateImage" {
		t.Errorf("unexpected usage records %+v", store.records)
	}
}

func TestHandleGenerateText_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		textErr    error
		status     int
		code       string
		retryAfter string
	}{
		{name: "invalid body", body: `{`, status: http.StatusBadRequest, code: "INVALID_REQUEST"},
		{name: "missing request", body: `{}`, status: http.StatusBadRequest, code: "INVALID_REQUEST"},
		{name: "unknown model", body: `{"request": {"model": "nope"}}`, status: http.StatusBadRequest, code: "UNSUPPORTED_MODEL"},
		{
			name:    "vendor error",
			body:    `{"request": {"model": "m"}}`,
			textErr: &provider.VendorError{Provider: "mock", Status: 401, Body: "bad key"},
			status:  http.StatusBadGateway,
			code:    "VENDOR_ERROR",
		},
		{
			name:    "transport error",
			body:    `{"request": {"model": "m"}}`,
			textErr: errors.New("connection reset"),
			status:  http.StatusBadGateway,
			code:    "UNKNOWN_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaultMock()
			if tt.textErr != nil {
				err := tt.textErr
				p.textFunc = func(context.Context, *provider.Request) (*provider.Response, error) { return nil, err }
			}
			h, store := setupHandler(p, nil, true)

			w := serve(h, http.MethodPost, "/v1/llm/generate-text", tt.body)
			if w.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if got := decodeError(t, w); got.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, got.Code)
			}
			if len(store.records) != 0 {
				t.Error("Expected nothing billed")
			}
		})
	}
}

func TestHandleGenerateText_RateLimited(t *testing.T) {
	limiter := ratelimit.GuardFunc(func(context.Context, ratelimit.Request) error {
		return &ratelimit.ExceededError{Scope: "hourly", Limit: 1, RetryAfter: 90 * time.Second}
	})
	p := defaultMock()
	h, _ := setupHandler(p, limiter, true)

	w := serve(h, http.MethodPost, "/v1/llm/generate-text", `{"request": {"model": "m"}}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "90" {
		t.Errorf("Expected Retry-After 90, got %q", got)
	}
	if p.calls != 0 {
		t.Error("vendor called after rate limit rejection")
	}
}

func TestHandleGenerateText_Unauthorized(t *testing.T) {
	h, _ := setupHandler(defaultMock(), nil, false)

	w := serve(h, http.MethodPost, "/v1/llm/generate-text", `{"request": {"model": "m"}}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestHandleRateLimit(t *testing.T) {
	store := newCountingStore()
	limiter := ratelimit.NewHourlyLimiter(store, 5, 0)
	h, _ := setupHandler(defaultMock(), limiter, true)

	for i := 0; i < 2; i++ {
		if w := serve(h, http.MethodPost, "/v1/llm/generate-text", `{"request": {"model": "m", "prompt": "hi"}}`); w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
	}

	w := serve(h, http.MethodGet, "/v1/ratelimit", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var out struct {
		Limits []ratelimit.Standing `json:"limits"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(out.Limits) != 1 || out.Limits[0].Remaining != 3 || out.Limits[0].Limit != 5 {
		t.Errorf("unexpected limits %+v", out.Limits)
	}
	if store.incrs != 2 {
		t.Errorf("status read must not increment, got %d increments", store.incrs)
	}

	unauth, _ := setupHandler(defaultMock(), limiter, false)
	if w := serve(unauth, http.MethodGet, "/v1/ratelimit", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestHandleUsage(t *testing.T) {
	p := defaultMock()
	store := &mockBillingStore{
		usageFunc: func(_ context.Context, tenantID string, from, to time.Time) ([]*billing.UsageRecord, error) {
			if tenantID != "tenant-1" {
				t.Errorf("unexpected tenant %s", tenantID)
			}
			if !from.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
				t.Errorf("unexpected from %v", from)
			}
			return []*billing.UsageRecord{{SkuID: "llm:mock:generateText:m", Millicredits: 10}}, nil
		},
		totalsFunc: func(context.Context, string, time.Time, time.Time) (*billing.Totals, error) {
			return &billing.Totals{Requests: 1, CostUSD: 0.0001, Millicredits: 10}, nil
		},
	}
	g := NewGateway(NewRouter([]provider.Provider{p}), nil, store, Options{})
	r := chi.NewRouter()
	r.Use(withTenant)
	NewHandler(g, store).Routes(r)

	w := serve(r, http.MethodGet, "/v1/usage?from=2025-01-01T00:00:00Z", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Totals  billing.Totals `json:"totals"`
		Records []any          `json:"records"`
	}
	json.NewDecoder(w.Body).Decode(&out)
	if out.Totals.Millicredits != 10 || len(out.Records) != 1 {
		t.Errorf("unexpected usage body %+v", out)
	}

	if w := serve(r, http.MethodGet, "/v1/usage?to=yesterday", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad date, got %d", w.Code)
	}
}

func TestHandleUsage_StoreError(t *testing.T) {
	store := &mockBillingStore{
		usageFunc: func(context.Context, string, time.Time, time.Time) ([]*billing.UsageRecord, error) {
			return nil, errors.New("db down")
		},
	}
	g := NewGateway(NewRouter(nil), nil, store, Options{})
	r := chi.NewRouter()
	r.Use(withTenant)
	NewHandler(g, store).Routes(r)

	if w := serve(r, http.MethodGet, "/v1/usage", ""); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}
