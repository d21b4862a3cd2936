package proxy

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/vnmchuo/llm-relay/internal/billing"
	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
)

type MockProvider struct {
	name   string
	models []catalog.Model

	textFunc  func(ctx context.Context, req *provider.Request) (*provider.Response, error)
	imageFunc func(ctx context.Context, req *provider.ImageRequest) (*provider.Response, error)
	costFunc  func(modelID string, full json.RawMessage, params provider.CostParams) (float64, error)

	calls int
}

func textModel(id string) catalog.Model {
	return catalog.Model{ID: id, Modalities: catalog.Text, Pricing: catalog.FlatTokenPricing{Input: 1, Output: 1}, TokenDivisor: 1_000_000}
}

func imageModel(id string) catalog.Model {
	return catalog.Model{ID: id, Modalities: catalog.Image, Pricing: catalog.FlatImagePricing{Price: 0.04}, TokenDivisor: 1}
}

func (m *MockProvider) Name() string            { return m.name }
func (m *MockProvider) Models() []catalog.Model { return m.models }

func (m *MockProvider) GenerateText(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	m.calls++
	if m.textFunc != nil {
		return m.textFunc(ctx, req)
	}
	return okResponse("mock"), nil
}

func (m *MockProvider) GenerateStructuredData(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return m.GenerateText(ctx, req)
}

func (m *MockProvider) GenerateImage(ctx context.Context, req *provider.ImageRequest) (*provider.Response, error) {
	m.calls++
	if m.imageFunc != nil {
		return m.imageFunc(ctx, req)
	}
	return okResponse("aW1hZ2U="), nil
}

func (m *MockProvider) CalculateCost(modelID string, full json.RawMessage, params provider.CostParams) (float64, error) {
	if m.costFunc != nil {
		return m.costFunc(modelID, full, params)
	}
	return 0.0105, nil
}

func (m *MockProvider) NormalizeError(err error) *provider.Error {
	return provider.NormalizeError(err, nil)
}

func okResponse(content string) *provider.Response {
	return &provider.Response{
		Content:      content,
		TotalTokens:  provider.IntPtr(30),
		FullResponse: json.RawMessage(`{}`),
		Status:       200,
	}
}

// Mock Billing Store
type mockBillingStore struct {
	mu      sync.Mutex
	records []*billing.UsageRecord

	reportFunc func(ctx context.Context, rec *billing.UsageRecord) error
	usageFunc  func(ctx context.Context, tenantID string, from, to time.Time) ([]*billing.UsageRecord, error)
	totalsFunc func(ctx context.Context, tenantID string, from, to time.Time) (*billing.Totals, error)
}

func (m *mockBillingStore) ReportUsage(ctx context.Context, rec *billing.UsageRecord) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	if m.reportFunc != nil {
		return m.reportFunc(ctx, rec)
	}
	return nil
}

func (m *mockBillingStore) GetUsageByTenant(ctx context.Context, tenantID string, from, to time.Time) ([]*billing.UsageRecord, error) {
	if m.usageFunc != nil {
		return m.usageFunc(ctx, tenantID, from, to)
	}
	return nil, nil
}

func (m *mockBillingStore) GetTotalsByTenant(ctx context.Context, tenantID string, from, to time.Time) (*billing.Totals, error) {
	if m.totalsFunc != nil {
		return m.totalsFunc(ctx, tenantID, from, to)
	}
	return &billing.Totals{}, nil
}

// countingStore is an in-memory ratelimit.CounterStore.
type countingStore struct {
	mu     sync.Mutex
	counts map[string]int64
	incrs  int
}

func newCountingStore() *countingStore {
	return &countingStore{counts: map[string]int64{}}
}

func (s *countingStore) IncrementAndGetCount(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incrs++
	s.counts[key]++
	return s.counts[key], nil
}

func (s *countingStore) SetExpiry(context.Context, string, time.Duration) error { return nil }

func (s *countingStore) GetCount(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key], nil
}
