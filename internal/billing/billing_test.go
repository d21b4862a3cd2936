package billing

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
)

func TestMillicredits(t *testing.T) {
	tests := []struct {
		name  string
		cost  float64
		price float64
		want  int64
	}{
		{"tiny cost rounds up to one", 0.000001, 0.01, 1},
		{"sub-millicredit at higher price", 0.00001, 0.02, 1},
		{"exact multiple", 0.05, 0.005, 10000},
		{"one dollar", 1, 0.01, 100000},
		{"float noise", 0.1, 0.01, 10000},
		{"fractional rounds up", 0.0105, 0.01, 1050},
		{"zero cost", 0, 0.01, 0},
		{"negative cost", -1, 0.01, 0},
		{"zero price", 1, 0, 0},
		{"overflow clamps", 1e20, 0.0001, math.MaxInt64},
		{"infinite cost clamps", math.Inf(1), 0.01, math.MaxInt64},
		{"near the top still rounds", 9e15, 1, 9e18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Millicredits(tt.cost, tt.price))
		})
	}
}

func TestSku(t *testing.T) {
	assert.Equal(t, "llm:openai:generateText:gpt-4o-mini", SkuID("openai", "generateText", "gpt-4o-mini"))
	assert.Equal(t, "LLM OpenAI Generate Text gpt-4o-mini", SkuName("openai", "generateText", "gpt-4o-mini"))
	assert.Equal(t, "LLM xAI Generate Image grok-2-image", SkuName("xai", "generateImage", "grok-2-image"))
	assert.Equal(t, "LLM Gemini Generate Structured Data gemini-2.0-flash",
		SkuName("gemini", "generateStructuredData", "gemini-2.0-flash"))
	assert.Equal(t, "LLM acme Generate Text m", SkuName("acme", "generateText", "m"))
}

type fakeUsageRecords struct {
	calls []*stripe.UsageRecordParams
	err   error
}

func (f *fakeUsageRecords) New(params *stripe.UsageRecordParams) (*stripe.UsageRecord, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.UsageRecord{Quantity: *params.Quantity}, nil
}

func TestStripeReporter(t *testing.T) {
	fake := &fakeUsageRecords{}
	r := NewStripeReporterWith(fake, map[string]string{"org-1": "si_123"})

	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	rec := &UsageRecord{OrgID: "org-1", RequestID: "req-1", Millicredits: 1050, CreatedAt: created}
	require.NoError(t, r.ReportUsage(context.Background(), rec))

	require.Len(t, fake.calls, 1)
	p := fake.calls[0]
	assert.Equal(t, "si_123", *p.SubscriptionItem)
	assert.Equal(t, int64(1050), *p.Quantity)
	assert.Equal(t, created.Unix(), *p.Timestamp)
	assert.Equal(t, "increment", *p.Action)
	assert.Equal(t, "req-1", *p.IdempotencyKey)

	// Unmapped orgs and free calls are skipped.
	require.NoError(t, r.ReportUsage(context.Background(), &UsageRecord{OrgID: "org-2", Millicredits: 5}))
	require.NoError(t, r.ReportUsage(context.Background(), &UsageRecord{OrgID: "org-1"}))
	assert.Len(t, fake.calls, 1)
}

func TestStripeReporter_Error(t *testing.T) {
	boom := errors.New("stripe down")
	r := NewStripeReporterWith(&fakeUsageRecords{err: boom}, map[string]string{"org-1": "si_123"})

	err := r.ReportUsage(context.Background(), &UsageRecord{OrgID: "org-1", Millicredits: 1})
	assert.ErrorIs(t, err, boom)
}

func TestNewStripeReporter_RequiresKey(t *testing.T) {
	_, err := NewStripeReporter("", nil)
	assert.Error(t, err)
}

type reporterFunc func(context.Context, *UsageRecord) error

func (f reporterFunc) ReportUsage(ctx context.Context, rec *UsageRecord) error { return f(ctx, rec) }

func TestMultiReporter(t *testing.T) {
	boom := errors.New("boom")
	var seen int
	ok := reporterFunc(func(context.Context, *UsageRecord) error { seen++; return nil })
	bad := reporterFunc(func(context.Context, *UsageRecord) error { seen++; return boom })

	m := MultiReporter{bad, nil, ok, LogReporter{}}
	err := m.ReportUsage(context.Background(), &UsageRecord{})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, seen, "every reporter runs after a failure")
	assert.NoError(t, MultiReporter{ok}.ReportUsage(context.Background(), &UsageRecord{}))
}
