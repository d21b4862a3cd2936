package billing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

// UsageRecordCreator is the subset of the Stripe usage record API we call.
type UsageRecordCreator interface {
	New(params *stripe.UsageRecordParams) (*stripe.UsageRecord, error)
}

// StripeReporter pushes millicredits to metered Stripe subscription items.
type StripeReporter struct {
	records UsageRecordCreator
	items   map[string]string // org id -> subscription item id
}

// NewStripeReporter creates a reporter backed by the Stripe API.
func NewStripeReporter(apiKey string, items map[string]string) (*StripeReporter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe API key is required")
	}

	sc := &client.API{}
	sc.Init(apiKey, nil)

	return NewStripeReporterWith(sc.UsageRecords, items), nil
}

func NewStripeReporterWith(records UsageRecordCreator, items map[string]string) *StripeReporter {
	m := make(map[string]string, len(items))
	for org, item := range items {
		m[org] = item
	}
	return &StripeReporter{records: records, items: m}
}

func (s *StripeReporter) ReportUsage(ctx context.Context, rec *UsageRecord) error {
	if rec.Millicredits <= 0 {
		return nil
	}

	item, ok := s.items[rec.OrgID]
	if !ok {
		return nil
	}

	params := &stripe.UsageRecordParams{
		SubscriptionItem: stripe.String(item),
		Quantity:         stripe.Int64(rec.Millicredits),
		Timestamp:        stripe.Int64(rec.CreatedAt.Unix()),
		Action:           stripe.String("increment"),
	}
	params.Context = ctx
	if rec.RequestID != "" {
		params.SetIdempotencyKey(rec.RequestID)
	}

	if _, err := s.records.New(params); err != nil {
		return fmt.Errorf("stripe usage record for org %s: %w", rec.OrgID, err)
	}
	return nil
}

// MultiReporter fans a record out to every reporter and joins their errors.
type MultiReporter []Reporter

func (m MultiReporter) ReportUsage(ctx context.Context, rec *UsageRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.ReportUsage(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogReporter writes usage to the process log.
type LogReporter struct{}

func (LogReporter) ReportUsage(_ context.Context, rec *UsageRecord) error {
	log.Printf("[billing] tenant=%s org=%s key=%s sku=%s millicredits=%d cost=%.6f",
		rec.TenantID, rec.OrgID, rec.APIKeyID, rec.SkuID, rec.Millicredits, rec.CostUSD)
	return nil
}
