package proxy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vnmchuo/llm-relay/internal/auth"
	"github.com/vnmchuo/llm-relay/internal/billing"
	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/metrics"
	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/pkg/ratelimit"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Options tune a Gateway. Zero values are valid.
type Options struct {
	PricePerCredit float64
	Metrics        *metrics.Recorder
	Tracer         trace.Tracer
}

// Gateway is the domain layer: it resolves the adapter for a model, applies
// rate guards, calls the vendor and bills the result.
type Gateway struct {
	router         *Router
	limiter        ratelimit.Guard
	reporter       billing.Reporter
	pricePerCredit float64
	metrics        *metrics.Recorder
	tracer         trace.Tracer
	now            func() time.Time
}

func NewGateway(router *Router, limiter ratelimit.Guard, reporter billing.Reporter, opts Options) *Gateway {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("relay")
	}
	return &Gateway{
		router:         router,
		limiter:        limiter,
		reporter:       reporter,
		pricePerCredit: opts.PricePerCredit,
		metrics:        opts.Metrics,
		tracer:         tracer,
		now:            time.Now,
	}
}

// Models lists the model ids available for modality.
func (g *Gateway) Models(modality catalog.Modality) []string {
	return g.router.Models(modality)
}

// RateLimits reports the caller's standing against every configured guard.
func (g *Gateway) RateLimits(ctx context.Context) ([]ratelimit.Standing, error) {
	id, err := auth.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if g.limiter == nil {
		return []ratelimit.Standing{}, nil
	}
	return ratelimit.Standings(ctx, g.limiter, id.TenantID)
}

func (g *Gateway) GenerateText(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return g.run(ctx, call{
		op:     provider.OpGenerateText,
		model:  req.Model,
		tokens: estimateTokens(req),
		do: func(ctx context.Context, p provider.Provider) (*provider.Response, error) {
			return p.GenerateText(ctx, req)
		},
	})
}

func (g *Gateway) GenerateStructuredData(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return g.run(ctx, call{
		op:     provider.OpGenerateStructuredData,
		model:  req.Model,
		tokens: estimateTokens(req),
		do: func(ctx context.Context, p provider.Provider) (*provider.Response, error) {
			return p.GenerateStructuredData(ctx, req)
		},
	})
}

func (g *Gateway) GenerateImage(ctx context.Context, req *provider.ImageRequest) (*provider.Response, error) {
	return g.run(ctx, call{
		op:    provider.OpGenerateImage,
		model: req.Model,
		cost:  provider.CostParams{Image: req.Params},
		do: func(ctx context.Context, p provider.Provider) (*provider.Response, error) {
			return p.GenerateImage(ctx, req)
		},
	})
}

type call struct {
	op     provider.Operation
	model  string
	tokens int
	cost   provider.CostParams
	do     func(ctx context.Context, p provider.Provider) (*provider.Response, error)
}

func (g *Gateway) run(ctx context.Context, c call) (resp *provider.Response, err error) {
	ctx, span := g.tracer.Start(ctx, "gateway."+string(c.op))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	id, err := auth.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tenant_id", id.TenantID),
		attribute.String("org_id", id.OrgID),
		attribute.String("model", c.model),
	)

	p, err := g.router.Resolve(c.model)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("provider", p.Name()))

	if g.limiter != nil {
		if err := g.limiter.Check(ctx, ratelimit.Request{TenantID: id.TenantID, Tokens: c.tokens}); err != nil {
			if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
				g.metrics.RateLimited()
			}
			return nil, err
		}
	}

	start := g.now()
	resp, err = g.router.Execute(ctx, p, func(ctx context.Context) (*provider.Response, error) {
		return c.do(ctx, p)
	})
	latency := g.now().Sub(start)
	g.metrics.VendorLatency(p.Name(), latency)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			g.metrics.Request(p.Name(), string(c.op), 503)
			return nil, err
		}
		normalized := p.NormalizeError(err)
		g.metrics.Request(p.Name(), string(c.op), normalized.Status)
		return nil, normalized
	}
	g.metrics.Request(p.Name(), string(c.op), resp.Status)

	// Unsupported operations come back as 400 responses and are not billed.
	if resp.Status >= 400 {
		return resp, nil
	}

	cost, err := p.CalculateCost(c.model, resp.FullResponse, c.cost)
	if err != nil {
		g.metrics.Unpriced(p.Name(), c.model)
		log.Printf("[gateway] cost calculation failed for %s/%s: %v", p.Name(), c.model, err)
		return nil, fmt.Errorf("calculate cost: %w", err)
	}
	credits := billing.Millicredits(cost, g.pricePerCredit)
	g.metrics.Billed(p.Name(), c.model, cost, credits)
	span.SetAttributes(
		attribute.Float64("cost_usd", cost),
		attribute.Int64("millicredits", credits),
	)

	g.report(ctx, &billing.UsageRecord{
		TenantID:     id.TenantID,
		OrgID:        id.OrgID,
		RequestID:    requestID(ctx),
		APIKeyID:     auth.GetAPIKeyID(ctx),
		Provider:     p.Name(),
		Model:        c.model,
		Operation:    string(c.op),
		SkuID:        billing.SkuID(p.Name(), string(c.op), c.model),
		SkuName:      billing.SkuName(p.Name(), string(c.op), c.model),
		Millicredits: credits,
		CostUSD:      cost,
		TotalTokens:  totalTokens(resp),
		Status:       resp.Status,
		LatencyMs:    latency.Milliseconds(),
		CreatedAt:    g.now().UTC(),
	})

	return resp, nil
}

// report sends usage on a context that outlives the caller. The vendor cost
// is already incurred, so failures are logged and never returned.
func (g *Gateway) report(ctx context.Context, rec *billing.UsageRecord) {
	if g.reporter == nil {
		return
	}
	if err := g.reporter.ReportUsage(context.WithoutCancel(ctx), rec); err != nil {
		g.metrics.BillingFailure()
		log.Printf("[gateway] failed to report usage for tenant %s (%s, %d millicredits): %v",
			rec.TenantID, rec.SkuID, rec.Millicredits, err)
	}
}

func requestID(ctx context.Context) string {
	if id := auth.GetRequestID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}

func totalTokens(resp *provider.Response) int {
	if resp.TotalTokens == nil {
		return 0
	}
	return *resp.TotalTokens
}

// estimateTokens is a rough pre-call size used by the tokens-per-minute
// guard: about four characters per token plus the requested output.
func estimateTokens(req *provider.Request) int {
	n := (len(req.Prompt) + len(req.System)) / 4
	if req.Data != nil {
		if s, err := provider.DataText(req.Data); err == nil {
			n += len(s) / 4
		}
	}
	if req.Params.MaxTokens != nil {
		n += *req.Params.MaxTokens
	}
	return n
}
