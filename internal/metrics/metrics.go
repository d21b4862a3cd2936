// Package metrics exposes the relay's Prometheus collectors. A nil *Recorder
// is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder struct {
	gatherer prometheus.Gatherer

	requests        *prometheus.CounterVec
	vendorLatency   *prometheus.HistogramVec
	costUSD         *prometheus.CounterVec
	millicredits    *prometheus.CounterVec
	rateLimited     prometheus.Counter
	billingFailures prometheus.Counter
	unpriced        *prometheus.CounterVec
}

// New registers the relay collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWith(reg, reg)
}

func NewWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	r := &Recorder{
		gatherer: gatherer,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Gateway operations by provider, operation and response status.",
		}, []string{"provider", "operation", "status"}),
		vendorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_vendor_latency_seconds",
			Help:    "Latency of outbound vendor calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		costUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_cost_usd_total",
			Help: "Vendor cost in USD.",
		}, []string{"provider", "model"}),
		millicredits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_millicredits_total",
			Help: "Millicredits billed to tenants.",
		}, []string{"provider"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Calls rejected by a rate limit guard.",
		}),
		billingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_billing_failures_total",
			Help: "Usage reports that failed after a successful vendor call.",
		}),
		unpriced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_unpriced_total",
			Help: "Completed vendor calls whose model has no pricing.",
		}, []string{"provider", "model"}),
	}
	reg.MustRegister(r.requests, r.vendorLatency, r.costUSD, r.millicredits,
		r.rateLimited, r.billingFailures, r.unpriced)
	return r
}

func (r *Recorder) Request(providerID, operation string, status int) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(providerID, operation, strconv.Itoa(status)).Inc()
}

func (r *Recorder) VendorLatency(providerID string, d time.Duration) {
	if r == nil {
		return
	}
	r.vendorLatency.WithLabelValues(providerID).Observe(d.Seconds())
}

func (r *Recorder) Billed(providerID, model string, costUSD float64, millicredits int64) {
	if r == nil {
		return
	}
	r.costUSD.WithLabelValues(providerID, model).Add(costUSD)
	r.millicredits.WithLabelValues(providerID).Add(float64(millicredits))
}

func (r *Recorder) RateLimited() {
	if r == nil {
		return
	}
	r.rateLimited.Inc()
}

func (r *Recorder) BillingFailure() {
	if r == nil {
		return
	}
	r.billingFailures.Inc()
}

func (r *Recorder) Unpriced(providerID, model string) {
	if r == nil {
		return
	}
	r.unpriced.WithLabelValues(providerID, model).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
