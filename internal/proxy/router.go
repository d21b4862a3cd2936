package proxy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
)

// ErrProviderUnavailable means the provider's circuit breaker is open.
var ErrProviderUnavailable = errors.New("provider unavailable")

// Router owns the ordered adapter set, the model index built from it and one
// circuit breaker per adapter. It is immutable after NewRouter.
type Router struct {
	providers []provider.Provider
	index     map[string]provider.Provider
	breakers  map[string]*gobreaker.CircuitBreaker
}

func NewRouter(providers []provider.Provider) *Router {
	r := &Router{
		providers: providers,
		index:     make(map[string]provider.Provider),
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, p := range providers {
		for _, m := range p.Models() {
			if owner, ok := r.index[m.ID]; ok {
				log.Printf("[router] model %s already served by %s, ignoring %s", m.ID, owner.Name(), p.Name())
				continue
			}
			r.index[m.ID] = p
		}

		settings := gobreaker.Settings{
			Name:        p.Name(),
			MaxRequests: 3,
			Interval:    5 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsSuccessful: countsAsSuccess,
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("[router] breaker %s: %s -> %s", name, from, to)
			},
		}
		r.breakers[p.Name()] = gobreaker.NewCircuitBreaker(settings)
	}
	return r
}

// countsAsSuccess keeps caller mistakes from tripping the breaker. Only
// transport failures, vendor 5xx and 429 count against the vendor.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var vendorErr *provider.VendorError
	if errors.As(err, &vendorErr) {
		return vendorErr.Status < http.StatusInternalServerError && vendorErr.Status != http.StatusTooManyRequests
	}
	return false
}

// Resolve returns the adapter serving model.
func (r *Router) Resolve(model string) (provider.Provider, error) {
	p, ok := r.index[model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnsupportedModel, model)
	}
	return p, nil
}

// Models lists model ids supporting modality in registration order.
func (r *Router) Models(modality catalog.Modality) []string {
	ids := []string{}
	for _, p := range r.providers {
		for _, m := range catalog.Filter(p.Models(), modality) {
			if r.index[m.ID] == p {
				ids = append(ids, m.ID)
			}
		}
	}
	return ids
}

// Providers returns the registered adapters in registration order.
func (r *Router) Providers() []provider.Provider {
	return r.providers
}

// Execute runs call through p's circuit breaker. Calls are never retried.
func (r *Router) Execute(ctx context.Context, p provider.Provider, call func(context.Context) (*provider.Response, error)) (*provider.Response, error) {
	cb, ok := r.breakers[p.Name()]
	if !ok {
		return call(ctx)
	}
	result, err := cb.Execute(func() (interface{}, error) {
		return call(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, p.Name(), err)
	}
	if err != nil {
		return nil, err
	}
	return result.(*provider.Response), nil
}
