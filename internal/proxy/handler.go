package proxy

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vnmchuo/llm-relay/internal/auth"
	"github.com/vnmchuo/llm-relay/internal/billing"
	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/pkg/ratelimit"
)

type Handler struct {
	gateway *Gateway
	usage   billing.Store
}

// NewHandler exposes gateway over HTTP. usage may be nil, in which case the
// usage endpoint reports 503.
func NewHandler(gateway *Gateway, usage billing.Store) *Handler {
	return &Handler{gateway: gateway, usage: usage}
}

type textEnvelope struct {
	Request *provider.Request `json:"request"`
}

type imageEnvelope struct {
	Request *provider.ImageRequest `json:"request"`
}

type responseEnvelope struct {
	Response *provider.Response `json:"response"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type,omitempty"`
	Status  int    `json:"status"`
}

// Routes registers the authenticated API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/v1/models", h.HandleModels)
	r.Post("/v1/llm/generate-text", h.HandleGenerateText)
	r.Post("/v1/llm/generate-structured-data", h.HandleGenerateStructuredData)
	r.Post("/v1/llm/generate-image", h.HandleGenerateImage)
	r.Get("/v1/usage", h.HandleUsage)
	r.Get("/v1/ratelimit", h.HandleRateLimit)
}

func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("modality")
	if raw == "" {
		raw = string(catalog.ModalityText)
	}
	modality, ok := catalog.ParseModality(raw)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
			Message: "modality must be text or image", Code: "INVALID_MODALITY", Status: http.StatusBadRequest,
		}})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"models": h.gateway.Models(modality)})
}

func (h *Handler) HandleGenerateText(w http.ResponseWriter, r *http.Request) {
	var env textEnvelope
	if !decode(w, r, &env) || !h.requireRequest(w, env.Request != nil) {
		return
	}
	resp, err := h.gateway.GenerateText(r.Context(), env.Request)
	h.reply(w, resp, err)
}

func (h *Handler) HandleGenerateStructuredData(w http.ResponseWriter, r *http.Request) {
	var env textEnvelope
	if !decode(w, r, &env) || !h.requireRequest(w, env.Request != nil) {
		return
	}
	resp, err := h.gateway.GenerateStructuredData(r.Context(), env.Request)
	h.reply(w, resp, err)
}

func (h *Handler) HandleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var env imageEnvelope
	if !decode(w, r, &env) || !h.requireRequest(w, env.Request != nil) {
		return
	}
	resp, err := h.gateway.GenerateImage(r.Context(), env.Request)
	h.reply(w, resp, err)
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := auth.RequireIdentity(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.usage == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]errorBody{"error": {
			Message: "usage ledger not configured", Code: "UNAVAILABLE", Status: http.StatusServiceUnavailable,
		}})
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30) // Default: last 30 days
	to := now

	for name, dst := range map[string]*time.Time{"from": &from, "to": &to} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
				Message: "invalid '" + name + "' date format (use RFC3339)", Code: "INVALID_DATE", Status: http.StatusBadRequest,
			}})
			return
		}
		*dst = t
	}

	records, err := h.usage.GetUsageByTenant(ctx, id.TenantID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	totals, err := h.usage.GetTotalsByTenant(ctx, id.TenantID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant_id": id.TenantID,
		"totals":    totals,
		"records":   records,
		"from":      from,
		"to":        to,
	})
}

func (h *Handler) HandleRateLimit(w http.ResponseWriter, r *http.Request) {
	limits, err := h.gateway.RateLimits(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]ratelimit.Standing{"limits": limits})
}

func (h *Handler) requireRequest(w http.ResponseWriter, ok bool) bool {
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
			Message: "missing request", Code: "INVALID_REQUEST", Status: http.StatusBadRequest,
		}})
	}
	return ok
}

func (h *Handler) reply(w http.ResponseWriter, resp *provider.Response, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, responseEnvelope{Response: resp})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
			Message: "invalid request body", Code: "INVALID_REQUEST", Status: http.StatusBadRequest,
		}})
		return false
	}
	return true
}

// writeError maps gateway failures to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var (
		exceeded   *ratelimit.ExceededError
		normalized *provider.Error
		body       errorBody
	)

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		body = errorBody{Message: "unauthorized", Code: "UNAUTHENTICATED", Status: http.StatusUnauthorized}
	case errors.Is(err, provider.ErrUnsupportedModel):
		body = errorBody{Message: err.Error(), Code: "UNSUPPORTED_MODEL", Status: http.StatusBadRequest}
	case errors.As(err, &exceeded):
		secs := int(math.Ceil(exceeded.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		body = errorBody{Message: err.Error(), Code: "RATE_LIMIT_EXCEEDED", Type: exceeded.Scope, Status: http.StatusTooManyRequests}
	case errors.Is(err, ErrProviderUnavailable):
		body = errorBody{Message: err.Error(), Code: "PROVIDER_UNAVAILABLE", Status: http.StatusServiceUnavailable}
	case errors.As(err, &normalized):
		// The vendor's own status travels in the body.
		writeJSON(w, http.StatusBadGateway, map[string]*provider.Error{"error": normalized})
		return
	case errors.Is(err, provider.ErrUnsupportedModelForCost):
		body = errorBody{Message: "pricing unavailable for model", Code: "UNSUPPORTED_MODEL_FOR_COST", Status: http.StatusInternalServerError}
	default:
		log.Printf("[handler] internal error: %v", err)
		body = errorBody{Message: "internal server error", Code: "INTERNAL", Status: http.StatusInternalServerError}
	}
	writeJSON(w, body.Status, map[string]errorBody{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[handler] failed to encode response: %v", err)
	}
}
