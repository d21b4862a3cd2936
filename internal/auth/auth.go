package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrKeyNotFound     = errors.New("api key not found")
	ErrUnauthenticated = errors.New("unauthenticated")
)

type APIKey struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	OrgID     string    `json:"org_id"`
	KeyHash   string    `json:"key_hash"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (a *APIKey) MarshalBinary() ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (a *APIKey) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, a)
}

type Store interface {
	GetByKey(ctx context.Context, key string) (*APIKey, error)
	Create(ctx context.Context, apiKey *APIKey) error
	Revoke(ctx context.Context, keyID string) error
}

// Identity is the caller a request is billed and limited against.
type Identity struct {
	TenantID string
	OrgID    string
}

type Middleware func(next http.Handler) http.Handler

type contextKey string

const (
	identityKey  contextKey = "identity"
	apiKeyIDKey  contextKey = "api_key_id"
	requestIDKey contextKey = "request_id"
)

const cacheTTL = 5 * time.Minute

// NewMiddleware authenticates requests by bearer token. Tokens that parse as
// JWTs are verified with tokens; everything else is treated as an API key.
// tokens may be nil to accept API keys only.
func NewMiddleware(store Store, cache *redis.Client, tokens *TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			ctx = context.WithValue(ctx, requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header", "UNAUTHENTICATED")
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			if tokens != nil && LooksLikeJWT(token) {
				id, err := tokens.Verify(token)
				if err != nil {
					writeError(w, http.StatusUnauthorized, "invalid token", "UNAUTHENTICATED")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
				return
			}

			apiKey, err := lookupKey(ctx, store, cache, token)
			if err != nil {
				if errors.Is(err, ErrKeyNotFound) {
					writeError(w, http.StatusUnauthorized, "invalid API key", "UNAUTHENTICATED")
					return
				}
				log.Printf("[auth] key lookup failed: %v", err)
				writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL")
				return
			}

			ctx = WithIdentity(ctx, Identity{TenantID: apiKey.TenantID, OrgID: apiKey.OrgID})
			ctx = WithAPIKeyID(ctx, apiKey.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeError emits the same error envelope as the API handlers.
func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"error": map[string]any{
		"message": message,
		"code":    code,
		"status":  status,
	}}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[auth] failed to encode error: %v", err)
	}
}

// lookupKey resolves a raw API key through the Redis cache, falling back to
// the store. Cache errors are logged and bypassed.
func lookupKey(ctx context.Context, store Store, cache *redis.Client, key string) (*APIKey, error) {
	redisKey := fmt.Sprintf("auth:%s", HashKey(key))

	if cache != nil {
		var apiKey APIKey
		err := cache.Get(ctx, redisKey).Scan(&apiKey)
		if err == nil {
			return &apiKey, nil
		} else if err != redis.Nil {
			log.Printf("[auth] redis error: %v", err)
		}
	}

	apiKey, err := store.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		_ = cache.Set(ctx, redisKey, apiKey, cacheTTL).Err()
	}
	return apiKey, nil
}

// HashKey is the stored form of a raw API key.
func HashKey(key string) string {
	h := sha256.New()
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

// RequireIdentity returns the authenticated caller or ErrUnauthenticated.
func RequireIdentity(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.TenantID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetAPIKeyID is the id of the API key that authenticated the request, or
// "" for token-authenticated requests.
func GetAPIKeyID(ctx context.Context) string {
	if id, ok := ctx.Value(apiKeyIDKey).(string); ok {
		return id
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithAPIKeyID(ctx context.Context, apiKeyID string) context.Context {
	return context.WithValue(ctx, apiKeyIDKey, apiKeyID)
}
