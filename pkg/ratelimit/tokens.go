package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// TokenLimiter is a tokens-per-minute guard on top of
// github.com/vnmchuo/ratelimiter.
type TokenLimiter struct {
	store extratelimit.Limiter
	limit int
}

func NewTokenLimiter(rdb *redis.Client, tokensPerMinute int) *TokenLimiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(tokensPerMinute),
		extratelimit.WithWindow(time.Minute),
	)
	return &TokenLimiter{store: store, limit: tokensPerMinute}
}

// NewTokenLimiterWithStore wraps an existing limiter store.
func NewTokenLimiterWithStore(store extratelimit.Limiter, tokensPerMinute int) *TokenLimiter {
	return &TokenLimiter{store: store, limit: tokensPerMinute}
}

func tokenKey(tenantID string) string {
	return fmt.Sprintf("ratelimit:tokens:%s", tenantID)
}

func (l *TokenLimiter) Check(ctx context.Context, req Request) error {
	res, err := l.store.AllowN(ctx, tokenKey(req.TenantID), max(req.Tokens, 1))
	if err != nil {
		return fmt.Errorf("token limit store: %w", err)
	}
	if !res.Allowed {
		return &ExceededError{Scope: "tokens_per_minute", Limit: l.limit, RetryAfter: time.Minute}
	}
	return nil
}

func (l *TokenLimiter) Status(ctx context.Context, tenantID string) (*extratelimit.Result, error) {
	return l.store.Status(ctx, tokenKey(tenantID))
}

// Standing reports the tenant's remaining token budget for the current
// minute.
func (l *TokenLimiter) Standing(ctx context.Context, tenantID string) (*Standing, error) {
	res, err := l.Status(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("token limit store: %w", err)
	}
	limit := res.Limit
	if limit == 0 {
		limit = l.limit
	}
	return &Standing{
		Scope:             "tokens_per_minute",
		Limit:             limit,
		Remaining:         res.Remaining,
		ResetAfterSeconds: int64(res.ResetAfter.Seconds()),
	}, nil
}
