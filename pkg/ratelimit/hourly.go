package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is an atomic increment-with-TTL counter. GetCount reports a
// missing key as zero.
type CounterStore interface {
	IncrementAndGetCount(ctx context.Context, key string) (int64, error)
	SetExpiry(ctx context.Context, key string, ttl time.Duration) error
	GetCount(ctx context.Context, key string) (int64, error)
}

type RedisCounterStore struct {
	rdb redis.Cmdable
}

func NewRedisCounterStore(rdb redis.Cmdable) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) IncrementAndGetCount(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

func (s *RedisCounterStore) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

func (s *RedisCounterStore) GetCount(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// HourlyLimiter counts calls per tenant in UTC wall-clock hour buckets.
// Bursts across an hour boundary are allowed.
type HourlyLimiter struct {
	store  CounterStore
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewHourlyLimiter returns a limiter allowing limit calls per hour. A limit
// of zero or less disables it.
func NewHourlyLimiter(store CounterStore, limit int, window time.Duration) *HourlyLimiter {
	if window <= 0 {
		window = time.Hour
	}
	return &HourlyLimiter{store: store, limit: limit, window: window, now: time.Now}
}

// BucketKey is the counter key for tenant at t.
func BucketKey(tenantID string, t time.Time) string {
	return fmt.Sprintf("ratelimit:llm:%s:%s", tenantID, t.UTC().Format("2006-01-02:15"))
}

// Check increments the tenant's bucket. Store failures reject the call.
func (l *HourlyLimiter) Check(ctx context.Context, req Request) error {
	if l.limit <= 0 {
		return nil
	}

	now := l.now().UTC()
	key := BucketKey(req.TenantID, now)

	count, err := l.store.IncrementAndGetCount(ctx, key)
	if err != nil {
		return fmt.Errorf("rate limit store: %w", err)
	}
	if count == 1 {
		if err := l.store.SetExpiry(ctx, key, l.window); err != nil {
			log.Printf("[ratelimit] failed to set expiry on %s: %v", key, err)
		}
	}

	if count > int64(l.limit) {
		return &ExceededError{
			Scope:      "hourly",
			Limit:      l.limit,
			RetryAfter: now.Truncate(time.Hour).Add(time.Hour).Sub(now),
		}
	}
	return nil
}

// Standing reports the tenant's current hour bucket without incrementing it.
func (l *HourlyLimiter) Standing(ctx context.Context, tenantID string) (*Standing, error) {
	if l.limit <= 0 {
		return nil, nil
	}
	now := l.now().UTC()
	count, err := l.store.GetCount(ctx, BucketKey(tenantID, now))
	if err != nil {
		return nil, fmt.Errorf("rate limit store: %w", err)
	}
	return &Standing{
		Scope:             "hourly",
		Limit:             l.limit,
		Remaining:         max(int64(l.limit)-count, 0),
		ResetAfterSeconds: int64(now.Truncate(time.Hour).Add(time.Hour).Sub(now).Seconds()),
	}, nil
}
