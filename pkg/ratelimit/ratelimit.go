// Package ratelimit guards vendor calls per tenant. Guards run before the
// vendor is contacted; a rejected call never reaches the vendor.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ExceededError reports which guard rejected the call and when the tenant
// may try again. It matches ErrRateLimitExceeded with errors.Is.
type ExceededError struct {
	Scope      string
	Limit      int
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s limit of %d", e.Scope, e.Limit)
}

func (e *ExceededError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// Request is the part of a call the guards look at. Tokens is an estimate
// made before the vendor is called.
type Request struct {
	TenantID string
	Tokens   int
}

type Guard interface {
	Check(ctx context.Context, req Request) error
}

// Standing is a tenant's position against one guard.
type Standing struct {
	Scope             string `json:"scope"`
	Limit             int    `json:"limit"`
	Remaining         int64  `json:"remaining"`
	ResetAfterSeconds int64  `json:"reset_after_seconds"`
}

// Inspector is implemented by guards that can report a tenant's standing
// without consuming any budget. A nil Standing means the guard is disabled.
type Inspector interface {
	Standing(ctx context.Context, tenantID string) (*Standing, error)
}

// Standings collects the standing of every inspectable guard in g, walking
// into chains.
func Standings(ctx context.Context, g Guard, tenantID string) ([]Standing, error) {
	out := []Standing{}
	switch v := g.(type) {
	case Chain:
		for _, inner := range v {
			s, err := Standings(ctx, inner, tenantID)
			if err != nil {
				return nil, err
			}
			out = append(out, s...)
		}
	case Inspector:
		s, err := v.Standing(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

// Chain runs guards in order and stops at the first rejection. Guards
// before the rejecting one have already counted the call, so cheaper or
// shorter-window guards belong first; see Guards.
type Chain []Guard

// Guards orders the configured guards: tokens per minute before the hourly
// call count, so a call refused for its size does not use up an hourly slot.
// Nil guards are skipped.
func Guards(hourly *HourlyLimiter, tokens *TokenLimiter) Chain {
	var c Chain
	if tokens != nil {
		c = append(c, tokens)
	}
	if hourly != nil {
		c = append(c, hourly)
	}
	return c
}

func (c Chain) Check(ctx context.Context, req Request) error {
	for _, g := range c {
		if g == nil {
			continue
		}
		if err := g.Check(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(ctx context.Context, req Request) error

func (f GuardFunc) Check(ctx context.Context, req Request) error {
	return f(ctx, req)
}
