// Package ratelimit implements fixed-window counters across the merchant,
// customer, and account dimensions (spec.md §4.2).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/cache"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

// Limits configures the per-dimension ceiling within WindowSeconds.
type Limits struct {
	WindowSeconds   int64
	MerchantLimit   int64
	CustomerLimit   int64
	AccountLimit    int64
}

type dimension struct {
	name  string
	value string
	limit int64
}

// Limiter enforces the three dimensions independently and fails open on
// cache errors — it is not authoritative.
type Limiter struct {
	cache  cache.Cache
	limits Limits
}

func NewLimiter(c cache.Cache, limits Limits) *Limiter {
	return &Limiter{cache: c, limits: limits}
}

// Enforce checks merchant, customer, and account dimensions in that order.
// The first dimension to exceed its limit returns a rate_limited
// DomainError carrying that dimension. Cache failures on any dimension
// fail-open (admit the request) for that dimension.
func (l *Limiter) Enforce(ctx context.Context, merchantID, customerID, accountID string) error {
	bucket := time.Now().Unix() / l.limits.WindowSeconds

	dims := []dimension{
		{name: "merchant", value: merchantID, limit: l.limits.MerchantLimit},
		{name: "customer", value: customerID, limit: l.limits.CustomerLimit},
		{name: "account", value: accountID, limit: l.limits.AccountLimit},
	}

	for _, d := range dims {
		key := fmt.Sprintf("rate:%s:%s:%d", d.name, d.value, bucket)

		count, err := l.cache.Incr(ctx, key)
		if err != nil {
			continue // fail-open: cache is not authoritative
		}
		if count == 1 {
			_ = l.cache.Expire(ctx, key, time.Duration(l.limits.WindowSeconds)*time.Second)
		}
		if count > d.limit {
			return domain.NewRateLimitedError(d.name)
		}
	}

	return nil
}
