package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/cache"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(c cache.Cache) *ratelimit.Limiter {
	return ratelimit.NewLimiter(c, ratelimit.Limits{
		WindowSeconds: 60,
		MerchantLimit: 2,
		CustomerLimit: 5,
		AccountLimit:  5,
	})
}

func TestLimiter_Enforce_AdmitsUnderLimit(t *testing.T) {
	l := newLimiter(cache.NewInMemoryCache())
	require.NoError(t, l.Enforce(context.Background(), "m1", "c1", "a1"))
	require.NoError(t, l.Enforce(context.Background(), "m1", "c1", "a1"))
}

func TestLimiter_Enforce_TripsOnDimensionThatExceeds(t *testing.T) {
	l := newLimiter(cache.NewInMemoryCache())
	require.NoError(t, l.Enforce(context.Background(), "m1", "c1", "a1"))
	require.NoError(t, l.Enforce(context.Background(), "m1", "c1", "a1"))

	err := l.Enforce(context.Background(), "m1", "c1", "a1")
	require.Error(t, err)
	assert.True(t, domain.IsCategory(err, domain.CategoryRateLimited))
}

func TestLimiter_Enforce_NthPlusOneRequestTripsTheDimension(t *testing.T) {
	// Rate-limit monotonicity (spec.md §8): for a fixed bucket, the (n+1)-th
	// request tripping any dimension raises RateLimited with that dimension.
	l := newLimiter(cache.NewInMemoryCache())
	for i := 0; i < 2; i++ {
		require.NoError(t, l.Enforce(context.Background(), "m1", "c1", "a1"))
	}
	err := l.Enforce(context.Background(), "m1", "c1", "a1")
	require.Error(t, err)
}

func TestLimiter_Enforce_DimensionsAreIndependent(t *testing.T) {
	l := newLimiter(cache.NewInMemoryCache())
	require.NoError(t, l.Enforce(context.Background(), "m1", "c1", "a1"))
	require.NoError(t, l.Enforce(context.Background(), "m1", "c2", "a2"))

	// merchant m1 has now been counted twice across two different customers;
	// a third request on m1 trips the merchant dimension regardless of
	// customer/account identity.
	err := l.Enforce(context.Background(), "m1", "c3", "a3")
	require.Error(t, err)
}

type erroringCache struct {
	cache.Cache
}

func (erroringCache) Incr(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("cache unavailable")
}

func TestLimiter_Enforce_FailsOpenOnCacheError(t *testing.T) {
	l := newLimiter(erroringCache{})
	err := l.Enforce(context.Background(), "m1", "c1", "a1")
	assert.NoError(t, err)
}

func TestLimiter_Enforce_CountsFirstIncrementUnderBucketKey(t *testing.T) {
	c := cache.NewInMemoryCache()
	l := newLimiter(c)
	require.NoError(t, l.Enforce(context.Background(), "m1", "c1", "a1"))

	bucket := time.Now().Unix() / 60
	key := "rate:merchant:m1:" + itoa(bucket)
	v, ok, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
