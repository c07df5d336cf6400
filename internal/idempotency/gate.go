// Package idempotency implements the per-(merchant, idempotency_key)
// admission lock and response-replay gate (spec.md §4.1, §4.9).
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/cache"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

const (
	lockTTL = 30 * time.Second

	// pollAttempts and pollInterval implement the bounded wait for an
	// in-flight concurrent admission described in spec.md §4.9. The
	// original Python implementation sleeps exactly 20ms between checks.
	pollAttempts = 5
	pollInterval = 20 * time.Millisecond
)

// Gate acquires the admission lock and, on denial, polls for the snapshot
// written by whichever concurrent admission wins the race.
type Gate struct {
	cache   cache.Cache
	idemRepo domain.IdempotencyRepository
	payRepo  domain.PaymentRepository
}

func NewGate(c cache.Cache, idemRepo domain.IdempotencyRepository, payRepo domain.PaymentRepository) *Gate {
	return &Gate{cache: c, idemRepo: idemRepo, payRepo: payRepo}
}

func scopedKey(merchantID, idempotencyKey string) string {
	return fmt.Sprintf("idempotency:%s:%s", merchantID, idempotencyKey)
}

// Acquire returns true on first acquisition within the TTL window. On cache
// unavailability it degrades to true ("fail-open") — the database unique
// constraint on (merchant_id, idempotency_key) is the final source of
// truth.
func (g *Gate) Acquire(ctx context.Context, merchantID, idempotencyKey string) bool {
	ok, err := g.cache.SetNX(ctx, scopedKey(merchantID, idempotencyKey), "1", lockTTL)
	if err != nil {
		return true
	}
	return ok
}

// FindExistingResponse checks for an already-committed snapshot before the
// gate is even consulted (spec.md §4.7 step 2).
func (g *Gate) FindExistingResponse(ctx context.Context, merchantID, idempotencyKey string) (*domain.IdempotencyRecord, error) {
	record, err := g.idemRepo.FindByMerchantAndKey(ctx, merchantID, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// WaitForResolution implements the pending-idempotent resolution of
// spec.md §4.9: poll up to 5 times, ~20ms apart, for either an
// IdempotencyRecord or a Payment with the same (merchant, key). Returns the
// record if one is found first, otherwise the payment, or an
// idempotency-conflict DomainError on exhaustion.
func (g *Gate) WaitForResolution(ctx context.Context, merchantID, idempotencyKey string) (*domain.Payment, *domain.IdempotencyRecord, error) {
	for attempt := 0; attempt < pollAttempts; attempt++ {
		if record, err := g.idemRepo.FindByMerchantAndKey(ctx, merchantID, idempotencyKey); err == nil && record != nil {
			return nil, record, nil
		}
		if payment, err := g.payRepo.FindByMerchantAndIdempotencyKey(ctx, merchantID, idempotencyKey); err == nil && payment != nil {
			return payment, nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	return nil, nil, domain.NewIdempotencyConflictError(
		"idempotency key is locked by a concurrent admission and no snapshot appeared in time",
	)
}
