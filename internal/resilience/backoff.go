// Package resilience provides the circuit breaker, bulkhead, retry, and
// backoff primitives shared by the provider driver and the outbox worker
// (spec.md §4.12).
package resilience

import (
	"math/rand"
	"time"
)

// ExponentialBackoff mirrors the original's exponential_backoff: capped
// doubling from base, jittered by +/-jitter fraction.
func ExponentialBackoff(attempt int, base, capDuration time.Duration, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := base * time.Duration(1<<(attempt-1))
	if raw > capDuration {
		raw = capDuration
	}
	spread := float64(raw) * jitter
	delta := (rand.Float64()*2 - 1) * spread
	result := float64(raw) + delta
	if result < 0 {
		result = 0
	}
	return time.Duration(result)
}
