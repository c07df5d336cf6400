package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/metrics"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/resilience"
)

// DriverConfig tunes the resilience envelope around every provider call.
type DriverConfig struct {
	MaxAttempts      int
	BackoffBase      time.Duration
	BackoffCap       time.Duration
	BreakerThreshold int
	BreakerRecovery  time.Duration
	BulkheadLimit    int
}

// Driver sequences a circuit breaker, a bulkhead, and a bounded retry loop
// around a domain.ProviderClient call, one breaker per provider name so a
// failing PIX provider never throttles TED traffic.
type Driver struct {
	client   domain.ProviderClient
	bulkhead *resilience.Bulkhead
	config   DriverConfig

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

func NewDriver(client domain.ProviderClient, config DriverConfig) *Driver {
	return &Driver{
		client:   client,
		bulkhead: resilience.NewBulkhead(config.BulkheadLimit),
		config:   config,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

func (d *Driver) breakerFor(providerName string) *resilience.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.breakers[providerName]
	if !ok {
		b = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: d.config.BreakerThreshold,
			RecoveryTimeout:  d.config.BreakerRecovery,
		})
		d.breakers[providerName] = b
	}
	return b
}

// Confirm resolves the rail's provider, then calls it through the breaker,
// bulkhead, and retry stack, mirroring call_provider.py's CallProviderCommand.
func (d *Driver) Confirm(ctx context.Context, method domain.PaymentMethod, req domain.ProviderRequest) (*domain.ProviderResponse, error) {
	profile, ok := ProfileFor(method)
	if !ok {
		return nil, fmt.Errorf("no provider profile for method %q", method)
	}

	breaker := d.breakerFor(profile.ProviderName)
	if err := breaker.AllowCall(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := resilience.Retry(ctx, d.config.MaxAttempts, d.config.BackoffBase, d.config.BackoffCap, isTransient, func(ctx context.Context) (*domain.ProviderResponse, error) {
		var result *domain.ProviderResponse
		runErr := d.bulkhead.Run(ctx, profile.ProviderName, func() error {
			r, callErr := d.client.Confirm(ctx, profile.ConfirmPath, req)
			if callErr != nil {
				return callErr
			}
			result = r
			return nil
		})
		return result, runErr
	})

	if err != nil {
		breaker.OnFailure()
		return nil, err
	}
	breaker.OnSuccess()
	metrics.ProviderLatencySeconds.WithLabelValues(profile.ProviderName).Observe(time.Since(start).Seconds())
	return resp, nil
}

// isTransient mirrors call_provider.py's is_transient: timeouts, 5xx
// responses, and an open circuit are worth retrying; anything else is not.
func isTransient(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.IsTransient()
	}
	return false
}
