// Package limits enforces per-rail min/max, daily-sum, and velocity limits
// with cache-first, DB-fallback semantics (spec.md §4.3).
package limits

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/cache"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

// Evaluation is returned on success: the resolved policy and the projected
// velocity count, consumed by the risk engine.
type Evaluation struct {
	Policy        *domain.LimitsPolicy
	VelocityCount int
}

type Service struct {
	cache         cache.Cache
	policyRepo    domain.LimitsPolicyRepository
	paymentRepo   domain.PaymentRepository
	policyCacheTTL time.Duration
}

func NewService(c cache.Cache, policyRepo domain.LimitsPolicyRepository, paymentRepo domain.PaymentRepository, policyCacheTTL time.Duration) *Service {
	return &Service{cache: c, policyRepo: policyRepo, paymentRepo: paymentRepo, policyCacheTTL: policyCacheTTL}
}

func policyCacheKey(rail domain.PaymentMethod) string {
	return fmt.Sprintf("limits:policy:%s", rail)
}

func dailyKey(date, customerID string, rail domain.PaymentMethod) string {
	return fmt.Sprintf("limits:daily:%s:%s:%s", date, customerID, rail)
}

func velocityKey(customerID string, rail domain.PaymentMethod) string {
	return fmt.Sprintf("limits:velocity:%s:%s", customerID, rail)
}

// cachedPolicy is the JSON-encoded shape stored in the cache; it mirrors
// domain.LimitsPolicy but keeps the wire format independent of the
// in-process struct.
type cachedPolicy struct {
	Rail                  string `json:"rail"`
	MinAmountCents        int64  `json:"min_amount_cents"`
	MaxAmountCents        int64  `json:"max_amount_cents"`
	DailyLimitCents       int64  `json:"daily_limit_cents"`
	VelocityLimitCount    int    `json:"velocity_limit_count"`
	VelocityWindowSeconds int    `json:"velocity_window_seconds"`
}

func toCached(p *domain.LimitsPolicy) cachedPolicy {
	return cachedPolicy{
		Rail:                  string(p.Rail),
		MinAmountCents:        p.MinAmount.Cents(),
		MaxAmountCents:        p.MaxAmount.Cents(),
		DailyLimitCents:       p.DailyLimitAmount.Cents(),
		VelocityLimitCount:    p.VelocityLimitCount,
		VelocityWindowSeconds: p.VelocityWindowSeconds,
	}
}

func fromCached(c cachedPolicy) *domain.LimitsPolicy {
	return &domain.LimitsPolicy{
		Rail:                  domain.PaymentMethod(c.Rail),
		MinAmount:             domain.NewMoneyFromCents(c.MinAmountCents),
		MaxAmount:             domain.NewMoneyFromCents(c.MaxAmountCents),
		DailyLimitAmount:      domain.NewMoneyFromCents(c.DailyLimitCents),
		VelocityLimitCount:    c.VelocityLimitCount,
		VelocityWindowSeconds: c.VelocityWindowSeconds,
	}
}

// Enforce runs the four ordered steps of spec.md §4.3: resolve policy,
// transaction-bound check, daily limit, velocity. Order is an invariant —
// later checks consume the resolved policy.
func (s *Service) Enforce(ctx context.Context, customerID string, rail domain.PaymentMethod, amount domain.Money) (*Evaluation, error) {
	policy, err := s.resolvePolicy(ctx, rail)
	if err != nil {
		return nil, err
	}

	if amount.LT(policy.MinAmount) || amount.GT(policy.MaxAmount) {
		return nil, domain.NewLimitExceededError(fmt.Sprintf("amount outside [min,max] for rail %s", rail))
	}

	if err := s.enforceDailyLimit(ctx, customerID, rail, amount, policy); err != nil {
		return nil, err
	}

	velocityCount, err := s.enforceVelocity(ctx, customerID, rail, policy)
	if err != nil {
		return nil, err
	}

	return &Evaluation{Policy: policy, VelocityCount: velocityCount}, nil
}

func (s *Service) resolvePolicy(ctx context.Context, rail domain.PaymentMethod) (*domain.LimitsPolicy, error) {
	if raw, ok, err := s.cache.Get(ctx, policyCacheKey(rail)); err == nil && ok {
		var cp cachedPolicy
		if jsonErr := json.Unmarshal([]byte(raw), &cp); jsonErr == nil {
			return fromCached(cp), nil
		}
	}

	policy, err := s.policyRepo.FindByRail(ctx, rail)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, domain.NewValidationError(fmt.Sprintf("missing limits policy for rail %s", rail))
	}

	if encoded, err := json.Marshal(toCached(policy)); err == nil {
		_ = s.cache.Set(ctx, policyCacheKey(rail), string(encoded), s.policyCacheTTL)
	}

	return policy, nil
}

func (s *Service) enforceDailyLimit(ctx context.Context, customerID string, rail domain.PaymentMethod, amount domain.Money, policy *domain.LimitsPolicy) error {
	now := time.Now().UTC()
	dateStr := now.Format("20060102")
	key := dailyKey(dateStr, customerID, rail)

	raw, ok, err := s.cache.Get(ctx, key)
	if err == nil {
		var current int64
		if ok {
			current, err = strconv.ParseInt(raw, 10, 64)
		}
		if err == nil {
			projected := current + amount.Cents()
			if projected > policy.DailyLimitAmount.Cents() {
				return domain.NewLimitExceededError(fmt.Sprintf("daily limit exceeded for rail %s", rail))
			}
			ttl := secondsUntilDayEnd(now)
			if setErr := s.setCounter(ctx, key, projected, ttl); setErr == nil {
				return nil
			}
		}
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	total, err := s.paymentRepo.SumDailyOutgoing(ctx, customerID, rail, dayStart)
	if err != nil {
		return fmt.Errorf("daily limit DB fallback: %w", err)
	}
	if total.Add(amount).GT(policy.DailyLimitAmount) {
		return domain.NewLimitExceededError(fmt.Sprintf("daily limit exceeded for rail %s", rail))
	}
	return nil
}

// setCounter overwrites the daily counter unconditionally, matching the
// Python original's plain SET with an expiry pinned to end-of-day UTC.
func (s *Service) setCounter(ctx context.Context, key string, value int64, ttl time.Duration) error {
	return s.cache.Set(ctx, key, strconv.FormatInt(value, 10), ttl)
}

func secondsUntilDayEnd(now time.Time) time.Duration {
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)
	remaining := end.Sub(now)
	if remaining < time.Second {
		remaining = time.Second
	}
	return remaining
}

func (s *Service) enforceVelocity(ctx context.Context, customerID string, rail domain.PaymentMethod, policy *domain.LimitsPolicy) (int, error) {
	key := velocityKey(customerID, rail)
	now := time.Now()
	windowStart := now.Add(-time.Duration(policy.VelocityWindowSeconds) * time.Second)

	err := s.cache.ZRemRangeByScore(ctx, key, 0, float64(windowStart.Unix()))
	if err == nil {
		count, cardErr := s.cache.ZCard(ctx, key)
		if cardErr == nil {
			if int(count) >= policy.VelocityLimitCount {
				return 0, domain.NewLimitExceededError(fmt.Sprintf("velocity limit exceeded for rail %s", rail))
			}
			member := fmt.Sprintf("%d-%d", now.UnixNano(), count)
			if addErr := s.cache.ZAdd(ctx, key, float64(now.Unix()), member); addErr == nil {
				_ = s.cache.Expire(ctx, key, time.Duration(policy.VelocityWindowSeconds)*time.Second)
				return int(count) + 1, nil
			}
		}
	}

	since := windowStart
	count, dbErr := s.paymentRepo.CountVelocitySince(ctx, customerID, rail, since)
	if dbErr != nil {
		return 0, fmt.Errorf("velocity DB fallback: %w", dbErr)
	}
	if count >= policy.VelocityLimitCount {
		return 0, domain.NewLimitExceededError(fmt.Sprintf("velocity limit exceeded for rail %s", rail))
	}
	return count + 1, nil
}
