package limits_test

import (
	"context"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

// fakePolicyRepository is a hand-written fake of domain.LimitsPolicyRepository,
// following the teacher's mock-struct-with-map pattern.
type fakePolicyRepository struct {
	policies map[domain.PaymentMethod]*domain.LimitsPolicy
}

func newFakePolicyRepository() *fakePolicyRepository {
	return &fakePolicyRepository{policies: make(map[domain.PaymentMethod]*domain.LimitsPolicy)}
}

func (f *fakePolicyRepository) FindByRail(ctx context.Context, rail domain.PaymentMethod) (*domain.LimitsPolicy, error) {
	p, ok := f.policies[rail]
	if !ok {
		return nil, nil
	}
	return p, nil
}

// fakePaymentRepository implements only the Limits-relevant subset of
// domain.PaymentRepository that is exercised via DB fallback paths.
type fakePaymentRepository struct {
	domain.PaymentRepository
	dailySum      domain.Money
	velocityCount int
}

func (f *fakePaymentRepository) SumDailyOutgoing(ctx context.Context, customerID string, rail domain.PaymentMethod, dayStart time.Time) (domain.Money, error) {
	return f.dailySum, nil
}

func (f *fakePaymentRepository) CountVelocitySince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time) (int, error) {
	return f.velocityCount, nil
}
