package risk_test

import (
	"context"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReadRepository struct {
	failures        int
	destinationSeen bool
}

func (f *fakeReadRepository) CountFailuresSince(ctx context.Context, customerID string, since time.Time) (int, error) {
	return f.failures, nil
}

func (f *fakeReadRepository) DestinationSeen(ctx context.Context, customerID string, destination *string) (bool, error) {
	return f.destinationSeen, nil
}

func mustMoney(t *testing.T, s string) domain.Money {
	t.Helper()
	m, err := domain.ParseMoney(s)
	require.NoError(t, err)
	return m
}

func TestEngine_Evaluate_CleanPaymentAllows(t *testing.T) {
	engine := risk.NewEngine(50, 80)
	repo := &fakeReadRepository{failures: 0, destinationSeen: true}
	customer := &domain.Customer{CustomerID: "cust-1", KycLevel: domain.KycFull, CreatedAt: time.Now().Add(-365 * 24 * time.Hour)}
	policy := &domain.LimitsPolicy{MaxAmount: mustMoney(t, "1000.00"), VelocityLimitCount: 10}
	dest := "known-dest"

	score, decision, err := engine.Evaluate(context.Background(), repo, customer, mustMoney(t, "50.00"), policy, 1, &dest)
	require.NoError(t, err)
	assert.Equal(t, 0, score)
	assert.Equal(t, domain.DecisionAllow, decision)
}

func TestEngine_Evaluate_NewCustomerLowKycAndNewDestinationReviews(t *testing.T) {
	engine := risk.NewEngine(30, 80)
	repo := &fakeReadRepository{failures: 0, destinationSeen: false}
	customer := &domain.Customer{CustomerID: "cust-1", KycLevel: domain.KycBasic, CreatedAt: time.Now()}
	policy := &domain.LimitsPolicy{MaxAmount: mustMoney(t, "1000.00"), VelocityLimitCount: 10}
	dest := "new-dest"

	score, decision, err := engine.Evaluate(context.Background(), repo, customer, mustMoney(t, "50.00"), policy, 1, &dest)
	require.NoError(t, err)
	assert.Equal(t, 35, score) // 20 (new+low kyc) + 15 (new destination)
	assert.Equal(t, domain.DecisionReview, decision)
}

func TestEngine_Evaluate_AmountNearMaxAndRepeatedFailuresReviews(t *testing.T) {
	engine := risk.NewEngine(50, 80)
	repo := &fakeReadRepository{failures: 3, destinationSeen: true}
	customer := &domain.Customer{CustomerID: "cust-1", KycLevel: domain.KycFull, CreatedAt: time.Now().Add(-365 * 24 * time.Hour)}
	policy := &domain.LimitsPolicy{MaxAmount: mustMoney(t, "1000.00"), VelocityLimitCount: 10}
	dest := "known-dest"

	// 950 >= 0.9 * 1000 -> AmountNearMax(25); repeated failures >= 3 -> 25;
	// velocity 9/10 = 0.9 >= 0.8 -> VelocitySpike(20). Total 70, below block(80).
	score, decision, err := engine.Evaluate(context.Background(), repo, customer, mustMoney(t, "950.00"), policy, 9, &dest)
	require.NoError(t, err)
	assert.Equal(t, 70, score)
	assert.Equal(t, domain.DecisionReview, decision)
}

func TestEngine_Evaluate_ScoreClampedAt100(t *testing.T) {
	engine := risk.NewEngine(50, 80)
	repo := &fakeReadRepository{failures: 5, destinationSeen: false}
	customer := &domain.Customer{CustomerID: "cust-1", KycLevel: domain.KycNone, CreatedAt: time.Now()}
	policy := &domain.LimitsPolicy{MaxAmount: mustMoney(t, "1000.00"), VelocityLimitCount: 10}
	dest := "new-dest"

	score, decision, err := engine.Evaluate(context.Background(), repo, customer, mustMoney(t, "999.00"), policy, 10, &dest)
	require.NoError(t, err)
	assert.Equal(t, 100, score) // 25+20+25+20+15 = 105, clamped to 100
	assert.Equal(t, domain.DecisionBlock, decision)
}
