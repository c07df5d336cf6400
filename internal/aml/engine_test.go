package aml_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/aml"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/cache"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReadRepository struct {
	sum       domain.Money
	nearCount int
}

func (f *fakeReadRepository) SumOutgoingSince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time) (domain.Money, error) {
	return f.sum, nil
}

func (f *fakeReadRepository) CountNearThresholdSince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time, low, high domain.Money) (int, error) {
	return f.nearCount, nil
}

// unreachableHistoryCache fails every history read so Evaluate takes the
// DB fallback path.
type unreachableHistoryCache struct {
	cache.Cache
}

func (unreachableHistoryCache) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return nil, errors.New("cache unreachable")
}

func mustMoney(t *testing.T, s string) domain.Money {
	t.Helper()
	m, err := domain.ParseMoney(s)
	require.NoError(t, err)
	return m
}

func basePolicy(t *testing.T) *domain.LimitsPolicy {
	return &domain.LimitsPolicy{MaxAmount: mustMoney(t, "1000.00")}
}

func TestEngine_Evaluate_BlocklistedDestinationBlocks(t *testing.T) {
	c := cache.NewInMemoryCache()
	engine := aml.NewEngine(c, aml.Config{
		BlocklistDestinations:     map[string]bool{"bad-dest": true},
		TotalWindowSeconds:        86400,
		TotalThresholdAmount:      mustMoney(t, "10000.00"),
		StructuringWindowSeconds:  3600,
		StructuringCountThreshold: 3,
	})
	repo := &fakeReadRepository{sum: mustMoney(t, "0.00")}
	dest := "bad-dest"

	decision, err := engine.Evaluate(context.Background(), repo, "cust-1", domain.MethodPIX, mustMoney(t, "50.00"), &dest, basePolicy(t))
	require.NoError(t, err)
	assert.Equal(t, domain.AmlBlock, decision)
}

func TestEngine_Evaluate_AggregateWindowReview(t *testing.T) {
	c := unreachableHistoryCache{cache.NewInMemoryCache()}
	engine := aml.NewEngine(c, aml.Config{
		BlocklistDestinations:     map[string]bool{},
		TotalWindowSeconds:        86400,
		TotalThresholdAmount:      mustMoney(t, "100.00"),
		StructuringWindowSeconds:  3600,
		StructuringCountThreshold: 3,
	})
	repo := &fakeReadRepository{sum: mustMoney(t, "80.00")}
	dest := "dest-1"

	decision, err := engine.Evaluate(context.Background(), repo, "cust-1", domain.MethodPIX, mustMoney(t, "30.00"), &dest, basePolicy(t))
	require.NoError(t, err)
	assert.Equal(t, domain.AmlReview, decision)
}

func TestEngine_Evaluate_StructuringReview(t *testing.T) {
	c := unreachableHistoryCache{cache.NewInMemoryCache()}
	engine := aml.NewEngine(c, aml.Config{
		BlocklistDestinations:     map[string]bool{},
		TotalWindowSeconds:        86400,
		TotalThresholdAmount:      mustMoney(t, "100000.00"),
		StructuringWindowSeconds:  3600,
		StructuringCountThreshold: 2,
	})
	repo := &fakeReadRepository{sum: mustMoney(t, "0.00"), nearCount: 1}
	dest := "dest-1"

	// Policy max is 1000.00; 950.00 >= 0.95 * 1000.00 counts toward
	// structuring, pushing the DB-reported nearCount of 1 to 2.
	decision, err := engine.Evaluate(context.Background(), repo, "cust-1", domain.MethodPIX, mustMoney(t, "950.00"), &dest, basePolicy(t))
	require.NoError(t, err)
	assert.Equal(t, domain.AmlReview, decision)
}

func TestEngine_Evaluate_AllowsCleanPayment(t *testing.T) {
	c := cache.NewInMemoryCache()
	engine := aml.NewEngine(c, aml.Config{
		BlocklistDestinations:     map[string]bool{},
		TotalWindowSeconds:        86400,
		TotalThresholdAmount:      mustMoney(t, "100000.00"),
		StructuringWindowSeconds:  3600,
		StructuringCountThreshold: 3,
	})
	repo := &fakeReadRepository{sum: mustMoney(t, "0.00")}
	dest := "dest-1"

	decision, err := engine.Evaluate(context.Background(), repo, "cust-1", domain.MethodPIX, mustMoney(t, "50.00"), &dest, basePolicy(t))
	require.NoError(t, err)
	assert.Equal(t, domain.AmlAllow, decision)
}

func TestEngine_RecordOutgoing_FeedsHistoryBackIntoEvaluate(t *testing.T) {
	c := cache.NewInMemoryCache()
	engine := aml.NewEngine(c, aml.Config{
		BlocklistDestinations:     map[string]bool{},
		TotalWindowSeconds:        86400,
		TotalThresholdAmount:      mustMoney(t, "100.00"),
		StructuringWindowSeconds:  3600,
		StructuringCountThreshold: 3,
	})
	repo := &fakeReadRepository{sum: mustMoney(t, "0.00")}

	engine.RecordOutgoing(context.Background(), "cust-1", domain.MethodPIX, mustMoney(t, "80.00"))

	dest := "dest-1"
	decision, err := engine.Evaluate(context.Background(), repo, "cust-1", domain.MethodPIX, mustMoney(t, "30.00"), &dest, basePolicy(t))
	require.NoError(t, err)
	assert.Equal(t, domain.AmlReview, decision)
}
