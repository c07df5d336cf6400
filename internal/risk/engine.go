// Package risk scores a payment against five additive rules and maps the
// clamped score to a RiskDecision (spec.md §4.5).
package risk

import (
	"context"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

// Context carries every input a rule needs; rules never reach back into the
// database themselves.
type Context struct {
	Amount          domain.Money
	PolicyMax       domain.Money
	VelocityCount   int
	VelocityLimit   int
	RepeatedFailures int
	IsNewCustomer   bool
	CustomerKyc     domain.KycLevel
	DestinationSeen bool
}

// Rule scores one dimension of risk, 0 when the condition does not hold.
type Rule func(ctx Context) int

func amountNearMax(ctx Context) int {
	threshold := ctx.PolicyMax.MulFrac(9, 10)
	if ctx.Amount.GTE(threshold) {
		return 25
	}
	return 0
}

func velocitySpike(ctx Context) int {
	if ctx.VelocityLimit <= 0 {
		return 0
	}
	ratio := float64(ctx.VelocityCount) / float64(ctx.VelocityLimit)
	if ratio >= 0.8 {
		return 20
	}
	return 0
}

func repeatedFailures(ctx Context) int {
	if ctx.RepeatedFailures >= 3 {
		return 25
	}
	if ctx.RepeatedFailures >= 1 {
		return 10
	}
	return 0
}

func newCustomerLowKyc(ctx Context) int {
	if ctx.IsNewCustomer && (ctx.CustomerKyc == domain.KycNone || ctx.CustomerKyc == domain.KycBasic) {
		return 20
	}
	return 0
}

func newDestination(ctx Context) int {
	if !ctx.DestinationSeen {
		return 15
	}
	return 0
}

var rules = []Rule{
	amountNearMax,
	velocitySpike,
	repeatedFailures,
	newCustomerLowKyc,
	newDestination,
}

// ReadRepository supplies the two lookups the engine cannot derive from its
// own inputs: recent failures and whether a destination has been paid to
// before.
type ReadRepository interface {
	CountFailuresSince(ctx context.Context, customerID string, since time.Time) (int, error)
	DestinationSeen(ctx context.Context, customerID string, destination *string) (bool, error)
}

type Engine struct {
	reviewThreshold int
	blockThreshold  int
}

func NewEngine(reviewThreshold, blockThreshold int) *Engine {
	return &Engine{reviewThreshold: reviewThreshold, blockThreshold: blockThreshold}
}

// Evaluate scores the payment and returns the clamped score with its
// decision. The failure-lookback window is fixed at 24 hours.
func (e *Engine) Evaluate(
	ctx context.Context,
	repo ReadRepository,
	customer *domain.Customer,
	amount domain.Money,
	policy *domain.LimitsPolicy,
	velocityCount int,
	destination *string,
) (int, domain.RiskDecision, error) {
	now := time.Now().UTC()

	repeated, err := repo.CountFailuresSince(ctx, customer.CustomerID, now.Add(-24*time.Hour))
	if err != nil {
		return 0, "", err
	}
	seen, err := repo.DestinationSeen(ctx, customer.CustomerID, destination)
	if err != nil {
		return 0, "", err
	}

	rctx := Context{
		Amount:           amount,
		PolicyMax:        policy.MaxAmount,
		VelocityCount:    velocityCount,
		VelocityLimit:    policy.VelocityLimitCount,
		RepeatedFailures: repeated,
		IsNewCustomer:    customer.IsNew(now),
		CustomerKyc:      customer.KycLevel,
		DestinationSeen:  seen,
	}

	score := 0
	for _, rule := range rules {
		score += rule(rctx)
	}
	if score > 100 {
		score = 100
	}

	return score, e.decisionFromScore(score), nil
}

func (e *Engine) decisionFromScore(score int) domain.RiskDecision {
	if score >= e.blockThreshold {
		return domain.DecisionBlock
	}
	if score >= e.reviewThreshold {
		return domain.DecisionReview
	}
	return domain.DecisionAllow
}
