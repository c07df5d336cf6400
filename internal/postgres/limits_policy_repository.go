package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

type LimitsPolicyRepository struct {
	db *DB
}

func NewLimitsPolicyRepository(db *DB) *LimitsPolicyRepository {
	return &LimitsPolicyRepository{db: db}
}

func (r *LimitsPolicyRepository) FindByRail(ctx context.Context, rail domain.PaymentMethod) (*domain.LimitsPolicy, error) {
	query := `
		SELECT rail, min_amount_cents, max_amount_cents, daily_limit_cents,
		       velocity_limit_count, velocity_window_seconds
		FROM limits_policies WHERE rail = $1
	`
	var m limitsPolicyModel
	err := r.db.Pool.QueryRow(ctx, query, string(rail)).Scan(
		&m.Rail, &m.MinAmountCents, &m.MaxAmountCents, &m.DailyLimitCents,
		&m.VelocityLimitCount, &m.VelocityWindowSeconds,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("find limits policy: %w", err)
	}
	return toDomainPolicy(&m), nil
}
