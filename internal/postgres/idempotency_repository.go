package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

type IdempotencyRepository struct {
	db *DB
}

func NewIdempotencyRepository(db *DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Create(ctx context.Context, tx domain.Tx, record *domain.IdempotencyRecord) error {
	query := `
		INSERT INTO idempotency_records (
			merchant_id, idempotency_key, payment_id, status_code, response_payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.execer(tx).Exec(ctx, query,
		record.MerchantID, record.IdempotencyKey, record.PaymentID.String(), record.StatusCode, record.ResponsePayload, record.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.NewIdempotencyConflictError("idempotency key already recorded")
		}
		return fmt.Errorf("create idempotency record: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) FindByMerchantAndKey(ctx context.Context, merchantID, idempotencyKey string) (*domain.IdempotencyRecord, error) {
	query := `
		SELECT merchant_id, idempotency_key, payment_id, status_code, response_payload, created_at
		FROM idempotency_records WHERE merchant_id = $1 AND idempotency_key = $2
	`
	var m idempotencyRecordModel
	err := r.db.Pool.QueryRow(ctx, query, merchantID, idempotencyKey).Scan(
		&m.MerchantID, &m.IdempotencyKey, &m.PaymentID, &m.StatusCode, &m.ResponsePayload, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find idempotency record: %w", err)
	}
	return toDomainIdempotencyRecord(&m)
}
