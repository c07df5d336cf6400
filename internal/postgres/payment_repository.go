package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/google/uuid"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

type PaymentRepository struct {
	db *DB
}

func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx domain.Tx, payment *domain.Payment) error {
	m, err := toPaymentModel(payment)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			payment_id, merchant_id, customer_id, account_id, amount_cents, currency,
			method, destination, status, idempotency_key, risk_score, risk_decision,
			aml_decision, metadata, last_error, trace_id, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err = r.db.execer(tx).Exec(ctx, query,
		m.PaymentID, m.MerchantID, m.CustomerID, m.AccountID, m.AmountCents, m.Currency,
		m.Method, m.Destination, m.Status, m.IdempotencyKey, m.RiskScore, m.RiskDecision,
		m.AmlDecision, m.Metadata, m.LastError, m.TraceID, m.CreatedAt, m.UpdatedAt, m.Version,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.NewIdempotencyConflictError("payment already recorded for this idempotency key")
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

const paymentColumns = `
	payment_id, merchant_id, customer_id, account_id, amount_cents, currency,
	method, destination, status, idempotency_key, risk_score, risk_decision,
	aml_decision, metadata, last_error, trace_id, created_at, updated_at, version
`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var m paymentModel
	err := row.Scan(
		&m.PaymentID, &m.MerchantID, &m.CustomerID, &m.AccountID, &m.AmountCents, &m.Currency,
		&m.Method, &m.Destination, &m.Status, &m.IdempotencyKey, &m.RiskScore, &m.RiskDecision,
		&m.AmlDecision, &m.Metadata, &m.LastError, &m.TraceID, &m.CreatedAt, &m.UpdatedAt, &m.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return toDomainPayment(&m)
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`
	row := r.db.Pool.QueryRow(ctx, query, id.String())
	return scanPayment(row)
}

func (r *PaymentRepository) FindByMerchantAndIdempotencyKey(ctx context.Context, merchantID, idempotencyKey string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE merchant_id = $1 AND idempotency_key = $2`
	row := r.db.Pool.QueryRow(ctx, query, merchantID, idempotencyKey)
	return scanPayment(row)
}

// ClaimProcessing performs the optimistic RECEIVED -> PROCESSING transition:
// the UPDATE only matches a row still at the observed version, so a losing
// concurrent claim reports zero rows affected rather than an error.
func (r *PaymentRepository) ClaimProcessing(ctx context.Context, tx domain.Tx, paymentID uuid.UUID, observedVersion int) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1, version = version + 1, updated_at = $2
		WHERE payment_id = $3 AND version = $4 AND status = $5
	`
	tag, err := r.db.execer(tx).Exec(ctx, query,
		string(domain.StatusProcessing), time.Now().UTC(), paymentID.String(), observedVersion, string(domain.StatusReceived),
	)
	if err != nil {
		return false, fmt.Errorf("claim processing: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PaymentRepository) Update(ctx context.Context, tx domain.Tx, payment *domain.Payment) error {
	m, err := toPaymentModel(payment)
	if err != nil {
		return err
	}
	query := `
		UPDATE payments
		SET status = $1, risk_score = $2, risk_decision = $3, aml_decision = $4,
			metadata = $5, last_error = $6, updated_at = $7, version = $8
		WHERE payment_id = $9
	`
	tag, err := r.db.execer(tx).Exec(ctx, query,
		m.Status, m.RiskScore, m.RiskDecision, m.AmlDecision, m.Metadata, m.LastError, m.UpdatedAt, m.Version, m.PaymentID,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) SumOutgoingSince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time) (domain.Money, error) {
	query := `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM payments
		WHERE customer_id = $1 AND method = $2 AND created_at >= $3
		  AND status != $4
	`
	var cents int64
	err := r.db.Pool.QueryRow(ctx, query, customerID, string(rail), since, string(domain.StatusBlocked)).Scan(&cents)
	if err != nil {
		return domain.Money{}, fmt.Errorf("sum outgoing since: %w", err)
	}
	return domain.NewMoneyFromCents(cents), nil
}

func (r *PaymentRepository) CountNearThresholdSince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time, low, high domain.Money) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM payments
		WHERE customer_id = $1 AND method = $2 AND created_at >= $3
		  AND amount_cents >= $4 AND amount_cents <= $5
		  AND status != $6
	`
	var count int
	err := r.db.Pool.QueryRow(ctx, query, customerID, string(rail), since, low.Cents(), high.Cents(), string(domain.StatusBlocked)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count near threshold since: %w", err)
	}
	return count, nil
}

func (r *PaymentRepository) CountFailuresSince(ctx context.Context, customerID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM payments
		WHERE customer_id = $1 AND created_at >= $2 AND status = $3
	`
	var count int
	err := r.db.Pool.QueryRow(ctx, query, customerID, since, string(domain.StatusFailed)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failures since: %w", err)
	}
	return count, nil
}

func (r *PaymentRepository) DestinationSeen(ctx context.Context, customerID string, destination *string) (bool, error) {
	if destination == nil {
		return false, nil
	}
	query := `SELECT EXISTS(SELECT 1 FROM payments WHERE customer_id = $1 AND destination = $2)`
	var seen bool
	err := r.db.Pool.QueryRow(ctx, query, customerID, *destination).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("destination seen: %w", err)
	}
	return seen, nil
}

func (r *PaymentRepository) SumDailyOutgoing(ctx context.Context, customerID string, rail domain.PaymentMethod, dayStart time.Time) (domain.Money, error) {
	query := `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM payments
		WHERE customer_id = $1 AND method = $2 AND created_at >= $3
		  AND status != $4
	`
	var cents int64
	err := r.db.Pool.QueryRow(ctx, query, customerID, string(rail), dayStart, string(domain.StatusBlocked)).Scan(&cents)
	if err != nil {
		return domain.Money{}, fmt.Errorf("sum daily outgoing: %w", err)
	}
	return domain.NewMoneyFromCents(cents), nil
}

func (r *PaymentRepository) CountVelocitySince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM payments
		WHERE customer_id = $1 AND method = $2 AND created_at >= $3
		  AND status != $4
	`
	var count int
	err := r.db.Pool.QueryRow(ctx, query, customerID, string(rail), since, string(domain.StatusBlocked)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count velocity since: %w", err)
	}
	return count, nil
}

// CountByStatus backs the review-queue-size gauge sampled after admission
// and after every review decision (spec.md §4.7 step 10, §4.10).
func (r *PaymentRepository) CountByStatus(ctx context.Context, status domain.PaymentStatus) (int, error) {
	query := `SELECT COUNT(*) FROM payments WHERE status = $1`
	var count int
	if err := r.db.Pool.QueryRow(ctx, query, string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count by status: %w", err)
	}
	return count, nil
}
