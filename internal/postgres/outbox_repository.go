package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/google/uuid"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

type OutboxRepository struct {
	db *DB
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, tx domain.Tx, event *domain.OutboxEvent) error {
	m, err := toOutboxModel(event)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO outbox_events (
			event_id, aggregate_id, event_type, payload, status, attempts, created_at, next_attempt_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.execer(tx).Exec(ctx, query,
		m.EventID, m.AggregateID, m.EventType, m.Payload, m.Status, m.Attempts, m.CreatedAt, m.NextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("create outbox event: %w", err)
	}
	return nil
}

// FetchPending claims a batch of due events for in-process handling; the
// worker is expected to be a single logical consumer per event_type, so no
// row locking is applied here (contrast with the teacher's SKIP LOCKED
// pattern, which guards multiple concurrent consumers of the same row set).
func (r *OutboxRepository) FetchPending(ctx context.Context, eventType domain.EventType, batchSize int, now time.Time) ([]*domain.OutboxEvent, error) {
	query := `
		SELECT event_id, aggregate_id, event_type, payload, status, attempts, created_at, next_attempt_at
		FROM outbox_events
		WHERE event_type = $1 AND status = $2 AND next_attempt_at <= $3
		ORDER BY created_at ASC
		LIMIT $4
	`
	rows, err := r.db.Pool.Query(ctx, query, string(eventType), string(domain.OutboxPending), now, batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var m outboxEventModel
		if err := rows.Scan(&m.EventID, &m.AggregateID, &m.EventType, &m.Payload, &m.Status, &m.Attempts, &m.CreatedAt, &m.NextAttemptAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		event, err := toDomainOutboxEvent(&m)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *OutboxRepository) MarkSent(ctx context.Context, tx domain.Tx, eventID uuid.UUID) error {
	_, err := r.db.execer(tx).Exec(ctx, `UPDATE outbox_events SET status = $1 WHERE event_id = $2`, string(domain.OutboxSent), eventID.String())
	if err != nil {
		return fmt.Errorf("mark outbox event sent: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, tx domain.Tx, eventID uuid.UUID) error {
	_, err := r.db.execer(tx).Exec(ctx, `UPDATE outbox_events SET status = $1 WHERE event_id = $2`, string(domain.OutboxFailed), eventID.String())
	if err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	return nil
}

func (r *OutboxRepository) Reschedule(ctx context.Context, tx domain.Tx, eventID uuid.UUID, attempts int, nextAttemptAt time.Time) error {
	query := `UPDATE outbox_events SET attempts = $1, next_attempt_at = $2 WHERE event_id = $3`
	_, err := r.db.execer(tx).Exec(ctx, query, attempts, nextAttemptAt, eventID.String())
	if err != nil {
		return fmt.Errorf("reschedule outbox event: %w", err)
	}
	return nil
}

func (r *OutboxRepository) CountPending(ctx context.Context, eventType domain.EventType) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE event_type = $1 AND status = $2`,
		string(eventType), string(domain.OutboxPending)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending outbox events: %w", err)
	}
	return count, nil
}

func (r *OutboxRepository) OldestPendingLag(ctx context.Context, eventType domain.EventType, now time.Time) (time.Duration, bool, error) {
	var oldest *time.Time
	err := r.db.Pool.QueryRow(ctx, `
		SELECT MIN(created_at) FROM outbox_events WHERE event_type = $1 AND status = $2
	`, string(eventType), string(domain.OutboxPending)).Scan(&oldest)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("oldest pending lag: %w", err)
	}
	if oldest == nil {
		return 0, false, nil
	}
	return now.Sub(*oldest), true, nil
}
