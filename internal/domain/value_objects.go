package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer is seeded externally and immutable within this pipeline's scope.
type Customer struct {
	CustomerID string
	KycLevel   KycLevel
	Status     CustomerStatus
	CreatedAt  time.Time
}

// IsNew reports whether the customer was created within the last 7 days;
// a missing/zero CreatedAt is treated as new.
func (c Customer) IsNew(now time.Time) bool {
	if c.CreatedAt.IsZero() {
		return true
	}
	return now.Sub(c.CreatedAt) < 7*24*time.Hour
}

// LimitsPolicy carries the per-rail enforcement thresholds.
type LimitsPolicy struct {
	Rail                  PaymentMethod
	MinAmount             Money
	MaxAmount             Money
	DailyLimitAmount      Money
	VelocityLimitCount    int
	VelocityWindowSeconds int
}

// OutboxEvent is a durable record of a domain event, written in the same
// transaction as the state change it describes.
type OutboxEvent struct {
	EventID       uuid.UUID
	AggregateID   uuid.UUID
	EventType     EventType
	Payload       map[string]any
	Status        OutboxStatus
	Attempts      int
	CreatedAt     time.Time
	NextAttemptAt time.Time
}

// IdempotencyRecord stores the HTTP-shaped response snapshot of the
// original accepted request, keyed by (merchant_id, idempotency_key).
type IdempotencyRecord struct {
	MerchantID      string
	IdempotencyKey  string
	PaymentID       uuid.UUID
	StatusCode      int
	ResponsePayload []byte
	CreatedAt       time.Time
}
