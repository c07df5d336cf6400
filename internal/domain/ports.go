package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PaymentRepository defines data access for the Payment aggregate. The
// transactional methods (Create, ClaimProcessing, Update) are invoked
// through a Tx obtained from TxManager so the caller controls atomicity.
type PaymentRepository interface {
	Create(ctx context.Context, tx Tx, payment *Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByMerchantAndIdempotencyKey(ctx context.Context, merchantID, idempotencyKey string) (*Payment, error)

	// ClaimProcessing performs the optimistic `RECEIVED -> PROCESSING`
	// claim: UPDATE ... WHERE payment_id = ? AND version = ?. It reports
	// whether the caller won the race.
	ClaimProcessing(ctx context.Context, tx Tx, paymentID uuid.UUID, observedVersion int) (won bool, err error)

	// Update persists mutable fields (status, risk/aml decisions, last
	// error, version) inside tx.
	Update(ctx context.Context, tx Tx, payment *Payment) error

	// SumOutgoingSince is the DB fallback for the AML aggregate-window
	// check when the cache is unreachable.
	SumOutgoingSince(ctx context.Context, customerID string, rail PaymentMethod, since time.Time) (Money, error)

	// CountNearThresholdSince is the DB fallback for AML structuring
	// detection.
	CountNearThresholdSince(ctx context.Context, customerID string, rail PaymentMethod, since time.Time, low, high Money) (int, error)

	// CountFailuresSince supports the risk engine's RepeatedFailures rule.
	CountFailuresSince(ctx context.Context, customerID string, since time.Time) (int, error)

	// DestinationSeen supports the risk engine's NewDestination rule.
	DestinationSeen(ctx context.Context, customerID string, destination *string) (bool, error)

	// SumDailyOutgoing is the DB fallback for the limits service's
	// daily-limit check.
	SumDailyOutgoing(ctx context.Context, customerID string, rail PaymentMethod, dayStart time.Time) (Money, error)

	// CountVelocitySince is the DB fallback for the limits service's
	// velocity check.
	CountVelocitySince(ctx context.Context, customerID string, rail PaymentMethod, since time.Time) (int, error)

	// CountByStatus backs the review-queue-size metric sampled by the
	// admission coordinator and the review workflow (spec.md §4.7 step 10,
	// §4.10).
	CountByStatus(ctx context.Context, status PaymentStatus) (int, error)
}

// CustomerRepository loads externally-seeded customer records.
type CustomerRepository interface {
	FindByID(ctx context.Context, customerID string) (*Customer, error)
}

// LimitsPolicyRepository loads the per-rail policy table.
type LimitsPolicyRepository interface {
	FindByRail(ctx context.Context, rail PaymentMethod) (*LimitsPolicy, error)
}

// OutboxRepository persists and drains OutboxEvent rows.
type OutboxRepository interface {
	Create(ctx context.Context, tx Tx, event *OutboxEvent) error
	FetchPending(ctx context.Context, eventType EventType, batchSize int, now time.Time) ([]*OutboxEvent, error)
	MarkSent(ctx context.Context, tx Tx, eventID uuid.UUID) error
	MarkFailed(ctx context.Context, tx Tx, eventID uuid.UUID) error
	Reschedule(ctx context.Context, tx Tx, eventID uuid.UUID, attempts int, nextAttemptAt time.Time) error
	CountPending(ctx context.Context, eventType EventType) (int, error)
	OldestPendingLag(ctx context.Context, eventType EventType, now time.Time) (time.Duration, bool, error)
}

// IdempotencyRepository persists the admission response snapshot.
type IdempotencyRepository interface {
	Create(ctx context.Context, tx Tx, record *IdempotencyRecord) error
	FindByMerchantAndKey(ctx context.Context, merchantID, idempotencyKey string) (*IdempotencyRecord, error)
}

// Tx is an opaque, store-specific transaction handle threaded through the
// repository bundle so the admission coordinator and outbox worker each
// open exactly one transaction per unit of work (spec.md §5).
type Tx interface{}

// TxManager opens a transaction and invokes fn with it, committing on nil
// error and rolling back otherwise — the "cyclic service graph" redesign
// from spec.md §9: the admission unit owns the session and a fixed set of
// repository handles, passed explicitly rather than through a locator.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// ProviderResponse is what a provider client returns on a confirm call.
type ProviderResponse struct {
	ProviderReference string
	Confirmed         bool
	Provider          string
	Duplicate         bool
	PartialFailure    bool
}

// ProviderRequest is the outbound payload to a provider's confirm endpoint.
type ProviderRequest struct {
	PaymentID  uuid.UUID
	MerchantID string
	Amount     Money
	Currency   string
	Method     PaymentMethod
}

// ProviderClient is the one external capability the core consumes for
// settlement; the downstream provider HTTP service itself is out of scope.
type ProviderClient interface {
	Confirm(ctx context.Context, confirmPath string, req ProviderRequest) (*ProviderResponse, error)
}
