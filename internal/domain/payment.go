// Package domain encodes the payment aggregate and its attributes.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Payment is the aggregate root of the admission/settlement pipeline.
type Payment struct {
	PaymentID      uuid.UUID
	MerchantID     string
	CustomerID     string
	AccountID      string
	Amount         Money
	Currency       string
	Method         PaymentMethod
	Destination    *string
	Status         PaymentStatus
	IdempotencyKey string

	RiskScore    int
	RiskDecision RiskDecision
	AmlDecision  AmlDecision

	Metadata  map[string]any
	LastError *string
	TraceID   string

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

// NewPayment constructs a fresh Payment in RECEIVED-candidate state (status
// is assigned by the admission coordinator after status resolution, §4.8).
func NewPayment(
	merchantID, customerID, accountID string,
	amount Money,
	currency string,
	method PaymentMethod,
	destination *string,
	idempotencyKey string,
	traceID string,
) *Payment {
	now := time.Now()
	return &Payment{
		PaymentID:      uuid.New(),
		MerchantID:     merchantID,
		CustomerID:     customerID,
		AccountID:      accountID,
		Amount:         amount,
		Currency:       currency,
		Method:         method,
		Destination:    destination,
		IdempotencyKey: idempotencyKey,
		TraceID:        traceID,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}
}

// CanTransitionTo validates whether a payment can transition from its
// current status to the target status. Terminal states (CONFIRMED, FAILED,
// BLOCKED) allow no further transitions.
//
// Valid transitions are:
//   - RECEIVED → PROCESSING
//   - PROCESSING → CONFIRMED, FAILED
//   - IN_REVIEW → RECEIVED (approve), BLOCKED (reject)
//
// Any other transition returns an error.
func (p *Payment) CanTransitionTo(target PaymentStatus) error {
	switch p.Status {
	case StatusConfirmed, StatusFailed, StatusBlocked:
		return NewInvalidTransitionError(p.Status, target)
	case StatusReceived:
		return p.allow(target, StatusProcessing)
	case StatusProcessing:
		return p.allow(target, StatusConfirmed, StatusFailed)
	case StatusInReview:
		return p.allow(target, StatusReceived, StatusBlocked)
	}
	return NewInvalidTransitionError(p.Status, target)
}

func (p *Payment) allow(target PaymentStatus, allowed ...PaymentStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(p.Status, target)
}

func (p *Payment) transition(target PaymentStatus) error {
	if err := p.CanTransitionTo(target); err != nil {
		return err
	}
	p.Status = target
	p.Version++
	p.UpdatedAt = time.Now()
	return nil
}

// IsTerminal reports whether no further transitions are possible.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusConfirmed, StatusFailed, StatusBlocked:
		return true
	default:
		return false
	}
}

// MarkProcessing is driven by the outbox worker's optimistic claim; callers
// use the repository's versioned UPDATE rather than this method directly to
// perform the actual claim, but the in-memory transition still enforces the
// DAG for callers who already hold a freshly-claimed row.
func (p *Payment) MarkProcessing() error {
	return p.transition(StatusProcessing)
}

// Confirm finalizes a successful provider call. version advances by 2 per
// spec.md §4.13 (the status transition plus one further increment), on top
// of the increment MarkProcessing already made for the claim.
func (p *Payment) Confirm() error {
	if err := p.transition(StatusConfirmed); err != nil {
		return err
	}
	p.Version++
	p.LastError = nil
	return nil
}

// Fail finalizes an unsuccessful provider call or a processor error with
// reason preserved in LastError.
func (p *Payment) Fail(reason string) error {
	if err := p.transition(StatusFailed); err != nil {
		return err
	}
	p.Version++
	p.LastError = &reason
	return nil
}

// Approve moves a payment parked IN_REVIEW back into the pipeline.
func (p *Payment) Approve() error {
	return p.transition(StatusReceived)
}

// Reject terminates a payment parked IN_REVIEW.
func (p *Payment) Reject(reason string) error {
	if err := p.transition(StatusBlocked); err != nil {
		return err
	}
	p.LastError = &reason
	return nil
}

// Reconstitute loads a Payment from persistence without re-running
// creation-time validation.
func Reconstitute(
	paymentID uuid.UUID,
	merchantID, customerID, accountID string,
	amount Money,
	currency string,
	method PaymentMethod,
	destination *string,
	status PaymentStatus,
	idempotencyKey string,
	riskScore int,
	riskDecision RiskDecision,
	amlDecision AmlDecision,
	metadata map[string]any,
	lastError *string,
	traceID string,
	createdAt, updatedAt time.Time,
	version int,
) *Payment {
	return &Payment{
		PaymentID:      paymentID,
		MerchantID:     merchantID,
		CustomerID:     customerID,
		AccountID:      accountID,
		Amount:         amount,
		Currency:       currency,
		Method:         method,
		Destination:    destination,
		Status:         status,
		IdempotencyKey: idempotencyKey,
		RiskScore:      riskScore,
		RiskDecision:   riskDecision,
		AmlDecision:    amlDecision,
		Metadata:       metadata,
		LastError:      lastError,
		TraceID:        traceID,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		Version:        version,
	}
}
