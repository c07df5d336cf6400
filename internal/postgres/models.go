package postgres

import "time"

// paymentModel is the payments table row shape.
type paymentModel struct {
	PaymentID      string
	MerchantID     string
	CustomerID     string
	AccountID      string
	AmountCents    int64
	Currency       string
	Method         string
	Destination    *string
	Status         string
	IdempotencyKey string
	RiskScore      int
	RiskDecision   string
	AmlDecision    string
	Metadata       []byte
	LastError      *string
	TraceID        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int
}

// customerModel is the externally-seeded customers table row shape.
type customerModel struct {
	CustomerID string
	KycLevel   string
	Status     string
	CreatedAt  time.Time
}

// limitsPolicyModel is the per-rail policy table row shape.
type limitsPolicyModel struct {
	Rail                  string
	MinAmountCents        int64
	MaxAmountCents        int64
	DailyLimitCents       int64
	VelocityLimitCount    int
	VelocityWindowSeconds int
}

// outboxEventModel is the outbox_events table row shape.
type outboxEventModel struct {
	EventID       string
	AggregateID   string
	EventType     string
	Payload       []byte
	Status        string
	Attempts      int
	CreatedAt     time.Time
	NextAttemptAt time.Time
}

// idempotencyRecordModel is the idempotency_records table row shape.
type idempotencyRecordModel struct {
	MerchantID      string
	IdempotencyKey  string
	PaymentID       string
	StatusCode      int
	ResponsePayload []byte
	CreatedAt       time.Time
}
