package domain

// PaymentMethod is the payment rail / settlement channel.
type PaymentMethod string

const (
	MethodPIX    PaymentMethod = "PIX"
	MethodBoleto PaymentMethod = "BOLETO"
	MethodTED    PaymentMethod = "TED"
	MethodCard   PaymentMethod = "CARD"
)

// SupportedMethods lists every rail the pipeline can route.
var SupportedMethods = map[PaymentMethod]bool{
	MethodPIX:    true,
	MethodBoleto: true,
	MethodTED:    true,
	MethodCard:   true,
}

// KycLevel is the customer's know-your-customer verification tier.
type KycLevel string

const (
	KycNone  KycLevel = "NONE"
	KycBasic KycLevel = "BASIC"
	KycFull  KycLevel = "FULL"
)

var kycRank = map[KycLevel]int{
	KycNone:  0,
	KycBasic: 1,
	KycFull:  2,
}

// Rank returns the ordinal rank of a KYC level for minimum-level comparisons.
func (k KycLevel) Rank() int { return kycRank[k] }

// CustomerStatus reflects account standing, independent of KYC tier.
type CustomerStatus string

const (
	CustomerActive    CustomerStatus = "ACTIVE"
	CustomerSuspended CustomerStatus = "SUSPENDED"
)

// RiskDecision is the outcome of the risk engine.
type RiskDecision string

// AmlDecision is the outcome of the AML engine.
type AmlDecision string

const (
	DecisionAllow  RiskDecision = "ALLOW"
	DecisionReview RiskDecision = "REVIEW"
	DecisionBlock  RiskDecision = "BLOCK"
)

const (
	AmlAllow  AmlDecision = "ALLOW"
	AmlReview AmlDecision = "REVIEW"
	AmlBlock  AmlDecision = "BLOCK"
)

// PaymentStatus is the admission/settlement lifecycle state of a Payment.
type PaymentStatus string

const (
	StatusReceived   PaymentStatus = "RECEIVED"
	StatusValidated  PaymentStatus = "VALIDATED"
	StatusInReview   PaymentStatus = "IN_REVIEW"
	StatusProcessing PaymentStatus = "PROCESSING"
	StatusConfirmed  PaymentStatus = "CONFIRMED"
	StatusFailed     PaymentStatus = "FAILED"
	StatusBlocked    PaymentStatus = "BLOCKED"
)

// EventType enumerates the outbox event kinds.
type EventType string

const (
	EventPaymentRequested     EventType = "PaymentRequested"
	EventPaymentConfirmed     EventType = "PaymentConfirmed"
	EventPaymentFailed        EventType = "PaymentFailed"
	EventPaymentReviewNeeded  EventType = "PaymentReviewRequired"
)

// OutboxStatus is the publication status of an OutboxEvent row.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxSent    OutboxStatus = "SENT"
	OutboxFailed  OutboxStatus = "FAILED"
)
