// Package admission implements the end-to-end payment admission path:
// idempotency, KYC, limits, rate limiting, risk, AML, status resolution, and
// the single transactional persist (spec.md §4.7-§4.9).
package admission

import (
	"context"
	"errors"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/aml"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/idempotency"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/kyc"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/limits"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/metrics"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/ratelimit"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/risk"
	"github.com/google/uuid"
)

// Request is the inbound admission request: everything the HTTP edge
// extracted from headers and body.
type Request struct {
	MerchantID     string
	CustomerID     string
	AccountID      string
	IdempotencyKey string
	Amount         domain.Money
	Currency       string
	Method         domain.PaymentMethod
	Destination    *string
	Metadata       map[string]any
	TraceID        string
}

// Response is what the HTTP edge returns to the caller, and what is
// snapshotted verbatim into the idempotency record for replay.
type Response struct {
	PaymentID    uuid.UUID          `json:"payment_id"`
	Status       domain.PaymentStatus `json:"status"`
	RiskDecision domain.RiskDecision  `json:"risk_decision"`
	AmlDecision  domain.AmlDecision   `json:"aml_decision"`
}

type Coordinator struct {
	txManager   domain.TxManager
	paymentRepo domain.PaymentRepository
	outboxRepo  domain.OutboxRepository
	customerRepo domain.CustomerRepository
	idemRepo    domain.IdempotencyRepository

	gate      *idempotency.Gate
	kycGate   *kyc.Gate
	limits    *limits.Service
	rateLimit *ratelimit.Limiter
	risk      *risk.Engine
	aml       *aml.Engine
}

func NewCoordinator(
	txManager domain.TxManager,
	paymentRepo domain.PaymentRepository,
	outboxRepo domain.OutboxRepository,
	customerRepo domain.CustomerRepository,
	idemRepo domain.IdempotencyRepository,
	gate *idempotency.Gate,
	kycGate *kyc.Gate,
	limitsService *limits.Service,
	rateLimiter *ratelimit.Limiter,
	riskEngine *risk.Engine,
	amlEngine *aml.Engine,
) *Coordinator {
	return &Coordinator{
		txManager:    txManager,
		paymentRepo:  paymentRepo,
		outboxRepo:   outboxRepo,
		customerRepo: customerRepo,
		idemRepo:     idemRepo,
		gate:         gate,
		kycGate:      kycGate,
		limits:       limitsService,
		rateLimit:    rateLimiter,
		risk:         riskEngine,
		aml:          amlEngine,
	}
}

// Admit runs the full admission path and returns the response that should be
// sent to the caller, replaying an existing snapshot whenever one is found
// before or after a concurrent-write race.
func (c *Coordinator) Admit(ctx context.Context, req Request) (*Response, error) {
	if existing, err := c.findExistingResponse(ctx, req); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	if !c.gate.Acquire(ctx, req.MerchantID, req.IdempotencyKey) {
		return c.resolvePendingIdempotentRequest(ctx, req)
	}

	return c.createPaymentWithControls(ctx, req)
}

func (c *Coordinator) findExistingResponse(ctx context.Context, req Request) (*Response, error) {
	record, err := c.gate.FindExistingResponse(ctx, req.MerchantID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	metrics.IdempotencyReplayTotal.Inc()
	return responseFromRecord(record), nil
}

func (c *Coordinator) resolvePendingIdempotentRequest(ctx context.Context, req Request) (*Response, error) {
	payment, record, err := c.gate.WaitForResolution(ctx, req.MerchantID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return responseFromRecord(record), nil
	}
	return responseFromPayment(payment), nil
}

func (c *Coordinator) createPaymentWithControls(ctx context.Context, req Request) (*Response, error) {
	customer, err := c.customerRepo.FindByID(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.NewValidationError("customer not found")
	}

	if err := c.kycGate.Enforce(customer, req.Method); err != nil {
		metrics.KycDeniedTotal.WithLabelValues(string(req.Method)).Inc()
		return nil, err
	}

	evaluation, err := c.limits.Enforce(ctx, req.CustomerID, req.Method, req.Amount)
	if err != nil {
		metrics.LimitsExceededTotal.WithLabelValues(string(req.Method)).Inc()
		return nil, err
	}

	if err := c.rateLimit.Enforce(ctx, req.MerchantID, req.CustomerID, req.AccountID); err != nil {
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			metrics.RateLimitedTotal.WithLabelValues(domainErr.Dimension).Inc()
		}
		return nil, err
	}

	riskScore, riskDecision, err := c.risk.Evaluate(
		ctx, c.paymentRepo, customer, req.Amount, evaluation.Policy, evaluation.VelocityCount, req.Destination,
	)
	if err != nil {
		return nil, err
	}
	metrics.RiskDecisionsTotal.WithLabelValues(string(riskDecision)).Inc()

	amlDecision, err := c.aml.Evaluate(
		ctx, c.paymentRepo, req.CustomerID, req.Method, req.Amount, req.Destination, evaluation.Policy,
	)
	if err != nil {
		return nil, err
	}
	metrics.AmlDecisionsTotal.WithLabelValues(string(amlDecision)).Inc()

	finalStatus := resolveStatusFromDecisions(riskDecision, amlDecision)

	payment := domain.NewPayment(
		req.MerchantID, req.CustomerID, req.AccountID, req.Amount, req.Currency,
		req.Method, req.Destination, req.IdempotencyKey, req.TraceID,
	)
	payment.Status = finalStatus
	payment.RiskScore = riskScore
	payment.RiskDecision = riskDecision
	payment.AmlDecision = amlDecision
	payment.Metadata = req.Metadata

	response := &Response{
		PaymentID:    payment.PaymentID,
		Status:       payment.Status,
		RiskDecision: riskDecision,
		AmlDecision:  amlDecision,
	}

	replayed, err := c.persistPaymentTransaction(ctx, req, payment, response)
	if err != nil {
		return nil, err
	}
	if replayed != nil {
		return replayed, nil
	}

	if payment.Status != domain.StatusBlocked {
		c.aml.RecordOutgoing(ctx, req.CustomerID, req.Method, req.Amount)
	}
	c.sampleReviewQueueSize(ctx)

	return response, nil
}

// sampleReviewQueueSize refreshes the IN_REVIEW backlog gauge (spec.md §4.7
// step 10); a failed sample never fails the admission itself.
func (c *Coordinator) sampleReviewQueueSize(ctx context.Context) {
	if count, err := c.paymentRepo.CountByStatus(ctx, domain.StatusInReview); err == nil {
		metrics.ReviewQueueSize.Set(float64(count))
	}
}

// persistPaymentTransaction writes the payment, its outbox event, and the
// idempotency snapshot in a single transaction. A unique-constraint
// violation on (merchant_id, idempotency_key) means a concurrent request won
// the race; the caller then replays that winner's snapshot instead of
// surfacing a conflict, matching spec.md §4.9.
func (c *Coordinator) persistPaymentTransaction(ctx context.Context, req Request, payment *domain.Payment, response *Response) (*Response, error) {
	err := c.txManager.WithTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := c.paymentRepo.Create(ctx, tx, payment); err != nil {
			return err
		}
		if err := c.writeOutboxEvent(ctx, tx, req, payment); err != nil {
			return err
		}
		return c.idemRepo.Create(ctx, tx, &domain.IdempotencyRecord{
			MerchantID:     req.MerchantID,
			IdempotencyKey: req.IdempotencyKey,
			PaymentID:      payment.PaymentID,
			StatusCode:     202,
			ResponsePayload: mustMarshal(response),
			CreatedAt:      time.Now().UTC(),
		})
	})

	if err == nil {
		return nil, nil
	}
	if !domain.IsCategory(err, domain.CategoryIdempotencyConflict) {
		return nil, err
	}

	if existing, findErr := c.findExistingResponse(ctx, req); findErr == nil && existing != nil {
		return existing, nil
	}
	existingPayment, findErr := c.paymentRepo.FindByMerchantAndIdempotencyKey(ctx, req.MerchantID, req.IdempotencyKey)
	if findErr != nil {
		return nil, findErr
	}
	if existingPayment != nil {
		return responseFromPayment(existingPayment), nil
	}
	return nil, domain.NewIdempotencyConflictError("concurrent admission could not be resolved")
}

func (c *Coordinator) writeOutboxEvent(ctx context.Context, tx domain.Tx, req Request, payment *domain.Payment) error {
	switch payment.Status {
	case domain.StatusReceived:
		return c.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
			EventID:     uuid.New(),
			AggregateID: payment.PaymentID,
			EventType:   domain.EventPaymentRequested,
			Payload: map[string]any{
				"payment_id":  payment.PaymentID.String(),
				"merchant_id": req.MerchantID,
				"trace_id":    req.TraceID,
			},
			Status:        domain.OutboxPending,
			CreatedAt:     time.Now().UTC(),
			NextAttemptAt: time.Now().UTC(),
		})
	case domain.StatusInReview:
		return c.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
			EventID:     uuid.New(),
			AggregateID: payment.PaymentID,
			EventType:   domain.EventPaymentReviewNeeded,
			Payload: map[string]any{
				"payment_id":  payment.PaymentID.String(),
				"merchant_id": req.MerchantID,
				"reason":      "risk_or_aml_review",
			},
			Status:        domain.OutboxPending,
			CreatedAt:     time.Now().UTC(),
			NextAttemptAt: time.Now().UTC(),
		})
	default:
		// BLOCKED payments raise no downstream event: nothing settles or
		// waits on review.
		return nil
	}
}

// resolveStatusFromDecisions implements spec.md §4.8: BLOCK dominates
// REVIEW dominates ALLOW, checked across both engines independently.
func resolveStatusFromDecisions(riskDecision domain.RiskDecision, amlDecision domain.AmlDecision) domain.PaymentStatus {
	if riskDecision == domain.DecisionBlock || amlDecision == domain.AmlBlock {
		return domain.StatusBlocked
	}
	if riskDecision == domain.DecisionReview || amlDecision == domain.AmlReview {
		return domain.StatusInReview
	}
	return domain.StatusReceived
}

func responseFromPayment(p *domain.Payment) *Response {
	if p == nil {
		return nil
	}
	return &Response{
		PaymentID:    p.PaymentID,
		Status:       p.Status,
		RiskDecision: p.RiskDecision,
		AmlDecision:  p.AmlDecision,
	}
}

func responseFromRecord(record *domain.IdempotencyRecord) *Response {
	var resp Response
	if err := unmarshal(record.ResponsePayload, &resp); err != nil {
		return &Response{PaymentID: record.PaymentID}
	}
	return &resp
}
