// Package review implements the manual approve/reject path for payments
// parked IN_REVIEW by the admission coordinator (spec.md §4.10).
package review

import (
	"context"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/admission"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/metrics"
	"github.com/google/uuid"
)

const rejectReason = "manual_review_rejected"

type Workflow struct {
	txManager   domain.TxManager
	paymentRepo domain.PaymentRepository
	outboxRepo  domain.OutboxRepository
}

func NewWorkflow(txManager domain.TxManager, paymentRepo domain.PaymentRepository, outboxRepo domain.OutboxRepository) *Workflow {
	return &Workflow{txManager: txManager, paymentRepo: paymentRepo, outboxRepo: outboxRepo}
}

func (w *Workflow) loadInReviewOrFail(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := w.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.NewValidationError("payment not found")
	}
	if payment.Status != domain.StatusInReview {
		return nil, domain.NewValidationError("payment is not in review")
	}
	return payment, nil
}

// Approve moves an IN_REVIEW payment back into the admission pipeline at
// RECEIVED and re-enqueues the PaymentRequested event that a clean admission
// would have produced.
func (w *Workflow) Approve(ctx context.Context, paymentID uuid.UUID) (*admission.Response, error) {
	payment, err := w.loadInReviewOrFail(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := payment.Approve(); err != nil {
		return nil, err
	}

	err = w.txManager.WithTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := w.paymentRepo.Update(ctx, tx, payment); err != nil {
			return err
		}
		return w.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
			EventID:     uuid.New(),
			AggregateID: payment.PaymentID,
			EventType:   domain.EventPaymentRequested,
			Payload: map[string]any{
				"payment_id":  payment.PaymentID.String(),
				"merchant_id": payment.MerchantID,
				"trace_id":    payment.TraceID,
			},
			Status:        domain.OutboxPending,
			CreatedAt:     time.Now().UTC(),
			NextAttemptAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	w.sampleReviewQueueSize(ctx)
	return responseFromPayment(payment), nil
}

// Reject terminates an IN_REVIEW payment as BLOCKED with no further outbox
// event: a rejected payment settles nothing and waits on nothing.
func (w *Workflow) Reject(ctx context.Context, paymentID uuid.UUID) (*admission.Response, error) {
	payment, err := w.loadInReviewOrFail(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := payment.Reject(rejectReason); err != nil {
		return nil, err
	}

	err = w.txManager.WithTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return w.paymentRepo.Update(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	w.sampleReviewQueueSize(ctx)
	return responseFromPayment(payment), nil
}

// sampleReviewQueueSize refreshes the IN_REVIEW backlog gauge; a failed
// sample is not worth failing the request over.
func (w *Workflow) sampleReviewQueueSize(ctx context.Context) {
	if count, err := w.paymentRepo.CountByStatus(ctx, domain.StatusInReview); err == nil {
		metrics.ReviewQueueSize.Set(float64(count))
	}
}

func responseFromPayment(p *domain.Payment) *admission.Response {
	return &admission.Response{
		PaymentID:    p.PaymentID,
		Status:       p.Status,
		RiskDecision: p.RiskDecision,
		AmlDecision:  p.AmlDecision,
	}
}
