// Package outbox drains PaymentRequested events and drives each payment
// through the provider confirm call to a terminal state.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/metrics"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/provider"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/resilience"
	"github.com/google/uuid"
)

const (
	failureUnexpected      = "UNEXPECTED_PROCESSOR_ERROR"
	failurePartial         = "PROVIDER_PARTIAL_FAILURE"
	rescheduleBackoffBase  = 500 * time.Millisecond
	rescheduleBackoffCap   = 5 * time.Second
	rescheduleBackoffJitter = 0.25
)

// ProcessorError is a transient provider/transport failure that the event
// should be rescheduled for, up to MaxEventAttempts.
type ProcessorError struct {
	Err error
}

func (e *ProcessorError) Error() string { return e.Err.Error() }
func (e *ProcessorError) Unwrap() error { return e.Err }

type Config struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxEventAttempts int
}

// Worker drains the PaymentRequested outbox queue and drives each payment to
// CONFIRMED or FAILED through the provider driver.
type Worker struct {
	txManager  domain.TxManager
	paymentRepo domain.PaymentRepository
	outboxRepo domain.OutboxRepository
	driver     *provider.Driver
	config     Config
	logger     *slog.Logger
}

func NewWorker(
	txManager domain.TxManager,
	paymentRepo domain.PaymentRepository,
	outboxRepo domain.OutboxRepository,
	driver *provider.Driver,
	config Config,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		txManager:   txManager,
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		driver:      driver,
		config:      config,
		logger:      logger,
	}
}

// RunForever polls at config.PollInterval until ctx is cancelled, logging
// and continuing past any error a single pass raises.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("outbox pass failed", "error", err)
			}
		}
	}
}

// RunOnce records backlog/lag metrics then drains one batch of pending
// PaymentRequested events.
func (w *Worker) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()

	if count, err := w.outboxRepo.CountPending(ctx, domain.EventPaymentRequested); err == nil {
		metrics.OutboxBacklog.WithLabelValues(string(domain.EventPaymentRequested)).Set(float64(count))
	}
	if lag, found, err := w.outboxRepo.OldestPendingLag(ctx, domain.EventPaymentRequested, now); err == nil && found {
		metrics.OutboxLagSeconds.WithLabelValues(string(domain.EventPaymentRequested)).Set(lag.Seconds())
	}

	events, err := w.outboxRepo.FetchPending(ctx, domain.EventPaymentRequested, w.config.BatchSize, now)
	if err != nil {
		return err
	}

	for _, event := range events {
		w.processEvent(ctx, event)
	}
	return nil
}

func (w *Worker) processEvent(ctx context.Context, event *domain.OutboxEvent) {
	payment, err := w.paymentRepo.FindByID(ctx, event.AggregateID)
	if err != nil {
		w.logger.Error("outbox event references missing payment",
			"event_id", event.EventID, "payment_id", event.AggregateID, "error", err)
		w.markFailed(ctx, event)
		return
	}

	won, err := w.claimProcessing(ctx, payment)
	if err != nil {
		w.logger.Error("claim processing failed", "payment_id", payment.PaymentID, "error", err)
		w.markFailed(ctx, event)
		return
	}
	if !won {
		// Another worker already advanced this payment past RECEIVED; the
		// event itself is done, win or lose.
		w.markSent(ctx, event)
		return
	}

	resp, err := w.driver.Confirm(ctx, payment.Method, domain.ProviderRequest{
		PaymentID:  payment.PaymentID,
		MerchantID: payment.MerchantID,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		Method:     payment.Method,
	})

	switch {
	case err == nil:
		w.handleProviderResponse(ctx, event, payment, resp)
	case isRecoverable(err):
		metrics.ProviderErrorsTotal.WithLabelValues(string(payment.Method)).Inc()
		w.handleProcessorError(ctx, event, payment, &ProcessorError{Err: err})
	default:
		metrics.ProviderErrorsTotal.WithLabelValues(string(payment.Method)).Inc()
		w.finalizeFail(ctx, payment, "unknown", failureUnexpected, err.Error())
		w.markFailed(ctx, event)
	}
}

// isRecoverable reports whether the provider call failed in a way worth
// rescheduling: a transient provider error or an open circuit, as opposed
// to a permanent rejection (bad method, malformed request).
func isRecoverable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return true
	}
	var providerErr *provider.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.IsTransient()
	}
	return false
}

// claimProcessing performs the optimistic RECEIVED -> PROCESSING transition
// and advances the in-memory aggregate to match on success.
func (w *Worker) claimProcessing(ctx context.Context, payment *domain.Payment) (bool, error) {
	var won bool
	err := w.txManager.WithTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var txErr error
		won, txErr = w.paymentRepo.ClaimProcessing(ctx, tx, payment.PaymentID, payment.Version)
		return txErr
	})
	if err != nil {
		return false, err
	}
	if won {
		if err := payment.MarkProcessing(); err != nil {
			return false, err
		}
	}
	return won, nil
}

func (w *Worker) handleProviderResponse(ctx context.Context, event *domain.OutboxEvent, payment *domain.Payment, resp *domain.ProviderResponse) {
	if resp.Confirmed && !resp.PartialFailure {
		w.finalizeConfirm(ctx, payment, resp.Provider, resp.ProviderReference)
		w.markSent(ctx, event)
		return
	}
	w.finalizeFail(ctx, payment, resp.Provider, failurePartial, failurePartial)
	w.markSent(ctx, event)
}

func (w *Worker) handleProcessorError(ctx context.Context, event *domain.OutboxEvent, payment *domain.Payment, procErr *ProcessorError) {
	attempts := event.Attempts + 1
	if attempts >= w.config.MaxEventAttempts {
		category, reason := classify(procErr.Err)
		providerName, _ := providerNameFor(payment.Method)
		w.logger.Error("outbox event exhausted retries",
			"event_id", event.EventID, "payment_id", payment.PaymentID, "attempts", attempts, "error", procErr)
		w.finalizeFail(ctx, payment, providerName, category, reason)
		w.markFailed(ctx, event)
		return
	}

	w.logger.Warn("outbox event rescheduled",
		"event_id", event.EventID, "payment_id", payment.PaymentID, "attempts", attempts, "error", procErr)
	delay := resilience.ExponentialBackoff(attempts, rescheduleBackoffBase, rescheduleBackoffCap, rescheduleBackoffJitter)
	if err := w.txManager.WithTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return w.outboxRepo.Reschedule(ctx, tx, event.EventID, attempts, time.Now().UTC().Add(delay))
	}); err != nil {
		w.logger.Error("reschedule failed", "event_id", event.EventID, "error", err)
	}
}

func providerNameFor(method domain.PaymentMethod) (string, bool) {
	profile, ok := provider.ProfileFor(method)
	if !ok {
		return "unknown", false
	}
	return profile.ProviderName, true
}

// classify maps a processor error to the internal error-category taxonomy
// (spec.md §7) and a human-readable reason string.
func classify(err error) (category, reason string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "provider_timeout", err.Error()
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "provider_5xx", err.Error()
	default:
		var providerErr *provider.ProviderError
		if errors.As(err, &providerErr) && providerErr.IsTransient() {
			return "provider_5xx", err.Error()
		}
		return failureUnexpected, err.Error()
	}
}

func (w *Worker) finalizeConfirm(ctx context.Context, payment *domain.Payment, providerName, reference string) {
	if err := payment.Confirm(); err != nil {
		w.logger.Error("confirm transition rejected", "payment_id", payment.PaymentID, "error", err)
		return
	}
	w.updatePaymentWithEvent(ctx, payment, &domain.OutboxEvent{
		EventID:     uuid.New(),
		AggregateID: payment.PaymentID,
		EventType:   domain.EventPaymentConfirmed,
		Payload: map[string]any{
			"payment_id":         payment.PaymentID.String(),
			"merchant_id":        payment.MerchantID,
			"provider":           providerName,
			"provider_reference": reference,
		},
		Status:        domain.OutboxPending,
		CreatedAt:     time.Now().UTC(),
		NextAttemptAt: time.Now().UTC(),
	})
}

func (w *Worker) finalizeFail(ctx context.Context, payment *domain.Payment, providerName, category, reason string) {
	if err := payment.Fail(reason); err != nil {
		w.logger.Error("fail transition rejected", "payment_id", payment.PaymentID, "error", err)
		return
	}
	w.updatePaymentWithEvent(ctx, payment, &domain.OutboxEvent{
		EventID:     uuid.New(),
		AggregateID: payment.PaymentID,
		EventType:   domain.EventPaymentFailed,
		Payload: map[string]any{
			"payment_id":     payment.PaymentID.String(),
			"merchant_id":    payment.MerchantID,
			"provider":       providerName,
			"error_category": category,
			"reason":         reason,
		},
		Status:        domain.OutboxPending,
		CreatedAt:     time.Now().UTC(),
		NextAttemptAt: time.Now().UTC(),
	})
}

// updatePaymentWithEvent persists the finalized payment and its completion
// event in one transaction, per spec.md §4.13.
func (w *Worker) updatePaymentWithEvent(ctx context.Context, payment *domain.Payment, event *domain.OutboxEvent) {
	if err := w.txManager.WithTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := w.paymentRepo.Update(ctx, tx, payment); err != nil {
			return err
		}
		return w.outboxRepo.Create(ctx, tx, event)
	}); err != nil {
		w.logger.Error("payment finalization failed", "payment_id", payment.PaymentID, "error", err)
	}
}

func (w *Worker) markSent(ctx context.Context, event *domain.OutboxEvent) {
	if err := w.txManager.WithTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return w.outboxRepo.MarkSent(ctx, tx, event.EventID)
	}); err != nil {
		w.logger.Error("mark sent failed", "event_id", event.EventID, "error", err)
	}
}

func (w *Worker) markFailed(ctx context.Context, event *domain.OutboxEvent) {
	if err := w.txManager.WithTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return w.outboxRepo.MarkFailed(ctx, tx, event.EventID)
	}); err != nil {
		w.logger.Error("mark failed failed", "event_id", event.EventID, "error", err)
	}
}
