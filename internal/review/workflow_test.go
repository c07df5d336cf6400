package review_test

import (
	"context"
	"testing"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/review"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTxManager struct{}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return fn(ctx, struct{}{})
}

type fakePaymentRepo struct {
	domain.PaymentRepository
	payments map[uuid.UUID]*domain.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (f *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return f.payments[id], nil
}

func (f *fakePaymentRepo) Update(ctx context.Context, tx domain.Tx, payment *domain.Payment) error {
	f.payments[payment.PaymentID] = payment
	return nil
}

func (f *fakePaymentRepo) CountByStatus(ctx context.Context, status domain.PaymentStatus) (int, error) {
	count := 0
	for _, p := range f.payments {
		if p.Status == status {
			count++
		}
	}
	return count, nil
}

type fakeOutboxRepo struct {
	domain.OutboxRepository
	events []*domain.OutboxEvent
}

func (f *fakeOutboxRepo) Create(ctx context.Context, tx domain.Tx, event *domain.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func inReviewPayment() *domain.Payment {
	amount, _ := domain.ParseMoney("10.00")
	p := domain.NewPayment("merchant-1", "cust-1", "acct-1", amount, "BRL", domain.MethodPIX, nil, "idem-1", "trace-1")
	p.Status = domain.StatusInReview
	return p
}

func TestWorkflow_Approve_MovesToReceivedAndEnqueuesEvent(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	outboxRepo := &fakeOutboxRepo{}
	w := review.NewWorkflow(&fakeTxManager{}, paymentRepo, outboxRepo)

	p := inReviewPayment()
	paymentRepo.payments[p.PaymentID] = p

	resp, err := w.Approve(context.Background(), p.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, resp.Status)
	assert.Len(t, outboxRepo.events, 1)
	assert.Equal(t, domain.EventPaymentRequested, outboxRepo.events[0].EventType)
}

func TestWorkflow_Reject_MovesToBlockedWithNoEvent(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	outboxRepo := &fakeOutboxRepo{}
	w := review.NewWorkflow(&fakeTxManager{}, paymentRepo, outboxRepo)

	p := inReviewPayment()
	paymentRepo.payments[p.PaymentID] = p

	resp, err := w.Reject(context.Background(), p.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBlocked, resp.Status)
	assert.Empty(t, outboxRepo.events)
}

func TestWorkflow_Approve_NotInReviewRejected(t *testing.T) {
	paymentRepo := newFakePaymentRepo()
	outboxRepo := &fakeOutboxRepo{}
	w := review.NewWorkflow(&fakeTxManager{}, paymentRepo, outboxRepo)

	amount, _ := domain.ParseMoney("10.00")
	p := domain.NewPayment("merchant-1", "cust-1", "acct-1", amount, "BRL", domain.MethodPIX, nil, "idem-1", "trace-1")
	p.Status = domain.StatusReceived
	paymentRepo.payments[p.PaymentID] = p

	_, err := w.Approve(context.Background(), p.PaymentID)
	assert.True(t, domain.IsCategory(err, domain.CategoryValidation))
}
