package admission_test

import (
	"context"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/google/uuid"
)

// fakeTx is the opaque handle threaded through a fakeTxManager run.
type fakeTx struct{}

// fakeTxManager runs fn directly against the in-process fakes below,
// mirroring the teacher's WithTransaction shape without a real database.
type fakeTxManager struct {
	failOnCommit error
}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := fn(ctx, fakeTx{}); err != nil {
		return err
	}
	return f.failOnCommit
}

type fakePaymentRepo struct {
	byID              map[uuid.UUID]*domain.Payment
	byMerchantAndIdem map[string]*domain.Payment
	createErr         error
	failures          int
	destinationSeen   bool
	dailySum          domain.Money
	velocityCount     int
	nearCount         int
	sumOutgoing       domain.Money
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		byID:              make(map[uuid.UUID]*domain.Payment),
		byMerchantAndIdem: make(map[string]*domain.Payment),
	}
}

func (f *fakePaymentRepo) key(merchantID, idemKey string) string { return merchantID + "|" + idemKey }

func (f *fakePaymentRepo) Create(ctx context.Context, tx domain.Tx, payment *domain.Payment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.byID[payment.PaymentID] = payment
	f.byMerchantAndIdem[f.key(payment.MerchantID, payment.IdempotencyKey)] = payment
	return nil
}

func (f *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return f.byID[id], nil
}

func (f *fakePaymentRepo) FindByMerchantAndIdempotencyKey(ctx context.Context, merchantID, idempotencyKey string) (*domain.Payment, error) {
	return f.byMerchantAndIdem[f.key(merchantID, idempotencyKey)], nil
}

func (f *fakePaymentRepo) ClaimProcessing(ctx context.Context, tx domain.Tx, paymentID uuid.UUID, observedVersion int) (bool, error) {
	return true, nil
}

func (f *fakePaymentRepo) Update(ctx context.Context, tx domain.Tx, payment *domain.Payment) error {
	f.byID[payment.PaymentID] = payment
	return nil
}

func (f *fakePaymentRepo) SumOutgoingSince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time) (domain.Money, error) {
	return f.sumOutgoing, nil
}

func (f *fakePaymentRepo) CountNearThresholdSince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time, low, high domain.Money) (int, error) {
	return f.nearCount, nil
}

func (f *fakePaymentRepo) CountFailuresSince(ctx context.Context, customerID string, since time.Time) (int, error) {
	return f.failures, nil
}

func (f *fakePaymentRepo) DestinationSeen(ctx context.Context, customerID string, destination *string) (bool, error) {
	return f.destinationSeen, nil
}

func (f *fakePaymentRepo) SumDailyOutgoing(ctx context.Context, customerID string, rail domain.PaymentMethod, dayStart time.Time) (domain.Money, error) {
	return f.dailySum, nil
}

func (f *fakePaymentRepo) CountVelocitySince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time) (int, error) {
	return f.velocityCount, nil
}

func (f *fakePaymentRepo) CountByStatus(ctx context.Context, status domain.PaymentStatus) (int, error) {
	count := 0
	for _, p := range f.byID {
		if p.Status == status {
			count++
		}
	}
	return count, nil
}

type fakeOutboxRepo struct {
	events []*domain.OutboxEvent
}

func (f *fakeOutboxRepo) Create(ctx context.Context, tx domain.Tx, event *domain.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}
func (f *fakeOutboxRepo) FetchPending(ctx context.Context, eventType domain.EventType, batchSize int, now time.Time) ([]*domain.OutboxEvent, error) {
	return nil, nil
}
func (f *fakeOutboxRepo) MarkSent(ctx context.Context, tx domain.Tx, eventID uuid.UUID) error { return nil }
func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, tx domain.Tx, eventID uuid.UUID) error {
	return nil
}
func (f *fakeOutboxRepo) Reschedule(ctx context.Context, tx domain.Tx, eventID uuid.UUID, attempts int, nextAttemptAt time.Time) error {
	return nil
}
func (f *fakeOutboxRepo) CountPending(ctx context.Context, eventType domain.EventType) (int, error) {
	return 0, nil
}
func (f *fakeOutboxRepo) OldestPendingLag(ctx context.Context, eventType domain.EventType, now time.Time) (time.Duration, bool, error) {
	return 0, false, nil
}

type fakeCustomerRepo struct {
	customers map[string]*domain.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[string]*domain.Customer)}
}

func (f *fakeCustomerRepo) FindByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	return f.customers[customerID], nil
}

type fakeIdemRepo struct {
	records map[string]*domain.IdempotencyRecord
}

func newFakeIdemRepo() *fakeIdemRepo {
	return &fakeIdemRepo{records: make(map[string]*domain.IdempotencyRecord)}
}

func (f *fakeIdemRepo) key(merchantID, idemKey string) string { return merchantID + "|" + idemKey }

func (f *fakeIdemRepo) Create(ctx context.Context, tx domain.Tx, record *domain.IdempotencyRecord) error {
	f.records[f.key(record.MerchantID, record.IdempotencyKey)] = record
	return nil
}

func (f *fakeIdemRepo) FindByMerchantAndKey(ctx context.Context, merchantID, idempotencyKey string) (*domain.IdempotencyRecord, error) {
	return f.records[f.key(merchantID, idempotencyKey)], nil
}

type fakePolicyRepo struct {
	policies map[domain.PaymentMethod]*domain.LimitsPolicy
}

func newFakePolicyRepo() *fakePolicyRepo {
	return &fakePolicyRepo{policies: make(map[domain.PaymentMethod]*domain.LimitsPolicy)}
}

func (f *fakePolicyRepo) FindByRail(ctx context.Context, rail domain.PaymentMethod) (*domain.LimitsPolicy, error) {
	return f.policies[rail], nil
}
