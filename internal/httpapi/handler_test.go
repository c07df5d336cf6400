package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/admission"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/aml"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/cache"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/httpapi"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/idempotency"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/kyc"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/limits"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/ratelimit"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/review"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/risk"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeTx struct{}

type fakeTxManager struct{}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return fn(ctx, fakeTx{})
}

type fakePaymentRepo struct {
	byID map[uuid.UUID]*domain.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{byID: make(map[uuid.UUID]*domain.Payment)}
}

func (f *fakePaymentRepo) Create(ctx context.Context, tx domain.Tx, p *domain.Payment) error {
	f.byID[p.PaymentID] = p
	return nil
}
func (f *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return f.byID[id], nil
}
func (f *fakePaymentRepo) FindByMerchantAndIdempotencyKey(ctx context.Context, merchantID, idempotencyKey string) (*domain.Payment, error) {
	for _, p := range f.byID {
		if p.MerchantID == merchantID && p.IdempotencyKey == idempotencyKey {
			return p, nil
		}
	}
	return nil, nil
}
func (f *fakePaymentRepo) ClaimProcessing(ctx context.Context, tx domain.Tx, paymentID uuid.UUID, observedVersion int) (bool, error) {
	return true, nil
}
func (f *fakePaymentRepo) Update(ctx context.Context, tx domain.Tx, p *domain.Payment) error {
	f.byID[p.PaymentID] = p
	return nil
}
func (f *fakePaymentRepo) SumOutgoingSince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time) (domain.Money, error) {
	return domain.NewMoneyFromCents(0), nil
}
func (f *fakePaymentRepo) CountNearThresholdSince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time, low, high domain.Money) (int, error) {
	return 0, nil
}
func (f *fakePaymentRepo) CountFailuresSince(ctx context.Context, customerID string, since time.Time) (int, error) {
	return 0, nil
}
func (f *fakePaymentRepo) DestinationSeen(ctx context.Context, customerID string, destination *string) (bool, error) {
	return false, nil
}
func (f *fakePaymentRepo) SumDailyOutgoing(ctx context.Context, customerID string, rail domain.PaymentMethod, dayStart time.Time) (domain.Money, error) {
	return domain.NewMoneyFromCents(0), nil
}
func (f *fakePaymentRepo) CountVelocitySince(ctx context.Context, customerID string, rail domain.PaymentMethod, since time.Time) (int, error) {
	return 0, nil
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

type fakeOutboxRepo struct{ events []*domain.OutboxEvent }

func (f *fakeOutboxRepo) Create(ctx context.Context, tx domain.Tx, e *domain.OutboxEvent) error {
	f.events = append(f.events, e)
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

type fakeCustomerRepo struct{ customers map[string]*domain.Customer }

func (f *fakeCustomerRepo) FindByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	return f.customers[customerID], nil
}

type fakeIdemRepo struct {
	records map[string]*domain.IdempotencyRecord
}

func (f *fakeIdemRepo) key(merchantID, idemKey string) string { return merchantID + "|" + idemKey }
func (f *fakeIdemRepo) Create(ctx context.Context, tx domain.Tx, r *domain.IdempotencyRecord) error {
	f.records[f.key(r.MerchantID, r.IdempotencyKey)] = r
	return nil
}
func (f *fakeIdemRepo) FindByMerchantAndKey(ctx context.Context, merchantID, idempotencyKey string) (*domain.IdempotencyRecord, error) {
	return f.records[f.key(merchantID, idempotencyKey)], nil
}

type fakePolicyRepo struct{ policies map[domain.PaymentMethod]*domain.LimitsPolicy }

func (f *fakePolicyRepo) FindByRail(ctx context.Context, rail domain.PaymentMethod) (*domain.LimitsPolicy, error) {
	return f.policies[rail], nil
}

func mustMoney(t *testing.T, s string) domain.Money {
	t.Helper()
	m, err := domain.ParseMoney(s)
	require.NoError(t, err)
	return m
}

// newTestHandler wires a real Coordinator and Workflow against in-process
// fakes, the same way internal/admission's own tests do, so the HTTP edge is
// exercised against actual admission/review semantics rather than mocks of
// the handler's direct dependencies.
func newTestHandler(t *testing.T) (*httpapi.Handler, *fakePaymentRepo, *fakeCustomerRepo) {
	t.Helper()
	c := cache.NewInMemoryCache()
	paymentRepo := newFakePaymentRepo()
	outboxRepo := &fakeOutboxRepo{}
	customerRepo := &fakeCustomerRepo{customers: make(map[string]*domain.Customer)}
	idemRepo := &fakeIdemRepo{records: make(map[string]*domain.IdempotencyRecord)}
	policyRepo := &fakePolicyRepo{policies: make(map[domain.PaymentMethod]*domain.LimitsPolicy)}
	policyRepo.policies[domain.MethodPIX] = &domain.LimitsPolicy{
		Rail:                  domain.MethodPIX,
		MinAmount:             mustMoney(t, "1.00"),
		MaxAmount:             mustMoney(t, "1000.00"),
		DailyLimitAmount:      mustMoney(t, "5000.00"),
		VelocityLimitCount:    10,
		VelocityWindowSeconds: 3600,
	}

	gate := idempotency.NewGate(c, idemRepo, paymentRepo)
	kycGate := kyc.NewGate()
	limitsSvc := limits.NewService(c, policyRepo, paymentRepo, time.Minute)
	rateLimiter := ratelimit.NewLimiter(c, ratelimit.Limits{WindowSeconds: 60, MerchantLimit: 1000, CustomerLimit: 1000, AccountLimit: 1000})
	riskEngine := risk.NewEngine(50, 80)
	amlEngine := aml.NewEngine(c, aml.Config{
		BlocklistDestinations:     map[string]bool{"blocked-dest": true},
		TotalWindowSeconds:        86400,
		TotalThresholdAmount:      mustMoney(t, "100000.00"),
		StructuringWindowSeconds:  3600,
		StructuringCountThreshold: 10,
	})

	coordinator := admission.NewCoordinator(
		&fakeTxManager{}, paymentRepo, outboxRepo, customerRepo, idemRepo,
		gate, kycGate, limitsSvc, rateLimiter, riskEngine, amlEngine,
	)
	workflow := review.NewWorkflow(&fakeTxManager{}, paymentRepo, outboxRepo)

	return httpapi.NewHandler(coordinator, workflow, paymentRepo), paymentRepo, customerRepo
}

func validHeaders(req *http.Request) {
	req.Header.Set("Idempotency-Key", "idem-1")
	req.Header.Set("X-Merchant-Id", "merchant-1")
	req.Header.Set("X-Customer-Id", "cust-1")
	req.Header.Set("X-Account-Id", "acct-1")
}

func newMux(h *httpapi.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func TestHandleAdmit_CleanPayment(t *testing.T) {
	h, _, customerRepo := newTestHandler(t)
	customerRepo.customers["cust-1"] = &domain.Customer{
		CustomerID: "cust-1", KycLevel: domain.KycFull, Status: domain.CustomerActive,
		CreatedAt: time.Now().Add(-365 * 24 * time.Hour),
	}

	body, _ := json.Marshal(map[string]any{
		"amount":   "50.00",
		"currency": "brl",
		"method":   "pix",
	})
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
	validHeaders(req)
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "RECEIVED", resp["status"])
}

func TestHandleAdmit_MissingHeader(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body, _ := json.Marshal(map[string]any{"amount": "50.00", "currency": "BRL", "method": "PIX"})
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
	req.Header.Set("X-Merchant-Id", "merchant-1")
	req.Header.Set("X-Customer-Id", "cust-1")
	req.Header.Set("X-Account-Id", "acct-1")
	// Idempotency-Key deliberately omitted.
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var resp map[string]map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "validation_error", resp["error"]["category"])
}

func TestHandleAdmit_HeaderTooLong(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body, _ := json.Marshal(map[string]any{"amount": "50.00", "currency": "BRL", "method": "PIX"})
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
	validHeaders(req)
	longKey := make([]byte, 200)
	for i := range longKey {
		longKey[i] = 'a'
	}
	req.Header.Set("Idempotency-Key", string(longKey))
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleAdmit_UnsupportedCurrency(t *testing.T) {
	h, _, customerRepo := newTestHandler(t)
	customerRepo.customers["cust-1"] = &domain.Customer{CustomerID: "cust-1", KycLevel: domain.KycFull, Status: domain.CustomerActive}

	body, _ := json.Marshal(map[string]any{"amount": "50.00", "currency": "XXX", "method": "PIX"})
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
	validHeaders(req)
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var resp map[string]map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "validation_error", resp["error"]["category"])
}

func TestHandleAdmit_UnsupportedMethod(t *testing.T) {
	h, _, customerRepo := newTestHandler(t)
	customerRepo.customers["cust-1"] = &domain.Customer{CustomerID: "cust-1", KycLevel: domain.KycFull, Status: domain.CustomerActive}

	body, _ := json.Marshal(map[string]any{"amount": "50.00", "currency": "BRL", "method": "SWIFT"})
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
	validHeaders(req)
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleAdmit_MalformedAmount(t *testing.T) {
	h, _, customerRepo := newTestHandler(t)
	customerRepo.customers["cust-1"] = &domain.Customer{CustomerID: "cust-1", KycLevel: domain.KycFull, Status: domain.CustomerActive}

	body, _ := json.Marshal(map[string]any{"amount": "not-a-number", "currency": "BRL", "method": "PIX"})
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(body))
	validHeaders(req)
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleStatus_NotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/payments/"+uuid.New().String(), nil)
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleStatus_InvalidID(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/payments/not-a-uuid", nil)
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleStatus_Found(t *testing.T) {
	h, paymentRepo, _ := newTestHandler(t)
	payment := &domain.Payment{
		PaymentID:      uuid.New(),
		MerchantID:     "merchant-1",
		CustomerID:     "cust-1",
		AccountID:      "acct-1",
		Amount:         mustMoney(t, "50.00"),
		Currency:       "BRL",
		Method:         domain.MethodPIX,
		Status:         domain.StatusReceived,
		IdempotencyKey: "idem-1",
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	paymentRepo.byID[payment.PaymentID] = payment

	req := httptest.NewRequest(http.MethodGet, "/payments/"+payment.PaymentID.String(), nil)
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, payment.PaymentID.String(), resp["payment_id"])
	require.Equal(t, "RECEIVED", resp["status"])
}

func TestHandleReject_NotInReview(t *testing.T) {
	h, paymentRepo, _ := newTestHandler(t)
	payment := &domain.Payment{
		PaymentID: uuid.New(),
		Status:    domain.StatusReceived,
	}
	paymentRepo.byID[payment.PaymentID] = payment

	req := httptest.NewRequest(http.MethodPost, "/review/"+payment.PaymentID.String()+"/reject", nil)
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandleReject_Success(t *testing.T) {
	h, paymentRepo, _ := newTestHandler(t)
	payment := &domain.Payment{
		PaymentID: uuid.New(),
		Status:    domain.StatusInReview,
	}
	paymentRepo.byID[payment.PaymentID] = payment

	req := httptest.NewRequest(http.MethodPost, "/review/"+payment.PaymentID.String()+"/reject", nil)
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "BLOCKED", resp["status"])
}

func TestHandleApprove_Success(t *testing.T) {
	h, paymentRepo, _ := newTestHandler(t)
	payment := &domain.Payment{
		PaymentID: uuid.New(),
		Status:    domain.StatusInReview,
	}
	paymentRepo.byID[payment.PaymentID] = payment

	req := httptest.NewRequest(http.MethodPost, "/review/"+payment.PaymentID.String()+"/approve", nil)
	rr := httptest.NewRecorder()

	newMux(h).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "RECEIVED", resp["status"])
}
