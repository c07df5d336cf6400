// Package httpapi is the HTTP edge over the admission, status, and review
// operations (spec.md §6): stdlib net/http.ServeMux with Go 1.22+
// method-pattern routing, validated the way the teacher's handler package
// validates its bodies.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/admission"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/review"
	"github.com/go-playground/validator"
	"github.com/google/uuid"
)

var supportedCurrencies = map[string]bool{"BRL": true, "USD": true}

const maxHeaderLen = 128

// StatusReader projects a persisted payment for GET /payments/{id}.
type StatusReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
}

type Handler struct {
	coordinator *admission.Coordinator
	workflow    *review.Workflow
	reader      StatusReader
	validate    *validator.Validate
}

func NewHandler(coordinator *admission.Coordinator, workflow *review.Workflow, reader StatusReader) *Handler {
	return &Handler{
		coordinator: coordinator,
		workflow:    workflow,
		reader:      reader,
		validate:    validator.New(),
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /payments", h.HandleAdmit)
	mux.HandleFunc("GET /payments/{id}", h.HandleStatus)
	mux.HandleFunc("POST /review/{id}/approve", h.HandleApprove)
	mux.HandleFunc("POST /review/{id}/reject", h.HandleReject)
}

// admitRequestBody is the wire shape of POST /payments' JSON body.
type admitRequestBody struct {
	Amount      string         `json:"amount" validate:"required"`
	Currency    string         `json:"currency" validate:"required"`
	Method      string         `json:"method" validate:"required"`
	Destination *string        `json:"destination"`
	Metadata    map[string]any `json:"metadata"`
}

func (h *Handler) HandleAdmit(w http.ResponseWriter, r *http.Request) {
	idempotencyKey, merchantID, customerID, accountID, err := readAdmissionHeaders(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	var body admitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, domain.NewValidationError("malformed request body"))
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		respondWithError(w, domain.NewValidationError(err.Error()))
		return
	}

	amount, err := domain.ParseMoney(body.Amount)
	if err != nil {
		respondWithError(w, domain.NewValidationError("invalid amount"))
		return
	}

	currency := strings.ToUpper(body.Currency)
	if !supportedCurrencies[currency] {
		respondWithError(w, domain.NewValidationError("unsupported currency"))
		return
	}

	method := domain.PaymentMethod(strings.ToUpper(body.Method))
	if !domain.SupportedMethods[method] {
		respondWithError(w, domain.NewValidationError("unsupported payment method"))
		return
	}

	req := admission.Request{
		MerchantID:     merchantID,
		CustomerID:     customerID,
		AccountID:      accountID,
		IdempotencyKey: idempotencyKey,
		Amount:         amount,
		Currency:       currency,
		Method:         method,
		Destination:    body.Destination,
		Metadata:       body.Metadata,
		TraceID:        r.Header.Get("X-Trace-Id"),
	}

	resp, err := h.coordinator.Admit(r.Context(), req)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, admissionViewFromResponse(resp, req.TraceID))
}

// readAdmissionHeaders validates the four required headers: trimmed,
// non-empty, length <= 128 (spec.md §6).
func readAdmissionHeaders(r *http.Request) (idempotencyKey, merchantID, customerID, accountID string, err error) {
	fields := map[string]*string{
		"Idempotency-Key": &idempotencyKey,
		"X-Merchant-Id":   &merchantID,
		"X-Customer-Id":   &customerID,
		"X-Account-Id":    &accountID,
	}
	for header, dst := range fields {
		value := strings.TrimSpace(r.Header.Get(header))
		if value == "" || len(value) > maxHeaderLen {
			return "", "", "", "", domain.NewValidationError("missing or invalid header " + header)
		}
		*dst = value
	}
	return idempotencyKey, merchantID, customerID, accountID, nil
}

type admissionView struct {
	PaymentID    uuid.UUID            `json:"payment_id"`
	Status       domain.PaymentStatus `json:"status"`
	TraceID      string               `json:"trace_id"`
	RiskDecision domain.RiskDecision  `json:"risk_decision"`
	AmlDecision  domain.AmlDecision   `json:"aml_decision"`
}

func admissionViewFromResponse(resp *admission.Response, traceID string) admissionView {
	return admissionView{
		PaymentID:    resp.PaymentID,
		Status:       resp.Status,
		TraceID:      traceID,
		RiskDecision: resp.RiskDecision,
		AmlDecision:  resp.AmlDecision,
	}
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondWithError(w, domain.NewValidationError("invalid payment id"))
		return
	}

	payment, err := h.reader.FindByID(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if payment == nil {
		respondWithError(w, domain.ErrPaymentNotFound)
		return
	}
	respondWithJSON(w, http.StatusOK, projectionFrom(payment))
}

// paymentProjection mirrors every field on the Payment entity except the
// free-form metadata blob (spec.md §6).
type paymentProjection struct {
	PaymentID      uuid.UUID            `json:"payment_id"`
	MerchantID     string               `json:"merchant_id"`
	CustomerID     string               `json:"customer_id"`
	AccountID      string               `json:"account_id"`
	Amount         domain.Money         `json:"amount"`
	Currency       string               `json:"currency"`
	Method         domain.PaymentMethod `json:"method"`
	Destination    *string              `json:"destination,omitempty"`
	Status         domain.PaymentStatus `json:"status"`
	IdempotencyKey string               `json:"idempotency_key"`
	RiskScore      int                  `json:"risk_score"`
	RiskDecision   domain.RiskDecision  `json:"risk_decision"`
	AmlDecision    domain.AmlDecision   `json:"aml_decision"`
	LastError      *string              `json:"last_error,omitempty"`
	TraceID        string               `json:"trace_id"`
	CreatedAt      string               `json:"created_at"`
	UpdatedAt      string               `json:"updated_at"`
	Version        int                  `json:"version"`
}

func projectionFrom(p *domain.Payment) paymentProjection {
	return paymentProjection{
		PaymentID:      p.PaymentID,
		MerchantID:     p.MerchantID,
		CustomerID:     p.CustomerID,
		AccountID:      p.AccountID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Method:         p.Method,
		Destination:    p.Destination,
		Status:         p.Status,
		IdempotencyKey: p.IdempotencyKey,
		RiskScore:      p.RiskScore,
		RiskDecision:   p.RiskDecision,
		AmlDecision:    p.AmlDecision,
		LastError:      p.LastError,
		TraceID:        p.TraceID,
		CreatedAt:      p.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:      p.UpdatedAt.UTC().Format(timeLayout),
		Version:        p.Version,
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// acceptedResponse is the shared wire shape returned by both review
// endpoints, per spec.md §6.
type acceptedResponse struct {
	PaymentID    uuid.UUID            `json:"payment_id"`
	Status       domain.PaymentStatus `json:"status"`
	RiskDecision domain.RiskDecision  `json:"risk_decision"`
	AmlDecision  domain.AmlDecision   `json:"aml_decision"`
}

func acceptedFrom(resp *admission.Response) acceptedResponse {
	return acceptedResponse{
		PaymentID:    resp.PaymentID,
		Status:       resp.Status,
		RiskDecision: resp.RiskDecision,
		AmlDecision:  resp.AmlDecision,
	}
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondWithError(w, domain.NewValidationError("invalid payment id"))
		return
	}
	resp, err := h.workflow.Approve(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, acceptedFrom(resp))
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondWithError(w, domain.NewValidationError("invalid payment id"))
		return
	}
	resp, err := h.workflow.Reject(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, acceptedFrom(resp))
}
