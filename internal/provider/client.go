// Package provider implements the HTTP client to the downstream settlement
// providers and the per-provider rail profile table (spec.md §4.12).
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

// RailProfile names the provider behind a rail and the path its confirm
// endpoint is mounted at.
type RailProfile struct {
	ProviderName string
	ConfirmPath  string
}

// railProfiles is the static rail -> provider table, grounded on
// shared/constants/payment_rails.py's _RAIL_PROFILES.
var railProfiles = map[domain.PaymentMethod]RailProfile{
	domain.MethodPIX:    {ProviderName: "pix-provider", ConfirmPath: "/providers/pix/confirm"},
	domain.MethodBoleto: {ProviderName: "boleto-provider", ConfirmPath: "/providers/boleto/confirm"},
	domain.MethodTED:    {ProviderName: "ted-provider", ConfirmPath: "/providers/ted/confirm"},
	domain.MethodCard:   {ProviderName: "card-provider", ConfirmPath: "/providers/card/confirm"},
}

// ProfileFor resolves the provider profile for a rail.
func ProfileFor(method domain.PaymentMethod) (RailProfile, bool) {
	p, ok := railProfiles[method]
	return p, ok
}

// ProviderError is a typed transport error carrying the upstream status
// code, mirroring the teacher's BankError shape.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether this error is worth retrying: a 5xx status.
// Timeouts never reach a ProviderError; the driver's isTransient checks them.
func (e *ProviderError) IsTransient() bool {
	return e.StatusCode >= 500
}

// HTTPClient implements domain.ProviderClient over net/http.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Confirm(ctx context.Context, confirmPath string, req domain.ProviderRequest) (*domain.ProviderResponse, error) {
	body := struct {
		PaymentID  string               `json:"payment_id"`
		MerchantID string               `json:"merchant_id"`
		Amount     domain.Money         `json:"amount"`
		Currency   string               `json:"currency"`
		Method     domain.PaymentMethod `json:"method"`
	}{
		PaymentID:  req.PaymentID.String(),
		MerchantID: req.MerchantID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Method:     req.Method,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal provider request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+confirmPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var wire struct {
		ProviderReference string `json:"provider_reference"`
		Confirmed         bool   `json:"confirmed"`
		Provider          string `json:"provider"`
		Duplicate         bool   `json:"duplicate"`
		PartialFailure    bool   `json:"partial_failure"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return &domain.ProviderResponse{
		ProviderReference: wire.ProviderReference,
		Confirmed:         wire.Confirmed,
		Provider:          wire.Provider,
		Duplicate:         wire.Duplicate,
		PartialFailure:    wire.PartialFailure,
	}, nil
}
