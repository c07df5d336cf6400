package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

// errorEnvelope is the wire shape for every non-2xx response (spec.md §6):
// {"error": {"category": ..., "message": ...}}.
type errorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Category  string `json:"category"`
	Message   string `json:"message"`
	Dimension string `json:"dimension,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondWithError maps a DomainError category to the HTTP status spec.md
// §6 assigns it; anything that isn't a DomainError is an unhandled fault.
func respondWithError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	category := domain.CategoryUnexpected
	message := "internal server error"
	dimension := ""

	if errors.As(err, &domainErr) {
		category = domainErr.Category
		message = domainErr.Message
		dimension = domainErr.Dimension
	}

	respondWithJSON(w, statusFor(category), &errorEnvelope{
		Error: APIError{Category: string(category), Message: message, Dimension: dimension},
	})
}

func statusFor(category domain.ErrorCategory) int {
	switch category {
	case domain.CategoryValidation, domain.CategoryLimitExceeded:
		return http.StatusUnprocessableEntity
	case domain.CategoryIdempotencyConflict, domain.CategoryConcurrencyConflict:
		return http.StatusConflict
	case domain.CategoryKycDenied:
		return http.StatusForbidden
	case domain.CategoryRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
