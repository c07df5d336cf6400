// Package kyc enforces the minimum verification tier required per payment
// rail (spec.md §4.4).
package kyc

import (
	"fmt"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

// minimumLevel is the rail profile table: PIX, BOLETO, and CARD require at
// least BASIC verification; TED, moving larger sums between bank accounts
// directly, requires FULL.
var minimumLevel = map[domain.PaymentMethod]domain.KycLevel{
	domain.MethodPIX:    domain.KycBasic,
	domain.MethodBoleto: domain.KycBasic,
	domain.MethodTED:    domain.KycFull,
	domain.MethodCard:   domain.KycBasic,
}

type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

// Enforce denies a suspended customer outright, then checks the customer's
// KYC rank against the rail's minimum.
func (g *Gate) Enforce(customer *domain.Customer, rail domain.PaymentMethod) error {
	if customer.Status != domain.CustomerActive {
		return domain.NewKycDeniedError("customer is suspended")
	}

	required, ok := minimumLevel[rail]
	if !ok {
		return domain.NewKycDeniedError(fmt.Sprintf("unsupported payment rail for KYC checks: %s", rail))
	}

	if customer.KycLevel.Rank() < required.Rank() {
		return domain.NewKycDeniedError(
			fmt.Sprintf("customer KYC level %s is below required %s", customer.KycLevel, required),
		)
	}

	return nil
}
