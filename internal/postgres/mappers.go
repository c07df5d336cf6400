package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
)

func toPaymentModel(p *domain.Payment) (*paymentModel, error) {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal payment metadata: %w", err)
	}
	return &paymentModel{
		PaymentID:      p.PaymentID.String(),
		MerchantID:     p.MerchantID,
		CustomerID:     p.CustomerID,
		AccountID:      p.AccountID,
		AmountCents:    p.Amount.Cents(),
		Currency:       p.Currency,
		Method:         string(p.Method),
		Destination:    p.Destination,
		Status:         string(p.Status),
		IdempotencyKey: p.IdempotencyKey,
		RiskScore:      p.RiskScore,
		RiskDecision:   string(p.RiskDecision),
		AmlDecision:    string(p.AmlDecision),
		Metadata:       metadata,
		LastError:      p.LastError,
		TraceID:        p.TraceID,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		Version:        p.Version,
	}, nil
}

func toDomainPayment(m *paymentModel) (*domain.Payment, error) {
	paymentID, err := uuid.Parse(m.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("parse payment id: %w", err)
	}

	var metadata map[string]any
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("unmarshal payment metadata: %w", err)
		}
	}

	return domain.Reconstitute(
		paymentID,
		m.MerchantID,
		m.CustomerID,
		m.AccountID,
		domain.NewMoneyFromCents(m.AmountCents),
		m.Currency,
		domain.PaymentMethod(m.Method),
		m.Destination,
		domain.PaymentStatus(m.Status),
		m.IdempotencyKey,
		m.RiskScore,
		domain.RiskDecision(m.RiskDecision),
		domain.AmlDecision(m.AmlDecision),
		metadata,
		m.LastError,
		m.TraceID,
		m.CreatedAt,
		m.UpdatedAt,
		m.Version,
	), nil
}

func toDomainCustomer(m *customerModel) domain.Customer {
	return domain.Customer{
		CustomerID: m.CustomerID,
		KycLevel:   domain.KycLevel(m.KycLevel),
		Status:     domain.CustomerStatus(m.Status),
		CreatedAt:  m.CreatedAt,
	}
}

func toDomainPolicy(m *limitsPolicyModel) *domain.LimitsPolicy {
	return &domain.LimitsPolicy{
		Rail:                  domain.PaymentMethod(m.Rail),
		MinAmount:             domain.NewMoneyFromCents(m.MinAmountCents),
		MaxAmount:             domain.NewMoneyFromCents(m.MaxAmountCents),
		DailyLimitAmount:      domain.NewMoneyFromCents(m.DailyLimitCents),
		VelocityLimitCount:    m.VelocityLimitCount,
		VelocityWindowSeconds: m.VelocityWindowSeconds,
	}
}

func toOutboxModel(e *domain.OutboxEvent) (*outboxEventModel, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return &outboxEventModel{
		EventID:       e.EventID.String(),
		AggregateID:   e.AggregateID.String(),
		EventType:     string(e.EventType),
		Payload:       payload,
		Status:        string(e.Status),
		Attempts:      e.Attempts,
		CreatedAt:     e.CreatedAt,
		NextAttemptAt: e.NextAttemptAt,
	}, nil
}

func toDomainOutboxEvent(m *outboxEventModel) (*domain.OutboxEvent, error) {
	eventID, err := uuid.Parse(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	aggregateID, err := uuid.Parse(m.AggregateID)
	if err != nil {
		return nil, fmt.Errorf("parse aggregate id: %w", err)
	}
	var payload map[string]any
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
		}
	}
	return &domain.OutboxEvent{
		EventID:       eventID,
		AggregateID:   aggregateID,
		EventType:     domain.EventType(m.EventType),
		Payload:       payload,
		Status:        domain.OutboxStatus(m.Status),
		Attempts:      m.Attempts,
		CreatedAt:     m.CreatedAt,
		NextAttemptAt: m.NextAttemptAt,
	}, nil
}

func toDomainIdempotencyRecord(m *idempotencyRecordModel) (*domain.IdempotencyRecord, error) {
	paymentID, err := uuid.Parse(m.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("parse payment id: %w", err)
	}
	return &domain.IdempotencyRecord{
		MerchantID:      m.MerchantID,
		IdempotencyKey:  m.IdempotencyKey,
		PaymentID:       paymentID,
		StatusCode:      m.StatusCode,
		ResponsePayload: m.ResponsePayload,
		CreatedAt:       m.CreatedAt,
	}, nil
}
