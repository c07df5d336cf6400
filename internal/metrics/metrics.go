// Package metrics registers the prometheus collectors surfaced across the
// admission, review, and outbox pipelines.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	IdempotencyReplayTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "idempotency_replay_total",
		Help: "Number of admission requests resolved from an existing idempotency snapshot.",
	})

	KycDeniedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kyc_denied_total",
		Help: "Number of payments denied at the KYC gate, by rail.",
	}, []string{"rail"})

	LimitsExceededTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "limits_exceeded_total",
		Help: "Number of payments denied by the limits service, by rail.",
	}, []string{"rail"})

	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_total",
		Help: "Number of payments denied by the rate limiter, by dimension.",
	}, []string{"dimension"})

	RiskDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "risk_decisions_total",
		Help: "Risk engine decisions, by decision.",
	}, []string{"decision"})

	AmlDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aml_decisions_total",
		Help: "AML engine decisions, by decision.",
	}, []string{"decision"})

	ReviewQueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "review_queue_size",
		Help: "Current count of payments parked IN_REVIEW.",
	})

	OutboxBacklog = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "outbox_backlog",
		Help: "Number of pending outbox events, by event type.",
	}, []string{"event_type"})

	OutboxLagSeconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "outbox_lag_seconds",
		Help: "Age of the oldest pending outbox event, by event type.",
	}, []string{"event_type"})

	ProviderErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_errors_total",
		Help: "Provider confirm call failures, by provider.",
	}, []string{"provider"})

	ProviderLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_latency_seconds",
		Help:    "Provider confirm call latency, by provider.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
)

func MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		IdempotencyReplayTotal,
		KycDeniedTotal,
		LimitsExceededTotal,
		RateLimitedTotal,
		RiskDecisionsTotal,
		AmlDecisionsTotal,
		ReviewQueueSize,
		OutboxBacklog,
		OutboxLagSeconds,
		ProviderErrorsTotal,
		ProviderLatencySeconds,
	)
}
