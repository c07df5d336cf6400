// Command api serves the admission, status, and review HTTP endpoints
// (spec.md §6). The outbox worker that drives payments to settlement runs
// as a separate process; see cmd/worker.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/admission"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/aml"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/cache"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/config"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/domain"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/httpapi"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/idempotency"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/kyc"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/limits"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/metrics"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/postgres"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/ratelimit"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/review"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/risk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := cache.NewClient(cache.Config{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	defer redisClient.Close()
	redisCache := cache.NewRedisCache(redisClient)

	paymentRepo := postgres.NewPaymentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	customerRepo := postgres.NewCustomerRepository(db)
	idemRepo := postgres.NewIdempotencyRepository(db)
	policyRepo := postgres.NewLimitsPolicyRepository(db)
	txManager := postgres.NewTxManager(db)

	gate := idempotency.NewGate(redisCache, idemRepo, paymentRepo)
	kycGate := kyc.NewGate()
	limitsService := limits.NewService(redisCache, policyRepo, paymentRepo, cfg.Limits.PolicyCacheTTL)
	rateLimiter := ratelimit.NewLimiter(redisCache, ratelimit.Limits{
		WindowSeconds: int64(cfg.RateLimiter.WindowSeconds),
		MerchantLimit: int64(cfg.RateLimiter.MerchantLimit),
		CustomerLimit: int64(cfg.RateLimiter.CustomerLimit),
		AccountLimit:  int64(cfg.RateLimiter.AccountLimit),
	})
	riskEngine := risk.NewEngine(cfg.Risk.ReviewThreshold, cfg.Risk.BlockThreshold)
	amlEngine := aml.NewEngine(redisCache, amlConfigFrom(cfg.Aml))

	coordinator := admission.NewCoordinator(
		txManager, paymentRepo, outboxRepo, customerRepo, idemRepo,
		gate, kycGate, limitsService, rateLimiter, riskEngine, amlEngine,
	)
	workflow := review.NewWorkflow(txManager, paymentRepo, outboxRepo)

	handler := httpapi.NewHandler(coordinator, workflow, paymentRepo)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", "error", err)
	}

	logger.Info("exit")
}

func amlConfigFrom(c config.AmlConfig) aml.Config {
	blocklist := make(map[string]bool, len(c.BlocklistDestinations))
	for _, dest := range c.BlocklistDestinations {
		blocklist[dest] = true
	}
	threshold, err := domain.ParseMoney(c.TotalThresholdAmount)
	if err != nil {
		threshold = domain.NewMoneyFromCents(0)
	}
	return aml.Config{
		BlocklistDestinations:     blocklist,
		TotalWindowSeconds:        c.TotalWindowSeconds,
		TotalThresholdAmount:      threshold,
		StructuringWindowSeconds:  c.StructuringWindowSeconds,
		StructuringCountThreshold: c.StructuringCountThreshold,
	}
}
