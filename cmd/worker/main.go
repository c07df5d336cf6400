// Command worker drains the outbox's PaymentRequested queue and drives each
// payment to CONFIRMED or FAILED through the provider driver (spec.md §4.11-
// §4.13). The admission/status/review HTTP surface runs separately; see
// cmd/api.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DanielPopoola/ficmart-payment-gateway/internal/config"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/metrics"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/outbox"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/postgres"
	"github.com/DanielPopoola/ficmart-payment-gateway/internal/provider"
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

	paymentRepo := postgres.NewPaymentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	txManager := postgres.NewTxManager(db)

	providerClient := provider.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.Timeout)
	driver := provider.NewDriver(providerClient, provider.DriverConfig{
		MaxAttempts:      cfg.Provider.MaxAttempts,
		BackoffBase:      cfg.Provider.BackoffBase,
		BackoffCap:       cfg.Provider.BackoffCap,
		BreakerThreshold: cfg.Provider.BreakerThreshold,
		BreakerRecovery:  cfg.Provider.BreakerRecovery,
		BulkheadLimit:    cfg.Provider.BulkheadLimit,
	})

	worker := outbox.NewWorker(txManager, paymentRepo, outboxRepo, driver, outbox.Config{
		PollInterval:     cfg.Worker.Interval,
		BatchSize:        cfg.Worker.BatchSize,
		MaxEventAttempts: cfg.Worker.MaxEventAttempts,
	}, logger)

	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}
	go func() {
		logger.Info("starting worker metrics server", "port", cfg.Server.Port)
		_ = metricsSrv.ListenAndServe()
	}()

	logger.Info("starting outbox worker")
	worker.RunForever(ctx)

	logger.Info("exit")
}
