package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AliAlkhamasi/bank-ledger-service/internal/config"
	"github.com/AliAlkhamasi/bank-ledger-service/internal/db"
	"github.com/AliAlkhamasi/bank-ledger-service/internal/domain"
	"github.com/AliAlkhamasi/bank-ledger-service/internal/events"
	"github.com/AliAlkhamasi/bank-ledger-service/internal/metrics"
	"github.com/AliAlkhamasi/bank-ledger-service/internal/server"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to create database pool", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connection pool initialized")

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	if cfg.SeedDemo {
		if err := db.Seed(ctx, pool); err != nil {
			logger.Fatal("failed to seed demo data", zap.Error(err))
		}
		logger.Info("demo data seeded")
	}

	accountRepo := db.NewAccountRepository(pool.Pool)
	transactionRepo := db.NewTransactionRepository(pool.Pool)
	customerRepo := db.NewCustomerRepository(pool.Pool)
	txManager := db.NewTransactionManager(pool.Pool, logger)

	// Event publishing is optional: the ledger stays available when
	// RabbitMQ is down or not configured.
	var publisher domain.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			logger.Warn("event publishing disabled", zap.Error(err))
		} else {
			defer rabbit.Close()
			publisher = rabbit
			logger.Info("event publisher initialized", zap.String("exchange", cfg.RabbitMQ.Exchange))
		}
	}

	ledger := domain.NewLedgerService(accountRepo, transactionRepo, customerRepo, txManager, publisher, logger)

	m := metrics.New("bank", prometheus.DefaultRegisterer)
	handler := server.NewHandler(ledger, m, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      server.NewRouter(handler, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("ledger server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
