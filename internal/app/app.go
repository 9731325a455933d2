package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/api"
	"github.com/ayo6706/remittance-ledger/internal/api/middleware"
	"github.com/ayo6706/remittance-ledger/internal/config"
	"github.com/ayo6706/remittance-ledger/internal/db"
	"github.com/ayo6706/remittance-ledger/internal/directory"
	"github.com/ayo6706/remittance-ledger/internal/idempotency"
	"github.com/ayo6706/remittance-ledger/internal/observability"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/ayo6706/remittance-ledger/internal/service"
	"github.com/ayo6706/remittance-ledger/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server plus the expiry and reconciliation workers, blocking until
// shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations applied")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store := repository.NewStore(pool, repository.StoreOptions{
		LockTimeout:   cfg.LockTimeout,
		RetryAttempts: cfg.LockRetryAttempts,
		OnRetry: func(attempt int, _ error) {
			observability.IncrementTxRetry(attempt)
		},
	})
	idemStore := idempotency.NewStore(redisClient, store, cfg.IdempotencyTTL)
	offices := directory.NewCached(store.Queries(), redisClient, cfg.OfficeCacheTTL)

	ledger := service.NewBalanceLedger(store)
	commissions := service.NewCommissionService(store, cfg.CommissionCeilingRatio)
	transfers := service.NewTransferService(store, ledger, commissions, offices,
		service.NewCodeGenerator(nil, cfg.CodeAttempts),
		service.NewRedeemGuard(cfg.RedeemMaxFailures, cfg.RedeemFailureWindow),
		service.TransferConfig{
			TTL:                 cfg.TransferTTL,
			HomeCountry:         cfg.HomeCountry,
			RequireReceiverCode: cfg.RequireReceiverCode,
			ExpiryBatchSize:     cfg.ExpiryBatchSize,
		})
	accounts := service.NewAccountService(store, ledger)
	reconciliation := service.NewReconciliationService(store, ledger)

	stopExpiry := worker.NewExpiryWorker(transfers).WithInterval(cfg.ExpirySweepInterval).Run(ctx)
	logger.Info("expiry worker started", zap.Duration("interval", cfg.ExpirySweepInterval), zap.Int("batch", cfg.ExpiryBatchSize))
	stopRecon := worker.NewReconciliationWorker(reconciliation).WithInterval(cfg.ReconciliationInterval).Run(ctx)
	logger.Info("reconciliation worker started", zap.Duration("interval", cfg.ReconciliationInterval))

	router := api.NewRouter(cfg, logger, pool, redisClient, idemStore, api.Services{
		Transfers:   transfers,
		Accounts:    accounts,
		Commissions: commissions,
		Offices:     offices,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopExpiry()
	stopRecon()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
