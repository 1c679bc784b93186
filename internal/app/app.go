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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/slickledger/ledger/internal/api"
	"github.com/slickledger/ledger/internal/api/middleware"
	"github.com/slickledger/ledger/internal/config"
	"github.com/slickledger/ledger/internal/db"
	"github.com/slickledger/ledger/internal/gateway"
	"github.com/slickledger/ledger/internal/idempotency"
	"github.com/slickledger/ledger/internal/observability"
	"github.com/slickledger/ledger/internal/repository"
	"github.com/slickledger/ledger/internal/repository/memory"
	"github.com/slickledger/ledger/internal/repository/postgres"
	"github.com/slickledger/ledger/internal/service"
	"github.com/slickledger/ledger/internal/worker"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and integrity worker, blocking until shutdown.
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

	var (
		pool         *pgxpool.Pool
		accounts     repository.AccountStore
		transactions repository.TransactionStore
		auditStore   repository.AuditStore
	)
	if cfg.DatabaseURL != "" {
		pool, err = db.Connect(ctx, cfg.DatabaseURL, 10)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		accounts = postgres.NewAccountStore(pool)
		transactions = postgres.NewTransactionStore(pool)
		auditStore = postgres.NewAuditStore(pool)
		logger.Info("using postgres storage")
	} else {
		accounts = memory.NewAccountStore()
		transactions = memory.NewTransactionStore()
		auditStore = memory.NewAuditStore()
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
	}

	var idemStore *idempotency.Store
	if redisClient != nil {
		idemStore = idempotency.NewStore(redisClient, cfg.IdempotencyTTL)
	} else {
		idemStore = idempotency.NewStore(nil, cfg.IdempotencyTTL)
		logger.Warn("REDIS_URL not set, idempotency keys held in process memory")
	}

	engine := service.NewEngine(accounts, cfg.LockTimeout)
	auditSvc := service.NewAuditService(auditStore)
	institutions := gateway.NewMockGateway()
	ledgerSvc := service.NewLedgerService(accounts, transactions, engine, auditSvc, institutions)

	integritySvc := service.NewIntegrityService(accounts)
	integrityWorker := worker.NewIntegrityWorker(integritySvc).WithInterval(cfg.IntegrityInterval)
	stopWorker := integrityWorker.Run(ctx)
	logger.Info("integrity worker started", zap.Duration("interval", cfg.IntegrityInterval))

	var redisCmdable redis.Cmdable
	if redisClient != nil {
		redisCmdable = redisClient
	}
	router := api.NewRouter(cfg, logger, ledgerSvc, idemStore, pool, redisCmdable)

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

	logger.Info("stopping integrity worker")
	stopWorker()

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
