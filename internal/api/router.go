package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/slickledger/ledger/internal/api/handler"
	"github.com/slickledger/ledger/internal/api/middleware"
	"github.com/slickledger/ledger/internal/api/spec"
	"github.com/slickledger/ledger/internal/config"
	"github.com/slickledger/ledger/internal/idempotency"
	"github.com/slickledger/ledger/internal/service"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	ledger    *service.LedgerService
	idemStore *idempotency.Store
	db        *pgxpool.Pool
	redis     redis.Cmdable
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	ledger *service.LedgerService,
	idemStore *idempotency.Store,
	db *pgxpool.Pool,
	rdb redis.Cmdable,
) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		ledger:    ledger,
		idemStore: idemStore,
		db:        db,
		redis:     rdb,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	accountHandler := handler.NewAccountHandler(api.ledger)
	transactionHandler := handler.NewTransactionHandler(api.ledger)
	healthHandler := handler.NewHealthHandler(api.db, api.redis)

	// Operational endpoints, no auth and no per-caller limits.
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	r.Group(func(r chi.Router) {
		if api.cfg.AuthEnabled() {
			r.Use(middleware.AuthMiddleware)
			r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))
		} else {
			r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		}

		// Accounts
		r.Post("/v1/accounts", accountHandler.Create)
		r.Get("/v1/accounts", accountHandler.List)
		r.Get("/v1/accounts/{id}", accountHandler.Get)
		r.Get("/v1/accounts/{id}/balance", accountHandler.GetBalance)
		r.Get("/v1/accounts/{id}/transactions", accountHandler.ListTransactions)
		r.Get("/v1/accounts/{id}/audit", accountHandler.AuditTrail)
		r.Post("/v1/accounts/{id}/deactivate", accountHandler.Deactivate)

		// Transactions
		r.With(middleware.IdempotencyMiddleware(api.idemStore, api.logger)).
			Post("/v1/transactions", transactionHandler.Create)
		r.Get("/v1/transactions/{id}", transactionHandler.Get)
		r.Put("/v1/transactions/{id}", transactionHandler.Update)
		r.Post("/v1/transactions/{id}/process", transactionHandler.Process)
		r.Post("/v1/transactions/{id}/void", transactionHandler.Void)
		r.Post("/v1/transactions/{id}/dispute", transactionHandler.Dispute)
	})

	return r
}
