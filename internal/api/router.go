package api

import (
	"net/http"

	"github.com/ayo6706/remittance-ledger/internal/api/handler"
	"github.com/ayo6706/remittance-ledger/internal/api/middleware"
	"github.com/ayo6706/remittance-ledger/internal/api/spec"
	"github.com/ayo6706/remittance-ledger/internal/config"
	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/idempotency"
	"github.com/ayo6706/remittance-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services bundles what the handlers call into.
type Services struct {
	Transfers   *service.TransferService
	Accounts    *service.AccountService
	Commissions *service.CommissionService
	Offices     handler.OfficeRefresher
}

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        handler.Pinger
	redis     redis.Cmdable
	idemStore *idempotency.Store
	svcs      Services
}

// NewRouter wires the HTTP surface. db and redis back the readiness probe and may be nil.
func NewRouter(cfg *config.Config, logger *zap.Logger, db handler.Pinger, redisClient redis.Cmdable, idemStore *idempotency.Store, svcs Services) *Router {
	return &Router{cfg: cfg, logger: logger, db: db, redis: redisClient, idemStore: idemStore, svcs: svcs}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	transferHandler := handler.NewTransferHandler(api.svcs.Transfers)
	accountHandler := handler.NewAccountHandler(api.svcs.Accounts)
	adminHandler := handler.NewAdminHandler(api.svcs.Commissions, api.svcs.Accounts, api.svcs.Transfers, api.svcs.Offices)
	idem := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Get("/healthz", healthHandler.Live)
		r.Get("/readyz", healthHandler.Ready)
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Post("/v1/transfers/quote", transferHandler.Quote)
		r.With(idem).Post("/v1/transfers", transferHandler.CreateTransfer)
		r.With(idem).Post("/v1/transfers/redeem", transferHandler.RedeemTransfer)
		r.With(idem).Post("/v1/transfers/internal", transferHandler.InternalTransfer)
		r.With(idem).Post("/v1/transfers/{id}/cancel", transferHandler.CancelTransfer)
		r.Get("/v1/transfers/{id}", transferHandler.GetTransfer)

		r.Get("/v1/accounts/{id}/balances", accountHandler.GetBalances)
		r.Get("/v1/accounts/{id}/statement", accountHandler.GetStatement)
		r.Get("/v1/accounts/{id}/transfers", transferHandler.ListHistory)

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))
			r.Get("/commission-rules", adminHandler.ListRules)
			r.With(idem).Post("/commission-rules", adminHandler.UpsertRule)
			r.Get("/commission-rules/{id}", adminHandler.GetRule)
			r.Post("/offices/{id}/refresh", adminHandler.RefreshOffice)
			r.With(idem).Post("/commission-rules/{id}/deactivate", adminHandler.DeactivateRule)
			r.With(idem).Post("/accounts/{id}/deposits", adminHandler.Deposit)
			r.Post("/transfers/expire", adminHandler.ExpireTransfers)
		})
	})

	return r
}
