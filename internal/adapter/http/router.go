// Package http wires the credit ledger's HTTP API together.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/udhari/creditledger/internal/adapter/http/handler"
	"github.com/udhari/creditledger/internal/adapter/http/middleware"
	"github.com/udhari/creditledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler   *handler.AccountHandler
	AdminHandler     *handler.AdminHandler
	OrderHandler     *handler.OrderHandler
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	RateLimiter      *middleware.RateLimiter
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recovery)

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Operational endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Staff mutations replay through the generic idempotency layer.
		// Order charges carry their own key handling in the use case, so
		// they stay outside it.
		var idem func(http.Handler) http.Handler
		if cfg.IdempotencyStore != nil {
			idem = middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore).Wrap
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Open)
			r.Get("/outstanding", cfg.AdminHandler.ListOutstanding)
			r.Get("/outstanding/total", cfg.AdminHandler.AggregateOutstanding)
			r.Get("/{id}/summary", cfg.AccountHandler.Summary)
			r.Get("/{id}/statement", cfg.AccountHandler.Statement)
			r.Get("/{id}/reconcile", cfg.AdminHandler.Reconcile)

			if idem != nil {
				r.With(idem).Post("/{id}/payments", cfg.AdminHandler.RecordPayment)
				r.With(idem).Put("/{id}/credit-limit", cfg.AdminHandler.SetCreditLimit)
			} else {
				r.Post("/{id}/payments", cfg.AdminHandler.RecordPayment)
				r.Put("/{id}/credit-limit", cfg.AdminHandler.SetCreditLimit)
			}
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/charge", cfg.OrderHandler.Charge)
			r.Post("/{orderId}/refund", cfg.OrderHandler.Refund)
		})
	})

	return r
}
