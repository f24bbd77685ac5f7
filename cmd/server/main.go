package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	httpAdapter "github.com/udhari/creditledger/internal/adapter/http"
	"github.com/udhari/creditledger/internal/adapter/http/handler"
	"github.com/udhari/creditledger/internal/adapter/http/middleware"
	postgresRepo "github.com/udhari/creditledger/internal/adapter/repository/postgres"
	redisRepo "github.com/udhari/creditledger/internal/adapter/repository/redis"
	"github.com/udhari/creditledger/internal/infrastructure/config"
	"github.com/udhari/creditledger/internal/infrastructure/logger"
	"github.com/udhari/creditledger/internal/infrastructure/metrics"
	"github.com/udhari/creditledger/internal/infrastructure/postgres"
	"github.com/udhari/creditledger/internal/infrastructure/redis"
	"github.com/udhari/creditledger/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	log.Logger = appLogger

	defaultLimit, err := decimal.NewFromString(cfg.DefaultCreditLimit)
	if err != nil {
		log.Fatal().Err(err).Str("value", cfg.DefaultCreditLimit).Msg("invalid default credit limit")
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Wiring: repositories, use cases, handlers
	idGen := postgresRepo.NewULIDGenerator()
	store := postgresRepo.NewLedgerStore(pool, idGen)
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	recorder := metrics.New()

	ledgerService := usecase.NewLedgerService(store, cache, recorder, defaultLimit, cfg.SummaryCacheTTL)
	orderPayments := usecase.NewOrderPayments(ledgerService, store, idempotencyStore, cfg.IdempotencyTTL)
	statements := usecase.NewStatements(store)
	reconciliation := usecase.NewReconciliation(store)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:   handler.NewAccountHandler(ledgerService, statements),
		AdminHandler:     handler.NewAdminHandler(ledgerService, statements, reconciliation),
		OrderHandler:     handler.NewOrderHandler(orderPayments),
		HealthHandler:    handler.NewHealthHandler(pool, redisClient),
		IdempotencyStore: idempotencyStore,
		RateLimiter:      middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Logger:           appLogger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
