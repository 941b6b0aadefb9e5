// File: cmd/app/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace-credits/internal/config"
	"marketplace-credits/internal/domain/ports/adapter"
	pg "marketplace-credits/internal/infra/db/postgres"
	"marketplace-credits/internal/infra/logging"
	"marketplace-credits/internal/infra/metrics"
	"marketplace-credits/internal/infra/payment"
	red "marketplace-credits/internal/infra/redis"
	"marketplace-credits/internal/infra/sched"
	"marketplace-credits/internal/infra/web"
	"marketplace-credits/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	balanceCache := red.NewBalanceCache(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	balanceRepo := pg.NewCreditBalanceRepoCacheDecorator(pg.NewCreditBalanceRepo(pool), redisClient, cfg.Redis.TTL)
	historyRepo := pg.NewCreditHistoryRepo(pool)
	promoRepo := pg.NewPromoCodeRepo(pool)
	membershipRepo := pg.NewMembershipRepo(pool)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Payment.Stripe.APIKey != "" {
		gateway = payment.NewStripeDirectGateway(cfg.Payment.Stripe.APIKey, cfg.Payment.Stripe.Currency, cfg.Payment.Stripe.PlanPrices)
	} else {
		logger.Warn().Msg("payment.stripe.api_key not set; using noop gateway")
		gateway = payment.NewNoopGateway()
	}

	// ---- Use cases ----
	creditsUC := usecase.NewCreditsUseCase(balanceRepo, historyRepo, tm, balanceCache, logger)
	promoUC := usecase.NewPromoUseCase(promoRepo, tm, logger)
	transferUC := usecase.NewTransferUseCase(balanceRepo, historyRepo, tm, balanceCache, logger)
	paymentTxUC := usecase.NewPaymentTxUseCase(
		creditsUC, promoUC, transferUC, gateway, promoRepo, tm, locker, balanceCache,
		cfg.Payment.GatewayTimeout, logger)
	membershipUC := usecase.NewMembershipUseCase(membershipRepo, creditsUC, gateway, tm, cfg.Credits.PlanGrants, logger)

	// ---- HTTP API ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.CookieName, !cfg.Runtime.Dev, "", cfg.Auth.SessionTTL)
	srv := web.NewServer(creditsUC, transferUC, promoUC, paymentTxUC, membershipUC,
		auth, cfg.Payment.Stripe.WebhookSecret, cfg.Payment.WebhookTolerance, logger)

	router := chi.NewRouter()
	router.Use(web.TraceID(), web.RequestLog(logger), web.Recover(logger), web.Timeout(cfg.Server.WriteTimeout))
	srv.RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Metrics endpoint ----
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.MetricsPort), Handler: metricsMux}
	go func() {
		logger.Info().Str("addr", metricsServer.Addr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	// ---- Promo expiry worker ----
	worker := sched.NewPromoExpiryWorker(cfg.Credits.PromoExpirySweep, promoUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}
