package sched

import (
	"context"
	"time"

	"marketplace-credits/internal/infra/metrics"
	"marketplace-credits/internal/usecase"

	"github.com/rs/zerolog"
)

// PromoExpiryWorker periodically deactivates expired promo codes via the use case.
type PromoExpiryWorker struct {
	interval time.Duration
	promoUC  usecase.PromoUseCase
	log      *zerolog.Logger
}

func NewPromoExpiryWorker(interval time.Duration, promoUC usecase.PromoUseCase, logger *zerolog.Logger) *PromoExpiryWorker {
	exprLog := logger.With().Str("component", "PromoExpiryWorker").Logger()
	return &PromoExpiryWorker{
		interval: interval,
		promoUC:  promoUC,
		log:      &exprLog,
	}
}

func (w *PromoExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting promo expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping promo expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.promoUC.DeactivateExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("promo expiry worker error")
			}
			if n > 0 {
				metrics.AddPromoCodesDeactivated(n)
				w.log.Info().Int("count", n).Msg("expired promo codes deactivated")
			}
		}
	}
}
