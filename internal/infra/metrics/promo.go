package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(promoRedemptionsTotal, promoCodesDeactivated) }

var promoRedemptionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "promo_redemptions_total",
		Help: "Promo code redemption attempts by outcome (success/rejected).",
	},
	[]string{"outcome"},
)

var promoCodesDeactivated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "promo_codes_deactivated_total",
		Help: "Expired promo codes flagged inactive by the background worker.",
	},
)

func IncPromoRedemption(outcome string) {
	promoRedemptionsTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddPromoCodesDeactivated(n int) {
	if n > 0 {
		promoCodesDeactivated.Add(float64(n))
	}
}
