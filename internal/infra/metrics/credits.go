package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"marketplace-credits/internal/domain/model"
)

func init() { register(creditsGranted, creditsConsumed) }

var creditsGranted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credits_granted_total",
		Help: "Credits added to balances, by bucket.",
	},
	[]string{"bucket"},
)

var creditsConsumed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credits_consumed_total",
		Help: "Credits deducted from balances, by bucket.",
	},
	[]string{"bucket"},
)

func AddCreditsGranted(bucket model.CreditType, amount int64) {
	if amount <= 0 {
		return
	}
	creditsGranted.WithLabelValues(norm(string(bucket))).Add(float64(amount))
}

func AddCreditsConsumed(bucket model.CreditType, amount int64) {
	if amount <= 0 {
		return
	}
	creditsConsumed.WithLabelValues(norm(string(bucket))).Add(float64(amount))
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
