package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(gatewayCallsTotal, gatewayLatencyMs) }

var gatewayCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payment_gateway_calls_total",
		Help: "Payment gateway calls by provider and outcome.",
	},
	[]string{"provider", "outcome"},
)

var gatewayLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "payment_gateway_latency_ms",
		Help:    "Payment gateway call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
	},
	[]string{"provider"},
)

func IncGatewayCall(provider, outcome string) {
	gatewayCallsTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func ObserveGatewayLatency(provider string, ms float64) {
	gatewayLatencyMs.WithLabelValues(norm(provider)).Observe(ms)
}
