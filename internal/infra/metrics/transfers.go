package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(transfersTotal) }

var transfersTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_transfers_total",
		Help: "Peer-to-peer credit transfers by acting role and outcome.",
	},
	[]string{"role", "outcome"},
)

func IncTransfer(role, outcome string) {
	transfersTotal.WithLabelValues(norm(role), norm(outcome)).Inc()
}
