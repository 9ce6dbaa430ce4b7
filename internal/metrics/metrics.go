// Package metrics exposes Prometheus counters for the poll pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_poll_cycles_total",
			Help: "Total poll cycles per folder",
		},
		[]string{"folder", "result"}, // result: success/conn_error
	)

	RepliesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_replies_sent_total",
			Help: "Total replies confirmed delivered per folder",
		},
		[]string{"folder"},
	)

	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_stage_errors_total",
			Help: "Total per-message stage failures",
		},
		[]string{"folder", "stage"}, // stage: fetch/complete/compose/send
	)

	AmbiguousSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_ambiguous_sends_total",
			Help: "Sends that timed out with no server response",
		},
		[]string{"folder"},
	)

	// ReconciliationAlerts counts the single most dangerous fault: a reply
	// was delivered but recording it failed, so a duplicate is possible
	// until an operator reconciles the store.
	ReconciliationAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportbot_reconciliation_alerts_total",
			Help: "Sent replies whose processed record could not be written",
		},
		[]string{"folder"},
	)
)

// Serve exposes /metrics on the given address. Blocks; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
