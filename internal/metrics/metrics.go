// Package metrics holds the pipeline's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SamplesRead = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sbifx_samples_read_total", Help: "Sample windows read by a judge"},
		[]string{"family"},
	)
	ReadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sbifx_read_errors_total", Help: "Sample store read failures by kind"},
		[]string{"family", "kind"},
	)
	Calls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sbifx_calls_total", Help: "Position calls emitted by judges"},
		[]string{"family", "direction"},
	)
	ArbiterCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sbifx_arbiter_cycles_total", Help: "Arbiter cycles by resulting state"},
		[]string{"state"},
	)
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sbifx_decisions_total", Help: "Committed position decisions"},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(SamplesRead, ReadErrors, Calls, ArbiterCycles, Decisions)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
