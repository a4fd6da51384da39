package jasper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reports_engine_runs_total",
		Help: "Report engine invocations by outcome.",
	}, []string{"outcome"})

	engineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reports_engine_duration_seconds",
		Help:    "Wall time of report engine invocations.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
	}, []string{"outcome"})

	engineInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reports_engine_in_flight",
		Help: "Report engine processes currently running.",
	})

	toolChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reports_engine_tool_checks_total",
		Help: "Engine availability checks by result and cache usage.",
	}, []string{"result"})
)
