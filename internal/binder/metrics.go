package binder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bindTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrms",
		Subsystem: "binder",
		Name:      "binds_total",
		Help:      "Resource view binds broken down by binding and outcome.",
	}, []string{"binding", "outcome"})

	bindLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hrms",
		Subsystem: "binder",
		Name:      "latency_seconds",
		Help:      "Time from fetch start to surface write per binding.",
		Buckets: []float64{
			0.005, 0.01, 0.025,
			0.05, 0.1, 0.25,
			0.5, 1, 2.5, 5, 10,
		},
	}, []string{"binding"})

	staleDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrms",
		Subsystem: "binder",
		Name:      "stale_completions_total",
		Help:      "Completions discarded because a newer bind of the same target already landed.",
	}, []string{"binding"})
)
