package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	identifyRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundtrace",
		Subsystem: "chain",
		Name:      "identify_runs_total",
		Help:      "Chain identification runs by outcome",
	}, []string{"outcome"})

	identifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fundtrace",
		Subsystem: "chain",
		Name:      "identify_duration_seconds",
		Help:      "Wall time of a chain identification run",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	chainsIdentified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fundtrace",
		Subsystem: "chain",
		Name:      "identified_total",
		Help:      "Chains emitted by traversal, by chain type",
	}, []string{"chain_type"})

	chainsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fundtrace",
		Subsystem: "chain",
		Name:      "persisted_total",
		Help:      "Chain rows actually inserted",
	})

	relationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fundtrace",
		Subsystem: "chain",
		Name:      "relations_dropped_total",
		Help:      "Relations skipped for a missing endpoint id",
	})
)
