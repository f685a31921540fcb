// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GazeSamples = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readaid_gaze_samples_total",
			Help: "Total number of gaze samples processed",
		},
	)

	DwellTransitions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readaid_dwell_transitions_total",
			Help: "Total number of new dwells entered",
		},
	)

	AnalysisDispatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readaid_analysis_dispatches_total",
			Help: "Total number of analysis requests sent",
		},
	)

	AnalysisResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readaid_analysis_results_total",
			Help: "Analysis responses by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "readaid_analysis_latency_seconds",
			Help:    "Inference round-trip latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AssistanceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readaid_assistance_transitions_total",
			Help: "Assistance state transitions by target state",
		},
		[]string{"state"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "readaid_active_sessions",
			Help: "Number of active reading sessions",
		},
	)
)

// Analysis result outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeStale    = "stale"
	OutcomeFailed   = "failed"
	OutcomeFallback = "fallback"
)
