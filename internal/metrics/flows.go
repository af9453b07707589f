package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		flowCalls,
		flowLatencyMs,
		playbackTransitions,
		persistenceFailures,
	)
}

var (
	flowCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellness_flow_calls_total",
			Help: "External AI/TTS flow calls by flow, provider and outcome.",
		},
		[]string{"flow", "provider", "success"},
	)

	flowLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wellness_flow_latency_ms",
			Help:    "External flow latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 6000, 12000, 30000},
		},
		[]string{"flow", "provider"},
	)

	playbackTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellness_playback_transitions_total",
			Help: "Audio playback coordinator state transitions by target state.",
		},
		[]string{"state"},
	)

	persistenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellness_persistence_failures_total",
			Help: "Failed reads/writes against the key-value substrate.",
		},
		[]string{"op"},
	)
)

// ObserveFlow records one external flow call.
func ObserveFlow(flow, provider string, elapsed time.Duration, success bool) {
	flowCalls.WithLabelValues(norm(flow), norm(provider), strconv.FormatBool(success)).Inc()
	flowLatencyMs.WithLabelValues(norm(flow), norm(provider)).Observe(float64(elapsed.Milliseconds()))
}

func PlaybackTransition(state string) {
	playbackTransitions.WithLabelValues(norm(state)).Inc()
}

func PersistenceFailure(op string) {
	persistenceFailures.WithLabelValues(norm(op)).Inc()
}
