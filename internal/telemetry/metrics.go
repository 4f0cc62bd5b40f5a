package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HistoryDerivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocketlm_history_derivations_total",
			Help: "Transcript derivations served, by outcome.",
		},
		[]string{"outcome"},
	)

	PromptRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pocketlm_prompt_renders_total",
			Help: "Prompt renders, by template and outcome.",
		},
		[]string{"template", "outcome"},
	)

	CompletionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pocketlm_completion_duration_seconds",
			Help:    "Wall time of runtime completions, end to end.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	StreamChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pocketlm_stream_chunks_total",
			Help: "Chunks forwarded to clients over SSE streams.",
		},
	)
)

func init() {
	prometheus.MustRegister(HistoryDerivations, PromptRenders, CompletionDuration, StreamChunks)
}

// Handler exposes the metrics endpoint for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
