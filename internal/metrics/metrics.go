package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_events_total", Help: "Webhook events by outcome"},
		[]string{"status"},
	)
	// SuggestionsTotal is unlabeled; strategy names come from callers and are unbounded.
	SuggestionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "suggestions_total", Help: "Suggestion sets computed"},
	)
	CoercionFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "coercion_fallbacks_total", Help: "Payload values replaced by 0"},
		[]string{"key"},
	)
	AnalysisFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "analysis_failures_total", Help: "Analysis exports that failed"},
	)
	AppendSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "history_append_seconds",
			Help:    "Latency of history appends",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(WebhookEvents, SuggestionsTotal, CoercionFallbacks, AnalysisFailures, AppendSeconds)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
