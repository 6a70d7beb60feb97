package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Outbound HTTP metrics
	RequestAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terrawatt",
		Subsystem: "http",
		Name:      "request_attempts_total",
		Help:      "Total outbound HTTP attempts, including retries",
	}, []string{"host"})

	RequestRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terrawatt",
		Subsystem: "http",
		Name:      "request_retries_total",
		Help:      "Retries triggered by retryable statuses or transport errors",
	}, []string{"host", "reason"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "terrawatt",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Outbound HTTP attempt latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"host"})

	// Screening metrics
	ScreeningQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terrawatt",
		Subsystem: "screening",
		Name:      "queries_total",
		Help:      "Geospatial queries issued per phase",
	}, []string{"phase", "result"})

	ScreeningOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terrawatt",
		Subsystem: "screening",
		Name:      "outcomes_total",
		Help:      "Screening outcomes by tri-state result",
	}, []string{"outcome"})

	// Pipeline metrics
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "terrawatt",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of each analysis pipeline stage",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"stage"})

	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terrawatt",
		Subsystem: "pipeline",
		Name:      "stage_failures_total",
		Help:      "Pipeline stage failures",
	}, []string{"stage"})

	RunsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terrawatt",
		Subsystem: "pipeline",
		Name:      "runs_completed_total",
		Help:      "Workflow runs by terminal status",
	}, []string{"status"})

	FallbacksApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terrawatt",
		Subsystem: "pipeline",
		Name:      "fallbacks_applied_total",
		Help:      "Numeric fallback substitutions for missing upstream fields",
	}, []string{"stage", "field"})
)

// Serve exposes /metrics on addr in the background. Used by long-lived CLI
// invocations when metrics.addr is configured.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("metrics listener stopped", "addr", addr, "error", err)
		}
	}()
}
