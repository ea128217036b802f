package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	pullOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadbuffer_pull_outcomes_total",
			Help: "Pull-next results by outcome",
		},
		[]string{"outcome"},
	)

	backfillPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadbuffer_backfill_pages_total",
			Help: "Search provider pages walked by result",
		},
		[]string{"result"},
	)

	enrichmentCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadbuffer_enrichment_calls_total",
			Help: "Enrichment lookups by result (cache_hit, tombstone, email, no_email, error)",
		},
		[]string{"result"},
	)

	pushedLeads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadbuffer_pushed_leads_total",
			Help: "Pushed leads by result",
		},
		[]string{"result"},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_errors_total",
			Help: "Total number of integration errors",
		},
		[]string{"service"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func RecordPullOutcome(outcome string) {
	pullOutcomes.WithLabelValues(outcome).Inc()
}

func RecordBackfillPage(result string) {
	backfillPages.WithLabelValues(result).Inc()
}

func RecordEnrichment(result string) {
	enrichmentCalls.WithLabelValues(result).Inc()
}

func RecordPushedLeads(result string, n int) {
	if n > 0 {
		pushedLeads.WithLabelValues(result).Add(float64(n))
	}
}

func RecordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}
