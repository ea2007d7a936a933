package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
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
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Simulation metrics
	entitiesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simulation_entities_total",
			Help: "Entities touched by simulation steps, by outcome",
		},
		[]string{"entity", "outcome"},
	)

	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simulation_step_duration_seconds",
			Help:    "Duration of one simulation step",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"step"},
	)

	daysSimulated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simulation_days_total",
			Help: "Simulated days, by result",
		},
		[]string{"result"},
	)

	dayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simulation_day_duration_seconds",
			Help:    "Wall time to simulate one day",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	claimTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_status_transitions_total",
			Help: "Claim state machine transitions",
		},
		[]string{"from_status", "to_status"},
	)

	enhancedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhanced_records_total",
			Help: "Rows produced by enhanced generators",
		},
		[]string{"kind"},
	)

	enhancedFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enhanced_failures_total",
			Help: "Enhanced generators that failed",
		},
		[]string{"generator"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	dbErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Database operations that returned an error",
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath keeps label cardinality bounded; only API routes are kept verbatim.
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	if strings.HasPrefix(path, "/api/") || path == "/health" || path == "/ready" || path == "/metrics" {
		return path
	}
	return "/other"
}

// --- Simulation metric helpers ---

// RecordEntities adds n entities of kind entity with the given outcome label.
func RecordEntities(entity, outcome string, n int) {
	if n <= 0 {
		return
	}
	entitiesGenerated.WithLabelValues(entity, outcome).Add(float64(n))
}

// RecordStep records how long a step took
func RecordStep(step string, duration time.Duration) {
	stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordDay records a finished simulated day
func RecordDay(ok bool, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	daysSimulated.WithLabelValues(result).Inc()
	dayDuration.Observe(duration.Seconds())
}

// RecordClaimTransition records a claim status change
func RecordClaimTransition(fromStatus, toStatus string) {
	claimTransitions.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordEnhanced records rows produced by an enhanced generator
func RecordEnhanced(kind string, n int) {
	if n <= 0 {
		return
	}
	enhancedRecords.WithLabelValues(kind).Add(float64(n))
}

// RecordEnhancedFailure records a failed enhanced generator
func RecordEnhancedFailure(generator string) {
	enhancedFailures.WithLabelValues(generator).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration, err error) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		dbErrors.WithLabelValues(operation).Inc()
	}
}
