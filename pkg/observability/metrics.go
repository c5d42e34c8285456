package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasongraph_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reasongraph_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Session metrics
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasongraph_sessions_total",
			Help: "Total number of reasoning sessions by outcome",
		},
		[]string{"outcome"},
	)

	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reasongraph_session_duration_seconds",
			Help:    "Wall-clock duration of reasoning sessions",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasongraph_steps_total",
			Help: "Total number of model step responses by disposition",
		},
		[]string{"disposition"},
	)

	restartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reasongraph_restarts_total",
			Help: "Total number of sessions restarted after an inconsistency",
		},
	)

	pathSimilarity = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reasongraph_path_avg_similarity",
			Help:    "Average similarity of the strongest path at each emitted event",
			Buckets: prometheus.LinearBuckets(-1, 0.2, 11),
		},
	)

	// Model metrics
	modelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasongraph_model_calls_total",
			Help: "Total number of model backend calls",
		},
		[]string{"operation", "status"},
	)

	modelCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reasongraph_model_call_duration_seconds",
			Help:    "Model backend call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	modelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reasongraph_model_tokens_total",
			Help: "Total number of tokens reported by chat responses",
		},
		[]string{"kind"},
	)

	// System metrics
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reasongraph_active_sessions",
			Help: "Number of reasoning sessions currently streaming",
		},
	)

	indexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reasongraph_index_vectors",
			Help: "Number of vectors in the similar-question index",
		},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			sessionsTotal,
			sessionDuration,
			stepsTotal,
			restartsTotal,
			pathSimilarity,
			modelCallsTotal,
			modelCallDuration,
			modelTokensTotal,
			activeSessions,
			indexSize,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSession records a finished session. outcome is "done", "error" or "cancelled".
func RecordSession(outcome string, duration time.Duration) {
	sessionsTotal.WithLabelValues(outcome).Inc()
	sessionDuration.Observe(duration.Seconds())
}

// RecordStep counts a model step response. disposition is "accepted",
// "too_long" or "parse_error".
func RecordStep(disposition string) {
	stepsTotal.WithLabelValues(disposition).Inc()
}

// RecordRestart counts an inconsistency restart.
func RecordRestart() {
	restartsTotal.Inc()
}

// RecordPathSimilarity observes the strongest path average.
func RecordPathSimilarity(avg float64) {
	pathSimilarity.Observe(avg)
}

// RecordModelCall records a chat or embed call.
func RecordModelCall(operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	modelCallsTotal.WithLabelValues(operation, status).Inc()
	modelCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTokens adds the token counts of one chat response.
func RecordTokens(prompt, completion int) {
	modelTokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	modelTokensTotal.WithLabelValues("completion").Add(float64(completion))
}

// SessionStarted increments the active session gauge and returns its decrement.
func SessionStarted() func() {
	activeSessions.Inc()
	return activeSessions.Dec
}

// SetIndexSize sets the index size gauge
func SetIndexSize(n int) {
	indexSize.Set(float64(n))
}
