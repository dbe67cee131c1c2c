package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
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

	// Workflow metrics
	stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casework_transitions_total",
			Help: "Committed state transitions per entity",
		},
		[]string{"entity", "from", "to"},
	)

	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casework_operations_total",
			Help: "Workflow operations by outcome code",
		},
		[]string{"operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casework_operation_duration_seconds",
			Help:    "Workflow operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	vulnerabilityLevels = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casework_social_evaluations_total",
			Help: "Social evaluations recorded by vulnerability level",
		},
		[]string{"level"},
	)

	aidAmounts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casework_aid_amount",
			Help:    "Aid request amounts by stage",
			Buckets: prometheus.ExponentialBuckets(10, 2.5, 8),
		},
		[]string{"stage"},
	)

	authorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"operation", "role", "decision"},
	)

	// Notification metrics
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Workflow events handed to the notification sink",
		},
		[]string{"event_type", "status"},
	)

	notificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Events waiting for a dispatch worker",
		},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
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

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := routePattern(r)

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

// routePattern labels requests by chi route template so entity IDs don't
// explode label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// --- Business metric helpers ---

// RecordTransition records a committed state change.
func RecordTransition(entity, from, to string) {
	stateTransitions.WithLabelValues(entity, from, to).Inc()
}

// RecordOperation records the duration and outcome of a workflow operation.
// outcome is "ok" or the error code.
func RecordOperation(operation, outcome string, duration time.Duration) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordVulnerabilityLevel records the level computed for a social evaluation.
func RecordVulnerabilityLevel(level string) {
	vulnerabilityLevels.WithLabelValues(level).Inc()
}

// RecordAidAmount records an amount at stage estimated, approved or delivered.
func RecordAidAmount(stage string, amount float64) {
	aidAmounts.WithLabelValues(stage).Observe(amount)
}

// RecordAuthorizationDecision records an authorization decision
func RecordAuthorizationDecision(operation, role string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authorizationDecisions.WithLabelValues(operation, role, decision).Inc()
}

// RecordNotification records a dispatch outcome: sent, failed or dropped.
func RecordNotification(eventType, status string) {
	notificationsTotal.WithLabelValues(eventType, status).Inc()
}

// SetNotificationQueueDepth records pending events.
func SetNotificationQueueDepth(n int) {
	notificationQueueDepth.Set(float64(n))
}

// RecordDBConnections records active database connections
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}
