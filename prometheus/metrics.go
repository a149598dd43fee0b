package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tourismos_login_total",
			Help: "Total number of login attempts",
		},
	)

	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tourismos_register_total",
			Help: "Total number of user registrations",
		},
	)

	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourismos_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourismos_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"},
	)

	BusinessOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourismos_business_operations_total",
			Help: "Total number of tenant-scoped operations",
		},
		[]string{"resource", "operation"},
	)

	BookingCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourismos_bookings_total",
			Help: "Bookings created or moved to a status",
		},
		[]string{"status", "channel"}, // channel is "dashboard" or "public"
	)

	ChatMessageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourismos_chat_messages_total",
			Help: "Chatbot messages handled",
		},
		[]string{"outcome"},
	)

	KnowledgeSelectionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourismos_knowledge_selection_total",
			Help: "How knowledge context was chosen for a chatbot reply",
		},
		[]string{"mode"}, // "none", "all", "selected", "fallback"
	)

	LLMCallCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourismos_llm_calls_total",
			Help: "Calls to the completion endpoint",
		},
		[]string{"purpose", "outcome"},
	)

	DeploymentCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourismos_deployments_total",
			Help: "Site deployments by final status",
		},
		[]string{"status"},
	)

	StripeWebhookCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourismos_stripe_webhooks_total",
			Help: "Stripe webhook events received",
		},
		[]string{"type", "outcome"},
	)
)

// Histogram metrics
var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tourismos_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tourismos_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	LLMCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tourismos_llm_call_duration_seconds",
			Help:    "Latency of completion calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"purpose"},
	)

	DeploymentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tourismos_deployment_duration_seconds",
			Help:    "Wall time of the deployment workflow",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)
)

// Gauge metrics
var (
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tourismos_info",
			Help: "Information about the service",
		},
		[]string{"version"},
	)

	DeploymentsInFlightGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tourismos_deployments_in_flight",
			Help: "Deployments currently being built or polled",
		},
	)
)

func init() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(BusinessOperationCounter)
	prometheus.MustRegister(BookingCounter)
	prometheus.MustRegister(ChatMessageCounter)
	prometheus.MustRegister(KnowledgeSelectionCounter)
	prometheus.MustRegister(LLMCallCounter)
	prometheus.MustRegister(DeploymentCounter)
	prometheus.MustRegister(StripeWebhookCounter)

	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(LLMCallDuration)
	prometheus.MustRegister(DeploymentDuration)

	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(DeploymentsInFlightGauge)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(time.Since(startTime).Seconds())
	}
}

// TrackLLMCall records the latency and outcome of a completion call
func TrackLLMCall(purpose string) func(err error) {
	startTime := time.Now()
	return func(err error) {
		LLMCallDuration.With(prometheus.Labels{"purpose": purpose}).Observe(time.Since(startTime).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		LLMCallCounter.With(prometheus.Labels{"purpose": purpose, "outcome": outcome}).Inc()
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordBusinessOperation records a tenant-scoped operation
func RecordBusinessOperation(resource, operation string) {
	BusinessOperationCounter.With(prometheus.Labels{"resource": resource, "operation": operation}).Inc()
}

// RecordBooking records a booking entering a status
func RecordBooking(status, channel string) {
	BookingCounter.With(prometheus.Labels{"status": status, "channel": channel}).Inc()
}

// RecordChatMessage records the outcome of a chatbot request
func RecordChatMessage(outcome string) {
	ChatMessageCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordKnowledgeSelection records how chatbot context was chosen
func RecordKnowledgeSelection(mode string) {
	KnowledgeSelectionCounter.With(prometheus.Labels{"mode": mode}).Inc()
}

// RecordDeployment records a finished deployment
func RecordDeployment(status string, elapsed time.Duration) {
	DeploymentCounter.With(prometheus.Labels{"status": status}).Inc()
	DeploymentDuration.Observe(elapsed.Seconds())
}

// RecordStripeWebhook records a processed webhook event
func RecordStripeWebhook(eventType, outcome string) {
	StripeWebhookCounter.With(prometheus.Labels{"type": eventType, "outcome": outcome}).Inc()
}
