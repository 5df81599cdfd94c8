// Package metrics registers the Prometheus series exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/pricechek-rider/internal/session"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests labeled by route, method and status",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	ussdScreensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ussd_screens_total",
			Help: "USSD screens returned labeled by menu branch and screen kind",
		},
		[]string{"branch", "kind"},
	)
	smsMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_messages_total",
			Help: "Inbound SMS messages labeled by the handler that processed them and the outcome",
		},
		[]string{"handler", "status"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of conversation state transitions",
		},
		[]string{"from", "to"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outbound SMS notifications labeled by result",
		},
		[]string{"result"},
	)
	ordersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		},
	)
	ratelimitChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_checks_total",
			Help: "Rate limit decisions labeled by backend and result",
		},
		[]string{"backend", "result"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
)

func init() {
	session.RegisterTransitionRecorder(RecordStateTransition)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest counts a served request and records its duration.
func RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	route = orUnknown(route)

	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordUSSDScreen counts a USSD response.
func RecordUSSDScreen(branch, kind string) {
	ussdScreensTotal.WithLabelValues(orUnknown(branch), orUnknown(kind)).Inc()
}

// RecordSMS counts an inbound SMS.
func RecordSMS(handler, status string) {
	smsMessagesTotal.WithLabelValues(orUnknown(handler), orUnknown(status)).Inc()
}

// RecordStateTransition tracks conversation step changes.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

func RecordNotification(result string) {
	notificationsTotal.WithLabelValues(orUnknown(result)).Inc()
}

func RecordOrderCreated() {
	ordersCreatedTotal.Inc()
}

func RecordRateLimitCheck(backend string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}

	ratelimitChecksTotal.WithLabelValues(orUnknown(backend), result).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	errorsTotal.WithLabelValues(orUnknown(code), orUnknown(severity)).Inc()
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
