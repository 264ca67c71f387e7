package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Message metrics
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_messages_received_total",
		Help: "Total number of updates received",
	}, []string{"chat_type"})

	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_messages_processed_total",
		Help: "Total number of messages processed",
	}, []string{"status"})

	// Command metrics
	commandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_commands_executed_total",
		Help: "Total number of commands executed",
	}, []string{"command"})

	// Moderation metrics
	violationsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupguard_violations_detected_total",
		Help: "Total number of keyword violations detected",
	})

	bansIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupguard_bans_issued_total",
		Help: "Total number of ban actions issued",
	})

	// Responder metrics
	responderRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "groupguard_responder_request_duration_seconds",
		Help:    "Duration of responder requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	responderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "groupguard_responder_requests_total",
		Help: "Total number of responder requests",
	}, []string{"status"})

	// Rate limit metrics
	rateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupguard_rate_limit_exceeded_total",
		Help: "Total number of rate limit exceeded events",
	})

	// Supervisor metrics
	ingestionRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "groupguard_ingestion_restarts_total",
		Help: "Total number of ingestion loop restarts",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordMessageReceived records a received update
func (m *Metrics) RecordMessageReceived(chatType string) {
	messagesReceived.WithLabelValues(chatType).Inc()
}

// RecordMessageProcessed records a processed message
func (m *Metrics) RecordMessageProcessed(status string) {
	messagesProcessed.WithLabelValues(status).Inc()
}

// RecordCommandExecuted records an executed command
func (m *Metrics) RecordCommandExecuted(command string) {
	commandsExecuted.WithLabelValues(command).Inc()
}

// RecordViolation records one detected keyword violation
func (m *Metrics) RecordViolation() {
	violationsDetected.Inc()
}

// RecordBan records one issued ban action
func (m *Metrics) RecordBan() {
	bansIssued.Inc()
}

// RecordResponderRequest records a responder call
func (m *Metrics) RecordResponderRequest(status string, duration time.Duration) {
	responderRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
	responderRequestsTotal.WithLabelValues(status).Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event
func (m *Metrics) RecordRateLimitExceeded() {
	rateLimitExceeded.Inc()
}

// RecordIngestionRestart records one supervisor restart
func (m *Metrics) RecordIngestionRestart() {
	ingestionRestarts.Inc()
}

// StartMetricsServer starts the metrics and health HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	// Liveness endpoint for the hosting environment; no application data.
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
