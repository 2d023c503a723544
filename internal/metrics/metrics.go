// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the detection pipeline:
// - Event intake, drops and processing latency
// - Analyzer activity and risk score distribution
// - Location lookups and baseline store errors
// - Alert generation, suppression and escalation
// - Notification delivery per channel
// - Admin API latency

var (
	// Intake Metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_events_received_total",
			Help: "Total number of security events offered to the pipeline",
		},
		[]string{"source"}, // "http", "nats", "kafka", "direct"
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_events_dropped_total",
			Help: "Total number of events rejected at intake",
		},
		[]string{"reason"}, // "queue_full", "not_running", "parse_error", "invalid"
	)

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_events_processed_total",
			Help: "Total number of events processed by shard workers",
		},
		[]string{"result"}, // "normal", "suspicious", "error"
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskguard_event_processing_duration_seconds",
			Help:    "Time from dequeue to completed analysis and alerting for one event",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskguard_queue_depth",
			Help: "Events waiting across all shard queues",
		},
	)

	// Detection Metrics
	AnalyzerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_analyzer_errors_total",
			Help: "Total number of analyzer failures",
		},
		[]string{"analyzer"},
	)

	DetectedActivities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_detected_activities_total",
			Help: "Total number of anomaly activities detected",
		},
		[]string{"activity"},
	)

	RiskScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskguard_risk_score",
			Help:    "Distribution of computed risk scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	LocationLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_location_lookups_total",
			Help: "Total number of location lookups by outcome",
		},
		[]string{"result"}, // "hit", "miss", "negative", "error", "breaker_open"
	)

	BaselineErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_baseline_errors_total",
			Help: "Total number of baseline store failures",
		},
		[]string{"operation"}, // "get", "save"
	)

	// Alerting Metrics
	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_alerts_generated_total",
			Help: "Total number of alerts admitted by the governor",
		},
		[]string{"alert_type", "severity"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_alerts_suppressed_total",
			Help: "Total number of candidate alerts suppressed",
		},
		[]string{"reason"}, // "cooldown", "rate_limit"
	)

	Escalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riskguard_escalations_total",
			Help: "Total number of escalation alerts emitted",
		},
	)

	// Notification Metrics
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_notifications_total",
			Help: "Total number of notification attempts by outcome",
		},
		[]string{"channel", "status"}, // status: "success", "failure", "rate_limited", "breaker_open"
	)

	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskguard_notification_duration_seconds",
			Help:    "Time spent delivering one alert to one channel, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskguard_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Ingest Metrics
	IngestMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_ingest_messages_total",
			Help: "Total number of broker messages consumed",
		},
		[]string{"transport", "result"}, // result: "accepted", "rejected", "parse_error"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskguard_api_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskguard_api_request_duration_seconds",
			Help:    "Duration of admin API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Application Info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskguard_app_info",
			Help: "Application version information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordEventReceived counts an event offered to the pipeline.
func RecordEventReceived(source string) {
	EventsReceived.WithLabelValues(source).Inc()
}

// RecordEventDropped counts an event rejected at intake.
func RecordEventDropped(reason string) {
	EventsDropped.WithLabelValues(reason).Inc()
}

// RecordEventProcessed records the outcome and latency of one event.
func RecordEventProcessed(result string, duration time.Duration) {
	EventsProcessed.WithLabelValues(result).Inc()
	EventProcessingDuration.Observe(duration.Seconds())
}

// SetQueueDepth updates the queue depth gauge.
func SetQueueDepth(depth int) {
	QueueDepth.Set(float64(depth))
}

// RecordAnalyzerError counts an analyzer failure.
func RecordAnalyzerError(analyzer string) {
	AnalyzerErrors.WithLabelValues(analyzer).Inc()
}

// RecordActivity counts a detected activity.
func RecordActivity(activity string) {
	DetectedActivities.WithLabelValues(activity).Inc()
}

// RecordRiskScore observes a computed risk score.
func RecordRiskScore(score float64) {
	RiskScores.Observe(score)
}

// RecordLocationLookup counts a location lookup outcome.
func RecordLocationLookup(result string) {
	LocationLookups.WithLabelValues(result).Inc()
}

// RecordBaselineError counts a baseline store failure.
func RecordBaselineError(operation string) {
	BaselineErrors.WithLabelValues(operation).Inc()
}

// RecordAlertGenerated counts an admitted alert.
func RecordAlertGenerated(alertType, severity string) {
	AlertsGenerated.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertSuppressed counts a suppressed candidate alert.
func RecordAlertSuppressed(reason string) {
	AlertsSuppressed.WithLabelValues(reason).Inc()
}

// RecordEscalation counts an emitted escalation alert.
func RecordEscalation() {
	Escalations.Inc()
}

// RecordNotification records a delivery outcome for one channel.
func RecordNotification(channel, status string, duration time.Duration) {
	Notifications.WithLabelValues(channel, status).Inc()
	if duration > 0 {
		NotificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
	}
}

// RecordCircuitBreakerTransition records a breaker state change.
// States are encoded as 0=closed, 1=half-open, 2=open.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(float64(breakerStateValue(to)))
}

func breakerStateValue(state string) int {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordIngestMessage counts a consumed broker message.
func RecordIngestMessage(transport, result string) {
	IngestMessages.WithLabelValues(transport, result).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
