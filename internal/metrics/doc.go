// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered with the default registry through promauto at
package initialization. Callers use the Record* helpers instead of touching
the vectors directly, which keeps label sets consistent.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Intake:
  - riskguard_events_received_total{source}
  - riskguard_events_dropped_total{reason}
  - riskguard_events_processed_total{result}
  - riskguard_event_processing_duration_seconds
  - riskguard_queue_depth

Detection:
  - riskguard_analyzer_errors_total{analyzer}
  - riskguard_detected_activities_total{activity}
  - riskguard_risk_score
  - riskguard_location_lookups_total{result}
  - riskguard_baseline_errors_total{operation}

Alerting and notification:
  - riskguard_alerts_generated_total{alert_type,severity}
  - riskguard_alerts_suppressed_total{reason}
  - riskguard_escalations_total
  - riskguard_notifications_total{channel,status}
  - riskguard_notification_duration_seconds{channel}
  - riskguard_circuit_breaker_state{name}

# Testing

Tests read collector values with prometheus/testutil:

	before := testutil.ToFloat64(metrics.EventsDropped.WithLabelValues("queue_full"))
*/
package metrics
