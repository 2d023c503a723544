// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/riskguard/internal/alerting"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/validation"
)

// Metrics is the administrative view of pipeline activity.
type Metrics struct {
	Running          bool                   `json:"running"`
	EventsReceived   int64                  `json:"events_received"`
	EventsProcessed  int64                  `json:"events_processed"`
	EventsDropped    int64                  `json:"events_dropped"`
	QueueDepth       int                    `json:"queue_depth"`
	AlertsGenerated  int64                  `json:"alerts_generated"`
	AlertsSuppressed int64                  `json:"alerts_suppressed"`
	AlertsSent       int64                  `json:"alerts_sent"`
	Escalations      int64                  `json:"escalations"`
	ErrorCounts      map[string]int64       `json:"error_counts"`
	AvgProcessingMs  float64                `json:"avg_processing_ms"`
	Rules            int                    `json:"rules"`
	Governor         alerting.GovernorStats `json:"governor"`
	Notifications    alerting.DispatchStats `json:"notifications"`
}

// GetMetrics returns a snapshot of counters and derived averages.
func (e *Engine) GetMetrics() Metrics {
	dispatch := e.dispatcher.Stats()

	e.errMu.Lock()
	errs := make(map[string]int64, len(e.errors)+1)
	for k, v := range e.errors {
		errs[k] = v
	}
	e.errMu.Unlock()
	if dispatch.Failed > 0 {
		errs["notification"] = dispatch.Failed
	}

	processed := e.processed.Load()
	var avg float64
	if processed > 0 {
		avg = float64(e.processingNanos.Load()) / float64(processed) / 1e6
	}

	return Metrics{
		Running:          e.IsRunning(),
		EventsReceived:   e.received.Load(),
		EventsProcessed:  processed,
		EventsDropped:    e.dropped.Load(),
		QueueDepth:       e.QueueDepth(),
		AlertsGenerated:  e.alertsGenerated.Load(),
		AlertsSuppressed: e.alertsSuppressed.Load(),
		AlertsSent:       dispatch.Sent,
		Escalations:      e.escalations.Load(),
		ErrorCounts:      errs,
		AvgProcessingMs:  avg,
		Rules:            e.rules.Len(),
		Governor:         e.governor.Stats(),
		Notifications:    dispatch,
	}
}

// AddRule registers a rule. Invalid rules return
// *validation.RequestValidationError; duplicate IDs wrap alerting.ErrConflict.
func (e *Engine) AddRule(rule *alerting.AlertRule) error {
	if err := e.rules.AddRule(rule); err != nil {
		return fmt.Errorf("add rule: %w", err)
	}
	return nil
}

// RemoveRule unregisters a rule. Unknown IDs wrap alerting.ErrNotFound.
func (e *Engine) RemoveRule(id string) error {
	if err := e.rules.RemoveRule(id); err != nil {
		return fmt.Errorf("remove rule: %w", err)
	}
	return nil
}

// ListRules returns the registered rules ordered by ID.
func (e *Engine) ListRules() []*alerting.AlertRule {
	return e.rules.Rules()
}

// GetAlert returns a stored alert.
func (e *Engine) GetAlert(ctx context.Context, id string) (*alerting.SecurityAlert, error) {
	alert, err := e.alerts.GetAlert(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

// ListAlerts returns stored alerts matching filter, newest first.
func (e *Engine) ListAlerts(ctx context.Context, filter alerting.AlertFilter) ([]*alerting.SecurityAlert, error) {
	alerts, err := e.alerts.ListAlerts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// AcknowledgeAlert records who acknowledged an alert. A repeated
// acknowledgement wraps alerting.ErrConflict.
func (e *Engine) AcknowledgeAlert(ctx context.Context, id, by, notes string) error {
	by = strings.TrimSpace(by)
	if by == "" {
		return validation.NewError("acknowledged_by", "required", "acknowledged_by is required")
	}
	if err := e.alerts.AcknowledgeAlert(ctx, id, by, notes, e.now()); err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	logging.Info().Str("alert_id", id).Str("by", by).Msg("Alert acknowledged")
	return nil
}

// ResolveAlert marks an alert resolved.
func (e *Engine) ResolveAlert(ctx context.Context, id string) error {
	if err := e.alerts.ResolveAlert(ctx, id, e.now()); err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	logging.Info().Str("alert_id", id).Msg("Alert resolved")
	return nil
}
