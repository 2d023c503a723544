// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tomtom215/riskguard/internal/logging"
)

// LogChannel writes one structured log line per alert.
type LogChannel struct {
	logger  zerolog.Logger
	enabled bool
}

// NewLogChannel creates a log channel writing through the global logger.
func NewLogChannel(enabled bool) *LogChannel {
	return NewLogChannelWithLogger(logging.WithComponent("alert-log"), enabled)
}

// NewLogChannelWithLogger creates a log channel writing to logger.
func NewLogChannelWithLogger(logger zerolog.Logger, enabled bool) *LogChannel {
	return &LogChannel{logger: logger, enabled: enabled}
}

// Name returns "log".
func (c *LogChannel) Name() string { return "log" }

// Enabled reports whether the channel is on.
func (c *LogChannel) Enabled() bool { return c.enabled }

// Send logs the alert at warn level, or error level for critical alerts.
func (c *LogChannel) Send(_ context.Context, alert *SecurityAlert) error {
	event := c.logger.Warn()
	if alert.IsCritical() {
		event = c.logger.Error()
	}
	event.
		Str("alert_id", alert.ID).
		Str("rule_id", alert.RuleID).
		Str("alert_type", alert.AlertType).
		Str("severity", string(alert.Severity)).
		Str("user", alert.AffectedUser).
		Str("ip", alert.AffectedIP).
		Float64("risk_score", alert.RiskScore).
		Bool("escalation", alert.Escalation).
		Int("events", len(alert.TriggeringEvents)).
		Msg(alert.Title)
	return nil
}
