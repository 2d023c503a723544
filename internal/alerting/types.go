// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/riskguard/internal/detection"
)

// GlobalScope stands in for a missing user or IP in cooldown keys.
const GlobalScope = "global"

// Alert types with dedicated description templates.
const (
	AlertTypeBruteForce         = "brute_force"
	AlertTypeSuspiciousLogin    = "suspicious_login"
	AlertTypeImpossibleTravel   = "impossible_travel"
	AlertTypePrivilegeChange    = "privilege_change"
	AlertTypeDormantAccount     = "dormant_account"
	AlertTypeDataExfiltration   = "data_exfiltration"
	AlertTypeAutomatedAccess    = "automated_access"
	AlertTypeAnonymizingNetwork = "anonymizing_network"
	AlertTypeEscalation         = "escalation"
)

// EscalationRuleID is the rule ID carried by synthetic escalation alerts.
const EscalationRuleID = "escalation"

// AnalysisSummary is the part of the detector's verdict kept on an alert.
type AnalysisSummary struct {
	Score      float64                  `json:"score"`
	Confidence float64                  `json:"confidence"`
	Level      detection.RiskLevel      `json:"level"`
	Suspicious bool                     `json:"suspicious"`
	Activities []detection.ActivityType `json:"activities"`
	Reasons    []string                 `json:"reasons"`
}

// SecurityAlert is a generated alert. Alerts are append-only in the store;
// acknowledgement, resolution, notification and suppression are recorded on
// the stored copy.
type SecurityAlert struct {
	ID               string                    `json:"id"`
	AlertType        string                    `json:"alert_type"`
	Severity         detection.Severity        `json:"severity"`
	Title            string                    `json:"title"`
	Description      string                    `json:"description"`
	TriggeringEvents []detection.SecurityEvent `json:"triggering_events"`
	AffectedUser     string                    `json:"affected_user,omitempty"`
	AffectedIP       string                    `json:"affected_ip,omitempty"`
	RiskScore        float64                   `json:"risk_score"`
	Timestamp        time.Time                 `json:"timestamp"`
	RuleID           string                    `json:"rule_id"`
	Channels         []string                  `json:"channels,omitempty"`
	Analysis         *AnalysisSummary          `json:"analysis,omitempty"`
	Escalation       bool                      `json:"escalation"`

	NotificationsSent    []string   `json:"notifications_sent"`
	Acknowledged         bool       `json:"acknowledged"`
	AcknowledgedBy       string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt       *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgementNotes string     `json:"acknowledgement_notes,omitempty"`
	Resolved             bool       `json:"resolved"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`
	SuppressedCount      int        `json:"suppressed_count"`
}

// NewSecurityAlert returns an alert with a fresh ID and initialized containers.
func NewSecurityAlert(alertType string, severity detection.Severity, ruleID string, at time.Time) *SecurityAlert {
	return &SecurityAlert{
		ID:                uuid.New().String(),
		AlertType:         alertType,
		Severity:          severity,
		RuleID:            ruleID,
		Timestamp:         at,
		TriggeringEvents:  []detection.SecurityEvent{},
		NotificationsSent: []string{},
	}
}

// IsCritical reports whether the alert bypasses cooldown and rate limits.
func (a *SecurityAlert) IsCritical() bool {
	return a.Severity == detection.SeverityCritical
}

// CooldownKey identifies alerts that share a cooldown:
// rule, affected user and affected IP, with "global" for missing parts.
func (a *SecurityAlert) CooldownKey() string {
	return CooldownKey(a.RuleID, a.AffectedUser, a.AffectedIP)
}

// CooldownKey builds the key for (rule, user|"global", ip|"global").
func CooldownKey(ruleID, user, ip string) string {
	if user == "" {
		user = GlobalScope
	}
	if ip == "" {
		ip = GlobalScope
	}
	return ruleID + "|" + user + "|" + ip
}

// HasNotified reports whether channel already received this alert.
func (a *SecurityAlert) HasNotified(channel string) bool {
	for _, c := range a.NotificationsSent {
		if c == channel {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (a *SecurityAlert) Clone() *SecurityAlert {
	if a == nil {
		return nil
	}
	c := *a
	c.TriggeringEvents = make([]detection.SecurityEvent, len(a.TriggeringEvents))
	for i, ev := range a.TriggeringEvents {
		c.TriggeringEvents[i] = cloneEvent(ev)
	}
	c.Channels = append([]string(nil), a.Channels...)
	c.NotificationsSent = append([]string{}, a.NotificationsSent...)
	if a.Analysis != nil {
		s := *a.Analysis
		s.Activities = append([]detection.ActivityType(nil), a.Analysis.Activities...)
		s.Reasons = append([]string(nil), a.Analysis.Reasons...)
		c.Analysis = &s
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// cloneEvent copies an event, including a shallow copy of its details map.
func cloneEvent(ev detection.SecurityEvent) detection.SecurityEvent {
	if ev.Details != nil {
		details := make(map[string]interface{}, len(ev.Details))
		for k, v := range ev.Details {
			details[k] = v
		}
		ev.Details = details
	}
	return ev
}

// appendEvent adds a snapshot of ev, keeping at most limit events.
func (a *SecurityAlert) appendEvent(ev *detection.SecurityEvent, limit int) {
	if ev == nil || (limit > 0 && len(a.TriggeringEvents) >= limit) {
		return
	}
	a.TriggeringEvents = append(a.TriggeringEvents, cloneEvent(*ev))
}

func summarize(result *detection.AnalysisResult) *AnalysisSummary {
	if result == nil {
		return nil
	}
	return &AnalysisSummary{
		Score:      result.Risk.Score,
		Confidence: result.Risk.Confidence,
		Level:      result.Risk.Level,
		Suspicious: result.IsSuspicious,
		Activities: append([]detection.ActivityType(nil), result.DetectedActivities...),
		Reasons:    append([]string(nil), result.AnomalyReasons...),
	}
}

// AlertFilter selects alerts for ListAlerts. Zero values match everything.
type AlertFilter struct {
	Severities   []detection.Severity `json:"severities,omitempty"`
	AlertTypes   []string             `json:"alert_types,omitempty"`
	RuleID       string               `json:"rule_id,omitempty"`
	User         string               `json:"user,omitempty"`
	Acknowledged *bool                `json:"acknowledged,omitempty"`
	Resolved     *bool                `json:"resolved,omitempty"`
	Since        *time.Time           `json:"since,omitempty"`
	Until        *time.Time           `json:"until,omitempty"`
	Limit        int                  `json:"limit,omitempty"`
	Offset       int                  `json:"offset,omitempty"`
}

// DefaultListLimit caps ListAlerts when the filter sets no limit.
const DefaultListLimit = 100

// Matches reports whether a passes the filter's predicates.
func (f AlertFilter) Matches(a *SecurityAlert) bool {
	if len(f.Severities) > 0 && !containsSeverity(f.Severities, a.Severity) {
		return false
	}
	if len(f.AlertTypes) > 0 && !containsString(f.AlertTypes, a.AlertType) {
		return false
	}
	if f.RuleID != "" && a.RuleID != f.RuleID {
		return false
	}
	if f.User != "" && a.AffectedUser != f.User {
		return false
	}
	if f.Acknowledged != nil && a.Acknowledged != *f.Acknowledged {
		return false
	}
	if f.Resolved != nil && a.Resolved != *f.Resolved {
		return false
	}
	if f.Since != nil && a.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && a.Timestamp.After(*f.Until) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already filtered, ordered slice.
func (f AlertFilter) Page(alerts []*SecurityAlert) []*SecurityAlert {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := max(f.Offset, 0)
	if offset >= len(alerts) {
		return []*SecurityAlert{}
	}
	alerts = alerts[offset:]
	if len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsSeverity(list []detection.Severity, s detection.Severity) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
