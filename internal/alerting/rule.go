// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/validation"
)

// DefaultCooldown applies to rules that do not set one.
const DefaultCooldown = 5 * time.Minute

// AlertRule decides which events become alerts.
//
// EventTypes and Severities are filters where empty means any. When
// ThresholdCount is above one the rule fires only once that many matching
// events for the same entity fall inside ThresholdWindow.
type AlertRule struct {
	ID              string                   `json:"id" validate:"required,slug"`
	Name            string                   `json:"name" validate:"max=200"`
	Description     string                   `json:"description,omitempty" validate:"max=2000"`
	EventTypes      []detection.EventType    `json:"event_types,omitempty"`
	Severities      []detection.Severity     `json:"severities,omitempty" validate:"dive,severity"`
	ThresholdCount  int                      `json:"threshold_count" validate:"gte=1"`
	ThresholdWindow time.Duration            `json:"threshold_window"`
	AlertType       string                   `json:"alert_type" validate:"required,slug"`
	AlertSeverity   detection.Severity       `json:"alert_severity" validate:"required,severity"`
	Cooldown        time.Duration            `json:"cooldown"`
	Channels        []string                 `json:"channels,omitempty" validate:"dive,slug"`
	MinRiskScore    float64                  `json:"min_risk_score" validate:"gte=0,lte=100"`
	RequireSuspect  bool                     `json:"require_suspicious"`
	Activities      []detection.ActivityType `json:"activities,omitempty"`
	Enabled         bool                     `json:"enabled"`
}

// NewAlertRule returns an enabled single-event rule with the default cooldown.
func NewAlertRule(id, alertType string, severity detection.Severity) *AlertRule {
	return &AlertRule{
		ID:             id,
		Name:           id,
		AlertType:      alertType,
		AlertSeverity:  severity,
		ThresholdCount: 1,
		Cooldown:       DefaultCooldown,
		Enabled:        true,
	}
}

// Validate checks struct tags and the cross-field constraints tags cannot
// express. It returns *validation.RequestValidationError on failure.
func (r *AlertRule) Validate() error {
	if verr := validation.ValidateStruct(r); verr != nil {
		return verr
	}
	if r.Cooldown <= 0 {
		return validation.NewError("Cooldown", "gt", "Cooldown must be greater than 0")
	}
	if r.ThresholdCount > 1 && r.ThresholdWindow <= 0 {
		return validation.NewError("ThresholdWindow", "gt",
			"ThresholdWindow must be greater than 0 when ThresholdCount is above 1")
	}
	if r.ThresholdWindow < 0 {
		return validation.NewError("ThresholdWindow", "gte", "ThresholdWindow must not be negative")
	}
	return nil
}

// Clone returns a copy that shares no slices with r.
func (r *AlertRule) Clone() *AlertRule {
	c := *r
	c.EventTypes = append([]detection.EventType(nil), r.EventTypes...)
	c.Severities = append([]detection.Severity(nil), r.Severities...)
	c.Channels = append([]string(nil), r.Channels...)
	c.Activities = append([]detection.ActivityType(nil), r.Activities...)
	return &c
}

// Matches reports whether an event and its analysis pass every filter of r.
// Threshold counting happens in the RuleEngine.
func (r *AlertRule) Matches(ev *detection.SecurityEvent, result *detection.AnalysisResult) bool {
	if !r.Enabled || ev == nil {
		return false
	}
	if len(r.EventTypes) > 0 && !containsEventType(r.EventTypes, ev.EventType) {
		return false
	}
	if len(r.Severities) > 0 && !containsSeverity(r.Severities, ev.Severity) {
		return false
	}
	if r.MinRiskScore > 0 && EffectiveRisk(ev, result) < r.MinRiskScore {
		return false
	}
	if r.RequireSuspect && (result == nil || !result.IsSuspicious) {
		return false
	}
	if len(r.Activities) > 0 {
		if result == nil {
			return false
		}
		found := false
		for _, a := range r.Activities {
			if result.HasActivity(a) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// EffectiveRisk is the larger of the caller's seed score and the analyzed score.
func EffectiveRisk(ev *detection.SecurityEvent, result *detection.AnalysisResult) float64 {
	risk := ev.RiskScore
	if result != nil && result.Risk.Score > risk {
		risk = result.Risk.Score
	}
	if risk < 0 {
		return 0
	}
	if risk > 100 {
		return 100
	}
	return risk
}

func containsEventType(list []detection.EventType, t detection.EventType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

// ruleWire carries durations as Go duration strings ("5m", "1h30m").
type ruleWire struct {
	ID              string                   `json:"id"`
	Name            string                   `json:"name"`
	Description     string                   `json:"description,omitempty"`
	EventTypes      []detection.EventType    `json:"event_types,omitempty"`
	Severities      []detection.Severity     `json:"severities,omitempty"`
	ThresholdCount  int                      `json:"threshold_count"`
	ThresholdWindow string                   `json:"threshold_window,omitempty"`
	AlertType       string                   `json:"alert_type"`
	AlertSeverity   detection.Severity       `json:"alert_severity"`
	Cooldown        string                   `json:"cooldown,omitempty"`
	Channels        []string                 `json:"channels,omitempty"`
	MinRiskScore    float64                  `json:"min_risk_score"`
	RequireSuspect  bool                     `json:"require_suspicious"`
	Activities      []detection.ActivityType `json:"activities,omitempty"`
	Enabled         *bool                    `json:"enabled,omitempty"`
}

// MarshalJSON encodes durations as strings.
func (r AlertRule) MarshalJSON() ([]byte, error) {
	enabled := r.Enabled
	w := ruleWire{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		EventTypes:     r.EventTypes,
		Severities:     r.Severities,
		ThresholdCount: r.ThresholdCount,
		AlertType:      r.AlertType,
		AlertSeverity:  r.AlertSeverity,
		Channels:       r.Channels,
		MinRiskScore:   r.MinRiskScore,
		RequireSuspect: r.RequireSuspect,
		Activities:     r.Activities,
		Enabled:        &enabled,
	}
	if r.ThresholdWindow > 0 {
		w.ThresholdWindow = r.ThresholdWindow.String()
	}
	if r.Cooldown > 0 {
		w.Cooldown = r.Cooldown.String()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a rule. Missing fields take the NewAlertRule
// defaults: enabled, threshold 1 and the default cooldown.
func (r *AlertRule) UnmarshalJSON(data []byte) error {
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := AlertRule{
		ID:             w.ID,
		Name:           w.Name,
		Description:    w.Description,
		EventTypes:     w.EventTypes,
		Severities:     w.Severities,
		ThresholdCount: w.ThresholdCount,
		AlertType:      w.AlertType,
		AlertSeverity:  w.AlertSeverity,
		Channels:       w.Channels,
		MinRiskScore:   w.MinRiskScore,
		RequireSuspect: w.RequireSuspect,
		Activities:     w.Activities,
		Enabled:        true,
		Cooldown:       DefaultCooldown,
	}
	if w.Enabled != nil {
		out.Enabled = *w.Enabled
	}
	if out.ThresholdCount == 0 {
		out.ThresholdCount = 1
	}
	if out.Name == "" {
		out.Name = out.ID
	}
	if w.ThresholdWindow != "" {
		d, err := time.ParseDuration(w.ThresholdWindow)
		if err != nil {
			return fmt.Errorf("threshold_window: %w", err)
		}
		out.ThresholdWindow = d
	}
	if w.Cooldown != "" {
		d, err := time.ParseDuration(w.Cooldown)
		if err != nil {
			return fmt.Errorf("cooldown: %w", err)
		}
		out.Cooldown = d
	}
	*r = out
	return nil
}

// DefaultRules is the rule set installed when configuration provides none.
func DefaultRules() []*AlertRule {
	brute := NewAlertRule("brute-force", AlertTypeBruteForce, detection.SeverityHigh)
	brute.Name = "Brute force login"
	brute.Description = "Repeated login failures for one user or address"
	brute.EventTypes = []detection.EventType{detection.EventLoginFailure, detection.EventMFAFailure}
	brute.ThresholdCount = 5
	brute.ThresholdWindow = 5 * time.Minute
	brute.Cooldown = 15 * time.Minute

	suspicious := NewAlertRule("suspicious-login", AlertTypeSuspiciousLogin, detection.SeverityMedium)
	suspicious.Name = "Suspicious login"
	suspicious.Description = "Successful login the detector scored as suspicious"
	suspicious.EventTypes = []detection.EventType{detection.EventLoginSuccess}
	suspicious.RequireSuspect = true

	travel := NewAlertRule("impossible-travel", AlertTypeImpossibleTravel, detection.SeverityCritical)
	travel.Name = "Impossible travel"
	travel.Description = "Location change faster than physically possible"
	travel.Activities = []detection.ActivityType{detection.ActivityImpossibleTravel}
	travel.Cooldown = 30 * time.Minute

	privilege := NewAlertRule("privilege-change", AlertTypePrivilegeChange, detection.SeverityHigh)
	privilege.Name = "Privilege change"
	privilege.Description = "Role or permission change on an account"
	privilege.EventTypes = []detection.EventType{detection.EventPrivilegeChange}

	dormant := NewAlertRule("dormant-account", AlertTypeDormantAccount, detection.SeverityMedium)
	dormant.Name = "Dormant account reactivated"
	dormant.Description = "Activity on an account after a long idle period"
	dormant.Activities = []detection.ActivityType{detection.ActivityDormantAccount}
	dormant.Cooldown = time.Hour

	return []*AlertRule{brute, suspicious, travel, privilege, dormant}
}
