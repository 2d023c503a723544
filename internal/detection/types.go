// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Severity ranks events and alerts. The string form is what appears in
// configuration, JSON and log output.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from 1 (low) to 4 (critical). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// ParseSeverity converts a case-insensitive name to a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// EventType identifies the kind of security event.
type EventType string

const (
	EventLoginSuccess    EventType = "login_success"
	EventLoginFailure    EventType = "login_failure"
	EventLogout          EventType = "logout"
	EventMFAFailure      EventType = "mfa_failure"
	EventPasswordChange  EventType = "password_change"
	EventPrivilegeChange EventType = "privilege_change"
	EventAccessGranted   EventType = "access_granted"
	EventAccessDenied    EventType = "access_denied"
	EventDataExport      EventType = "data_export"
	EventAPIRequest      EventType = "api_request"
)

// IsFailure reports whether the event type represents a failed attempt.
func (t EventType) IsFailure() bool {
	switch t {
	case EventLoginFailure, EventMFAFailure, EventAccessDenied:
		return true
	}
	return strings.HasSuffix(string(t), "_failure") || strings.HasSuffix(string(t), "_denied")
}

// SecurityEvent is an immutable input to the pipeline.
// A zero Timestamp means the producer sent none or sent one that could not be parsed.
type SecurityEvent struct {
	ID        string                 `json:"id" validate:"max=128"`
	EventType EventType              `json:"event_type" validate:"max=64"`
	Severity  Severity               `json:"severity"`
	UserID    string                 `json:"user_id,omitempty" validate:"max=256"`
	IPAddress string                 `json:"ip_address,omitempty" validate:"omitempty,ip"`
	UserAgent string                 `json:"user_agent,omitempty" validate:"max=1024"`
	Timestamp time.Time              `json:"timestamp"`
	RiskScore float64                `json:"risk_score" validate:"gte=0,lte=100"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// EntityKey returns the key used for per-entity state: the user when known,
// otherwise the source IP. Empty when the event carries neither.
func (e *SecurityEvent) EntityKey() string {
	switch {
	case e.UserID != "":
		return "user:" + e.UserID
	case e.IPAddress != "":
		return "ip:" + e.IPAddress
	default:
		return ""
	}
}

// eventWire is the JSON shape accepted from producers. The timestamp is kept
// raw so that an unparseable value degrades to zero instead of failing decode.
type eventWire struct {
	ID        string                 `json:"id"`
	EventType EventType              `json:"event_type"`
	Severity  Severity               `json:"severity"`
	UserID    string                 `json:"user_id"`
	IPAddress string                 `json:"ip_address"`
	UserAgent string                 `json:"user_agent"`
	Timestamp json.RawMessage        `json:"timestamp"`
	RiskScore float64                `json:"risk_score"`
	Details   map[string]interface{} `json:"details"`
}

// UnmarshalJSON decodes an event, tolerating missing or malformed timestamps.
func (e *SecurityEvent) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = SecurityEvent{
		ID:        w.ID,
		EventType: EventType(strings.ToLower(string(w.EventType))),
		Severity:  Severity(strings.ToLower(string(w.Severity))),
		UserID:    w.UserID,
		IPAddress: w.IPAddress,
		UserAgent: w.UserAgent,
		RiskScore: w.RiskScore,
		Details:   w.Details,
	}
	if ts, ok := parseRawTimestamp(w.Timestamp); ok {
		e.Timestamp = ts
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses the timestamp formats producers are known to send:
// RFC 3339 with or without zone, and unix seconds or milliseconds.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return unixToTime(n)
	}
	return time.Time{}, false
}

func parseRawTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseTimestamp(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return unixToTime(n)
	}
	return time.Time{}, false
}

// Numeric timestamps above unixMillisCutoff are milliseconds. Anything outside
// years 1 to 9999 is rejected.
const (
	unixMillisCutoff = 1e12
	minUnixSeconds   = -62135596800
	maxUnixMillis    = 253402300799999
)

func unixToTime(n float64) (time.Time, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) || n < minUnixSeconds || n > maxUnixMillis {
		return time.Time{}, false
	}
	if n > unixMillisCutoff {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	sec := int64(n)
	nsec := int64((n - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), true
}

// LocationData is the resolved location of an IP address.
type LocationData struct {
	IP        string  `json:"ip"`
	Country   string  `json:"country"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	IsProxy   bool    `json:"is_proxy"`
	IsTor     bool    `json:"is_tor"`
}

// Hash returns a stable fingerprint of the coordinates rounded to two decimals
// (roughly 1km), so nearby lookups of the same city collapse to one location.
func (l *LocationData) Hash() string {
	return locationHash(l.Latitude, l.Longitude)
}

// HasCoordinates reports whether the location carries usable coordinates.
func (l *LocationData) HasCoordinates() bool {
	return HasValidCoordinates(l.Latitude, l.Longitude)
}

// ActivityType tags an anomaly category detected on an event.
type ActivityType string

const (
	ActivityGeolocationAnomaly  ActivityType = "GEOLOCATION_ANOMALY"
	ActivityNewLocation         ActivityType = "NEW_LOCATION"
	ActivityImpossibleTravel    ActivityType = "IMPOSSIBLE_TRAVEL"
	ActivityProxyAccess         ActivityType = "PROXY_ACCESS"
	ActivityTorAccess           ActivityType = "TOR_ACCESS"
	ActivityOffHoursAccess      ActivityType = "OFF_HOURS_ACCESS"
	ActivityUnusualTimePattern  ActivityType = "UNUSUAL_TIME_PATTERN"
	ActivityNewUserAgent        ActivityType = "NEW_USER_AGENT"
	ActivitySuspiciousUserAgent ActivityType = "SUSPICIOUS_USER_AGENT"
	ActivityUserAgentRotation   ActivityType = "USER_AGENT_ROTATION"
	ActivityDormantAccount      ActivityType = "DORMANT_ACCOUNT_ACTIVATION"
	ActivityVelocityAnomaly     ActivityType = "VELOCITY_ANOMALY"
	ActivityRepeatedFailures    ActivityType = "REPEATED_FAILURES"
	ActivityExtremeTimestamp    ActivityType = "EXTREME_TIMESTAMP"
)

// Category groups analyzers for the compound-anomaly bonus.
type Category string

const (
	CategoryLocation Category = "location"
	CategoryTime     Category = "time"
	CategoryDevice   Category = "device"
	CategoryBehavior Category = "behavior"
)

// Anomaly reasons recorded on results when analysis ran in a degraded mode.
const (
	ReasonMalformedTimestamp   = "malformed_timestamp"
	ReasonExtremeTimestamp     = "extreme_timestamp"
	ReasonInsufficientBaseline = "insufficient_baseline"
	ReasonBaselineUnavailable  = "baseline_unavailable"
	ReasonBaselineSaveFailed   = "baseline_save_failed"
	ReasonAnalyzerFailed       = "analyzer_failed"
)

// RiskLevel buckets a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskScore is the bounded outcome of aggregation.
type RiskScore struct {
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Level      RiskLevel `json:"level"`
	Factors    []string  `json:"factors"`
}

// Finding is one analyzer's contribution for a single event.
type Finding struct {
	Analyzer        string
	Category        Category
	Activities      []ActivityType
	Factors         map[string]interface{}
	Delta           float64
	ForceSuspicious bool
}

// NewFinding returns an empty finding for the named analyzer.
func NewFinding(analyzer string, category Category) Finding {
	return Finding{
		Analyzer: analyzer,
		Category: category,
		Factors:  make(map[string]interface{}),
	}
}

// Flag records an activity and its score contribution.
func (f *Finding) Flag(activity ActivityType, delta float64) {
	f.Activities = append(f.Activities, activity)
	f.Delta += delta
}

// Contributed reports whether the finding moved the score or tagged an activity.
func (f *Finding) Contributed() bool {
	return f.Delta > 0 || len(f.Activities) > 0
}

// AnalysisResult is the detector's verdict for one event.
type AnalysisResult struct {
	EventID            string                 `json:"event_id"`
	EntityKey          string                 `json:"entity_key"`
	IsSuspicious       bool                   `json:"is_suspicious"`
	Risk               RiskScore              `json:"risk"`
	DetectedActivities []ActivityType         `json:"detected_activities"`
	RiskFactors        map[string]interface{} `json:"risk_factors"`
	Recommendations    []string               `json:"recommendations"`
	AnomalyReasons     []string               `json:"anomaly_reasons"`
	Location           *LocationData          `json:"location,omitempty"`
	EventTime          time.Time              `json:"event_time"`
	AnalyzedAt         time.Time              `json:"analyzed_at"`
}

// NewAnalysisResult returns a result with its containers initialized.
func NewAnalysisResult(eventID, entityKey string) *AnalysisResult {
	return &AnalysisResult{
		EventID:            eventID,
		EntityKey:          entityKey,
		Risk:               RiskScore{Level: RiskLow, Factors: []string{}},
		DetectedActivities: []ActivityType{},
		RiskFactors:        make(map[string]interface{}),
		Recommendations:    []string{},
		AnomalyReasons:     []string{},
	}
}

// HasActivity reports whether activity was detected.
func (r *AnalysisResult) HasActivity(activity ActivityType) bool {
	for _, a := range r.DetectedActivities {
		if a == activity {
			return true
		}
	}
	return false
}

// HasReason reports whether reason was recorded.
func (r *AnalysisResult) HasReason(reason string) bool {
	for _, a := range r.AnomalyReasons {
		if a == reason {
			return true
		}
	}
	return false
}

func (r *AnalysisResult) addReason(reason string) {
	if !r.HasReason(reason) {
		r.AnomalyReasons = append(r.AnomalyReasons, reason)
	}
}
