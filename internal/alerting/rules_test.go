// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/validation"
)

func TestAlertRule_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(r *AlertRule)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*AlertRule) {}},
		{name: "threshold rule with window", mutate: func(r *AlertRule) {
			r.ThresholdCount = 5
			r.ThresholdWindow = 5 * time.Minute
		}},
		{name: "missing id", mutate: func(r *AlertRule) { r.ID = "" }, wantErr: true},
		{name: "id with spaces", mutate: func(r *AlertRule) { r.ID = "Brute Force" }, wantErr: true},
		{name: "unknown alert severity", mutate: func(r *AlertRule) { r.AlertSeverity = "urgent" }, wantErr: true},
		{name: "unknown filter severity", mutate: func(r *AlertRule) {
			r.Severities = []detection.Severity{detection.SeverityHigh, "bogus"}
		}, wantErr: true},
		{name: "zero threshold", mutate: func(r *AlertRule) { r.ThresholdCount = 0 }, wantErr: true},
		{name: "negative threshold", mutate: func(r *AlertRule) { r.ThresholdCount = -3 }, wantErr: true},
		{name: "zero cooldown", mutate: func(r *AlertRule) { r.Cooldown = 0 }, wantErr: true},
		{name: "negative cooldown", mutate: func(r *AlertRule) { r.Cooldown = -time.Second }, wantErr: true},
		{name: "threshold without window", mutate: func(r *AlertRule) { r.ThresholdCount = 5 }, wantErr: true},
		{name: "risk above 100", mutate: func(r *AlertRule) { r.MinRiskScore = 150 }, wantErr: true},
		{name: "bad channel name", mutate: func(r *AlertRule) { r.Channels = []string{"Ops Team"} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rule := NewAlertRule("brute-force", AlertTypeBruteForce, detection.SeverityHigh)
			tt.mutate(rule)

			err := rule.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *validation.RequestValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *RequestValidationError", err)
			}
		})
	}
}

func TestAlertRule_JSON(t *testing.T) {
	t.Parallel()

	var rule AlertRule
	data := `{"id":"brute-force","alert_type":"brute_force","alert_severity":"high",
		"event_types":["login_failure"],"threshold_count":5,"threshold_window":"5m"}`
	if err := json.Unmarshal([]byte(data), &rule); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rule.ThresholdWindow != 5*time.Minute {
		t.Errorf("ThresholdWindow = %v, want 5m", rule.ThresholdWindow)
	}
	if rule.Cooldown != DefaultCooldown {
		t.Errorf("Cooldown = %v, want default %v", rule.Cooldown, DefaultCooldown)
	}
	if !rule.Enabled {
		t.Error("rule should default to enabled")
	}
	if rule.Name != "brute-force" {
		t.Errorf("Name = %q, want id fallback", rule.Name)
	}
	if err := rule.Validate(); err != nil {
		t.Errorf("decoded rule invalid: %v", err)
	}

	out, err := json.Marshal(&rule)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), `"threshold_window":"5m0s"`) {
		t.Errorf("marshaled rule missing duration string: %s", out)
	}

	var disabled AlertRule
	if err := json.Unmarshal([]byte(`{"id":"x","enabled":false}`), &disabled); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if disabled.Enabled {
		t.Error("explicit enabled=false was ignored")
	}

	if err := json.Unmarshal([]byte(`{"id":"x","cooldown":"soon"}`), &disabled); err == nil {
		t.Error("invalid cooldown should fail to decode")
	}
}

func TestAlertRule_Matches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(r *AlertRule)
		event  *detection.SecurityEvent
		result *detection.AnalysisResult
		want   bool
	}{
		{
			name:  "empty filters match anything",
			event: newEvent("e", detection.EventAPIRequest, "alice", "10.0.0.1"),
			want:  true,
		},
		{
			name:   "event type filter",
			mutate: func(r *AlertRule) { r.EventTypes = []detection.EventType{detection.EventLoginFailure} },
			event:  newEvent("e", detection.EventLoginSuccess, "alice", "10.0.0.1"),
			want:   false,
		},
		{
			name:   "severity filter",
			mutate: func(r *AlertRule) { r.Severities = []detection.Severity{detection.SeverityHigh} },
			event:  newEvent("e", detection.EventLoginSuccess, "alice", "10.0.0.1"),
			want:   false,
		},
		{
			name:   "analyzed risk reaches minimum",
			mutate: func(r *AlertRule) { r.MinRiskScore = 60 },
			event:  newEvent("e", detection.EventLoginSuccess, "alice", "10.0.0.1"),
			result: newResult(65, true),
			want:   true,
		},
		{
			name:   "seed risk reaches minimum",
			mutate: func(r *AlertRule) { r.MinRiskScore = 60 },
			event: func() *detection.SecurityEvent {
				ev := newEvent("e", detection.EventLoginSuccess, "alice", "10.0.0.1")
				ev.RiskScore = 70
				return ev
			}(),
			result: newResult(10, false),
			want:   true,
		},
		{
			name:   "risk below minimum",
			mutate: func(r *AlertRule) { r.MinRiskScore = 60 },
			event:  newEvent("e", detection.EventLoginSuccess, "alice", "10.0.0.1"),
			result: newResult(30, false),
			want:   false,
		},
		{
			name:   "requires suspicious verdict",
			mutate: func(r *AlertRule) { r.RequireSuspect = true },
			event:  newEvent("e", detection.EventLoginSuccess, "alice", "10.0.0.1"),
			result: newResult(35, false),
			want:   false,
		},
		{
			name:   "activity present",
			mutate: func(r *AlertRule) { r.Activities = []detection.ActivityType{detection.ActivityImpossibleTravel} },
			event:  newEvent("e", detection.EventLoginSuccess, "alice", "10.0.0.1"),
			result: newResult(80, true, detection.ActivityNewLocation, detection.ActivityImpossibleTravel),
			want:   true,
		},
		{
			name:   "activity missing",
			mutate: func(r *AlertRule) { r.Activities = []detection.ActivityType{detection.ActivityTorAccess} },
			event:  newEvent("e", detection.EventLoginSuccess, "alice", "10.0.0.1"),
			result: newResult(80, true, detection.ActivityNewLocation),
			want:   false,
		},
		{
			name:   "disabled rule",
			mutate: func(r *AlertRule) { r.Enabled = false },
			event:  newEvent("e", detection.EventLoginSuccess, "alice", "10.0.0.1"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rule := NewAlertRule("r", "test_alert", detection.SeverityMedium)
			if tt.mutate != nil {
				tt.mutate(rule)
			}
			if got := rule.Matches(tt.event, tt.result); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuleEngine_AddRemove(t *testing.T) {
	t.Parallel()

	engine := NewRuleEngine(DefaultRuleEngineConfig())
	rule := NewAlertRule("privilege-change", AlertTypePrivilegeChange, detection.SeverityHigh)
	if err := engine.AddRule(rule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	if err := engine.AddRule(rule); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate AddRule = %v, want ErrConflict", err)
	}
	if err := engine.AddRule(&AlertRule{ID: "bad"}); err == nil {
		t.Error("invalid rule accepted")
	}
	if err := engine.RemoveRule("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveRule(missing) = %v, want ErrNotFound", err)
	}

	got, err := engine.Rule("privilege-change")
	if err != nil {
		t.Fatalf("Rule: %v", err)
	}
	got.Channels = append(got.Channels, "mutated")
	again, _ := engine.Rule("privilege-change")
	if len(again.Channels) != 0 {
		t.Error("Rule returned shared state")
	}

	if err := engine.RemoveRule("privilege-change"); err != nil {
		t.Fatalf("RemoveRule: %v", err)
	}
	if engine.Len() != 0 {
		t.Errorf("Len() = %d after remove, want 0", engine.Len())
	}
}

func TestRuleEngine_RulesSorted(t *testing.T) {
	t.Parallel()

	engine := NewRuleEngine(DefaultRuleEngineConfig())
	for _, r := range DefaultRules() {
		if err := engine.AddRule(r); err != nil {
			t.Fatalf("AddRule(%s): %v", r.ID, err)
		}
	}
	rules := engine.Rules()
	if len(rules) != len(DefaultRules()) {
		t.Fatalf("Rules() len = %d", len(rules))
	}
	for i := 1; i < len(rules); i++ {
		if rules[i-1].ID >= rules[i].ID {
			t.Errorf("rules not sorted: %s before %s", rules[i-1].ID, rules[i].ID)
		}
	}
}

func TestRuleEngine_AlertContents(t *testing.T) {
	t.Parallel()

	engine := NewRuleEngine(DefaultRuleEngineConfig())
	rule := NewAlertRule("suspicious-login", AlertTypeSuspiciousLogin, detection.SeverityMedium)
	rule.Channels = []string{"ops"}
	if err := engine.AddRule(rule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	tests := []struct {
		name     string
		seed     float64
		analyzed float64
		wantRisk float64
	}{
		{name: "analyzed dominates", seed: 30, analyzed: 50, wantRisk: 70},
		{name: "seed dominates", seed: 55, analyzed: 10, wantRisk: 75},
		{name: "capped at 100", seed: 90, analyzed: 40, wantRisk: 100},
	}

	for _, tt := range tests {
		ev := newEvent("evt-"+tt.name, detection.EventLoginSuccess, "alice", "10.0.0.1")
		ev.RiskScore = tt.seed
		alerts := engine.Evaluate(ev, newResult(tt.analyzed, true, detection.ActivityNewLocation), testNow)
		if len(alerts) != 1 {
			t.Fatalf("%s: got %d alerts, want 1", tt.name, len(alerts))
		}
		a := alerts[0]
		if a.RiskScore != tt.wantRisk {
			t.Errorf("%s: RiskScore = %v, want %v", tt.name, a.RiskScore, tt.wantRisk)
		}
		if a.RuleID != "suspicious-login" || a.AffectedUser != "alice" || a.AffectedIP != "10.0.0.1" {
			t.Errorf("%s: unexpected identity fields %+v", tt.name, a)
		}
		if len(a.TriggeringEvents) != 1 || a.TriggeringEvents[0].ID != ev.ID {
			t.Errorf("%s: TriggeringEvents = %+v", tt.name, a.TriggeringEvents)
		}
		if !strings.Contains(a.Description, "alice") || !strings.Contains(a.Description, "NEW_LOCATION") {
			t.Errorf("%s: Description = %q", tt.name, a.Description)
		}
		if len(a.Channels) != 1 || a.Channels[0] != "ops" {
			t.Errorf("%s: Channels = %v", tt.name, a.Channels)
		}
	}
}

func TestRuleEngine_SlidingThresholdWindow(t *testing.T) {
	t.Parallel()

	engine := NewRuleEngine(DefaultRuleEngineConfig())
	rule := NewAlertRule("rapid-denials", "test_alert", detection.SeverityMedium)
	rule.EventTypes = []detection.EventType{detection.EventAccessDenied}
	rule.ThresholdCount = 3
	rule.ThresholdWindow = time.Minute
	if err := engine.AddRule(rule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	steps := []struct {
		offset time.Duration
		fires  bool
	}{
		{0, false},
		{40 * time.Second, false},
		{90 * time.Second, false}, // first event has left the window
		{95 * time.Second, true},
	}
	for i, step := range steps {
		ev := newEvent("d", detection.EventAccessDenied, "carol", "10.0.0.9")
		got := len(engine.Evaluate(ev, nil, testNow.Add(step.offset))) == 1
		if got != step.fires {
			t.Errorf("step %d (+%v): fired = %v, want %v", i, step.offset, got, step.fires)
		}
	}
}

func TestAlertRisk(t *testing.T) {
	t.Parallel()

	for in, want := range map[float64]float64{0: 20, 45: 65, 80: 100, 100: 100} {
		if got := AlertRisk(in); got != want {
			t.Errorf("AlertRisk(%v) = %v, want %v", in, got, want)
		}
	}
}
