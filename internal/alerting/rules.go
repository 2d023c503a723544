// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/riskguard/internal/cache"
	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/validation"
)

// RuleEngineConfig bounds the per-rule threshold windows.
type RuleEngineConfig struct {
	// MaxTrackedEntities caps the entity keys held per threshold rule.
	MaxTrackedEntities int
	// MaxTriggeringEvents caps the event snapshot stored on an alert.
	MaxTriggeringEvents int
}

// DefaultRuleEngineConfig returns production defaults.
func DefaultRuleEngineConfig() RuleEngineConfig {
	return RuleEngineConfig{
		MaxTrackedEntities:  100000,
		MaxTriggeringEvents: 10,
	}
}

type ruleState struct {
	rule   *AlertRule
	window *cache.WindowStore
}

// RuleEngine holds the active rules and their threshold windows.
type RuleEngine struct {
	mu    sync.RWMutex
	cfg   RuleEngineConfig
	rules map[string]*ruleState
}

// NewRuleEngine creates an engine with no rules.
func NewRuleEngine(cfg RuleEngineConfig) *RuleEngine {
	def := DefaultRuleEngineConfig()
	if cfg.MaxTrackedEntities <= 0 {
		cfg.MaxTrackedEntities = def.MaxTrackedEntities
	}
	if cfg.MaxTriggeringEvents <= 0 {
		cfg.MaxTriggeringEvents = def.MaxTriggeringEvents
	}
	return &RuleEngine{
		cfg:   cfg,
		rules: make(map[string]*ruleState),
	}
}

// AddRule validates and registers rule. Duplicate IDs return ErrConflict.
func (e *RuleEngine) AddRule(rule *AlertRule) error {
	if rule == nil {
		return validation.NewError("rule", "required", "rule is required")
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[rule.ID]; exists {
		return fmt.Errorf("rule %q: %w", rule.ID, ErrConflict)
	}
	st := &ruleState{rule: rule.Clone()}
	if rule.ThresholdCount > 1 {
		st.window = cache.NewWindowStore(rule.ThresholdWindow, e.cfg.MaxTrackedEntities, rule.ThresholdCount*2)
	}
	e.rules[rule.ID] = st

	logging.Info().
		Str("rule_id", rule.ID).
		Str("alert_type", rule.AlertType).
		Str("severity", string(rule.AlertSeverity)).
		Int("threshold", rule.ThresholdCount).
		Msg("alert rule registered")
	return nil
}

// RemoveRule unregisters a rule and discards its window state.
func (e *RuleEngine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[id]; !exists {
		return fmt.Errorf("rule %q: %w", id, ErrNotFound)
	}
	delete(e.rules, id)
	logging.Info().Str("rule_id", id).Msg("alert rule removed")
	return nil
}

// Rule returns a copy of the rule with the given ID.
func (e *RuleEngine) Rule(id string) (*AlertRule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %q: %w", id, ErrNotFound)
	}
	return st.rule.Clone(), nil
}

// Rules returns copies of all rules ordered by ID.
func (e *RuleEngine) Rules() []*AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*AlertRule, 0, len(e.rules))
	for _, st := range e.rules {
		out = append(out, st.rule.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered rules.
func (e *RuleEngine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Evaluate matches ev against every rule and returns the candidate alerts of
// the rules that fired, ordered by rule ID. Threshold windows are advanced on
// every match, fired or not.
func (e *RuleEngine) Evaluate(ev *detection.SecurityEvent, result *detection.AnalysisResult, now time.Time) []*SecurityAlert {
	if ev == nil {
		return nil
	}

	e.mu.RLock()
	states := make([]*ruleState, 0, len(e.rules))
	for _, st := range e.rules {
		states = append(states, st)
	}
	e.mu.RUnlock()
	sort.Slice(states, func(i, j int) bool { return states[i].rule.ID < states[j].rule.ID })

	entity := ev.EntityKey()
	if entity == "" {
		entity = GlobalScope
	}

	var alerts []*SecurityAlert
	for _, st := range states {
		rule := st.rule
		if !rule.Matches(ev, result) {
			continue
		}
		count := 1
		if st.window != nil {
			count = st.window.Add(entity, now)
			if count < rule.ThresholdCount {
				continue
			}
		}
		alerts = append(alerts, e.buildAlert(rule, ev, result, count, now))
	}
	return alerts
}

// Sweep drops expired entity windows from every threshold rule.
func (e *RuleEngine) Sweep(now time.Time) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	removed := 0
	for _, st := range e.rules {
		if st.window != nil {
			removed += st.window.Sweep(now)
		}
	}
	return removed
}

func (e *RuleEngine) buildAlert(rule *AlertRule, ev *detection.SecurityEvent, result *detection.AnalysisResult, count int, now time.Time) *SecurityAlert {
	alert := NewSecurityAlert(rule.AlertType, rule.AlertSeverity, rule.ID, now)
	alert.AffectedUser = ev.UserID
	alert.AffectedIP = ev.IPAddress
	alert.RiskScore = AlertRisk(EffectiveRisk(ev, result))
	alert.Channels = append([]string(nil), rule.Channels...)
	alert.Analysis = summarize(result)
	alert.appendEvent(ev, e.cfg.MaxTriggeringEvents)

	vars := templateVars{
		rule:      rule.ID,
		user:      ev.UserID,
		ip:        ev.IPAddress,
		eventType: string(ev.EventType),
		count:     count,
		window:    rule.ThresholdWindow.String(),
		risk:      alert.RiskScore,
	}
	if result != nil {
		vars.activities = result.DetectedActivities
	}
	alert.Title, alert.Description = render(rule.AlertType, vars)
	return alert
}

// AlertRisk lifts an event risk into alert risk: 20 points higher, capped at 100.
func AlertRisk(eventRisk float64) float64 {
	risk := eventRisk + 20
	if risk > 100 {
		return 100
	}
	if risk < 0 {
		return 0
	}
	return risk
}
