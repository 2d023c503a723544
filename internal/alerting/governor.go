// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import (
	"sync"
	"time"

	"github.com/tomtom215/riskguard/internal/cache"
	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
)

// rateKey is the single key of the global rate-limit window.
const rateKey = "global"

// GovernorConfig configures cooldown, rate limiting and escalation.
type GovernorConfig struct {
	RateLimitCount      int
	RateLimitWindow     time.Duration
	EscalationThreshold int
	EscalationWindow    time.Duration
	// MaxTrackedKeys caps cooldown keys and escalation users.
	MaxTrackedKeys int
	Clock          func() time.Time
}

// DefaultGovernorConfig returns 100 alerts per hour and escalation at 5
// alerts in 15 minutes.
func DefaultGovernorConfig() GovernorConfig {
	return GovernorConfig{
		RateLimitCount:      100,
		RateLimitWindow:     time.Hour,
		EscalationThreshold: 5,
		EscalationWindow:    15 * time.Minute,
		MaxTrackedKeys:      100000,
		Clock:               time.Now,
	}
}

// Decision is the governor's verdict on a candidate alert.
type Decision int

const (
	// DecisionAdmit means the alert is generated.
	DecisionAdmit Decision = iota
	// DecisionSuppressCooldown means an alert with the same cooldown key
	// already exists inside the cooldown.
	DecisionSuppressCooldown
	// DecisionSuppressRateLimit means the global window is full.
	DecisionSuppressRateLimit
)

func (d Decision) String() string {
	switch d {
	case DecisionAdmit:
		return "admit"
	case DecisionSuppressCooldown:
		return "cooldown"
	case DecisionSuppressRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// Verdict is returned by Admit.
type Verdict struct {
	Decision Decision
	// ExistingAlertID is the alert holding the cooldown when suppressed by it.
	ExistingAlertID string
	// Escalation is set when admitting this alert crossed the user's
	// escalation threshold.
	Escalation *SecurityAlert
}

// Admitted reports whether the candidate alert should be stored.
func (v Verdict) Admitted() bool {
	return v.Decision == DecisionAdmit
}

// GovernorStats is a point-in-time view of governor state.
type GovernorStats struct {
	CooldownKeys    int `json:"cooldown_keys"`
	RateWindowCount int `json:"rate_window_count"`
	TrackedUsers    int `json:"tracked_users"`
	EscalatedUsers  int `json:"escalated_users"`
}

// Governor decides whether candidate alerts are generated.
//
// Checks run in a fixed order:
//  1. critical alerts skip the cooldown and rate-limit checks and do not
//     consume rate-limit budget
//  2. an unexpired cooldown for the alert's key suppresses it
//  3. a full global rate window suppresses it
//  4. the alert is admitted and its cooldown key is set
//  5. admitted alerts of medium severity or above count toward the affected
//     user's escalation threshold
//
// All windows run on the injected clock. A single mutex serializes Admit so
// check-then-record is atomic.
type Governor struct {
	mu  sync.Mutex
	cfg GovernorConfig
	now func() time.Time

	cooldowns   *cache.LRU[string]
	rate        *cache.WindowStore
	escalations *cache.WindowStore
	escalated   *cache.LRU[time.Time]
}

// NewGovernor creates a governor. Zero fields take DefaultGovernorConfig values.
func NewGovernor(cfg GovernorConfig) *Governor {
	def := DefaultGovernorConfig()
	if cfg.RateLimitCount <= 0 {
		cfg.RateLimitCount = def.RateLimitCount
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = def.RateLimitWindow
	}
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = def.EscalationThreshold
	}
	if cfg.EscalationWindow <= 0 {
		cfg.EscalationWindow = def.EscalationWindow
	}
	if cfg.MaxTrackedKeys <= 0 {
		cfg.MaxTrackedKeys = def.MaxTrackedKeys
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	clock := cache.WithClock(cfg.Clock)
	return &Governor{
		cfg:         cfg,
		now:         cfg.Clock,
		cooldowns:   cache.NewLRU[string](cfg.MaxTrackedKeys, DefaultCooldown, clock),
		rate:        cache.NewWindowStore(cfg.RateLimitWindow, 1, cfg.RateLimitCount),
		escalations: cache.NewWindowStore(cfg.EscalationWindow, cfg.MaxTrackedKeys, cfg.EscalationThreshold*2),
		escalated:   cache.NewLRU[time.Time](cfg.MaxTrackedKeys, cfg.EscalationWindow, clock),
	}
}

// Config returns the effective configuration.
func (g *Governor) Config() GovernorConfig {
	return g.cfg
}

// Admit applies cooldown, rate limit and escalation to a candidate alert.
// cooldown is the rule's cooldown. Suppressions are counted in metrics.
func (g *Governor) Admit(alert *SecurityAlert, cooldown time.Duration) Verdict {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	key := alert.CooldownKey()

	if !alert.IsCritical() {
		if existing, ok := g.cooldowns.Get(key); ok {
			metrics.RecordAlertSuppressed(DecisionSuppressCooldown.String())
			return Verdict{Decision: DecisionSuppressCooldown, ExistingAlertID: existing}
		}
		if g.rate.Count(rateKey, now) >= g.cfg.RateLimitCount {
			metrics.RecordAlertSuppressed(DecisionSuppressRateLimit.String())
			logging.Warn().
				Str("alert_type", alert.AlertType).
				Str("rule_id", alert.RuleID).
				Int("limit", g.cfg.RateLimitCount).
				Dur("window", g.cfg.RateLimitWindow).
				Msg("global alert rate limit reached, alert dropped")
			return Verdict{Decision: DecisionSuppressRateLimit}
		}
		g.rate.Add(rateKey, now)
	}

	g.cooldowns.AddWithTTL(key, alert.ID, cooldown)

	verdict := Verdict{Decision: DecisionAdmit}
	if !alert.Escalation && alert.AffectedUser != "" && alert.Severity.AtLeast(detection.SeverityMedium) {
		verdict.Escalation = g.trackEscalation(alert, now)
	}
	return verdict
}

// Release drops the cooldown held by alert, for alerts that were admitted but
// never stored. A newer alert holding the same key is left alone.
func (g *Governor) Release(alert *SecurityAlert) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := alert.CooldownKey()
	if holder, ok := g.cooldowns.Peek(key); !ok || holder != alert.ID {
		return false
	}
	return g.cooldowns.Remove(key)
}

// trackEscalation counts alert toward its user's threshold and returns the
// escalation alert when the threshold is crossed for the first time in the
// window.
func (g *Governor) trackEscalation(alert *SecurityAlert, now time.Time) *SecurityAlert {
	user := alert.AffectedUser
	count := g.escalations.Add(user, now)
	if count < g.cfg.EscalationThreshold {
		return nil
	}
	if g.escalated.Contains(user) {
		return nil
	}
	g.escalated.AddWithTTL(user, now, g.cfg.EscalationWindow)

	esc := NewSecurityAlert(AlertTypeEscalation, detection.SeverityCritical, EscalationRuleID, now)
	esc.Escalation = true
	esc.AffectedUser = user
	esc.AffectedIP = alert.AffectedIP
	esc.RiskScore = AlertRisk(alert.RiskScore)
	esc.TriggeringEvents = append(esc.TriggeringEvents, alert.Clone().TriggeringEvents...)
	esc.Title, esc.Description = render(AlertTypeEscalation, templateVars{
		rule:   EscalationRuleID,
		user:   user,
		ip:     alert.AffectedIP,
		count:  count,
		window: g.cfg.EscalationWindow.String(),
		risk:   esc.RiskScore,
	})
	metrics.RecordEscalation()
	logging.Warn().
		Str("alert_id", esc.ID).
		Str("user", user).
		Int("alerts", count).
		Dur("window", g.cfg.EscalationWindow).
		Msg("user escalated")
	return esc
}

// Sweep clears expired cooldowns, window entries and escalation marks.
func (g *Governor) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := g.cooldowns.CleanupExpired()
	removed += g.rate.Sweep(now)
	removed += g.escalations.Sweep(now)
	removed += g.escalated.CleanupExpired()
	return removed
}

// Stats returns current governor state sizes.
func (g *Governor) Stats() GovernorStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	return GovernorStats{
		CooldownKeys:    g.cooldowns.Len(),
		RateWindowCount: g.rate.Count(rateKey, g.now()),
		TrackedUsers:    g.escalations.Len(),
		EscalatedUsers:  g.escalated.Len(),
	}
}
