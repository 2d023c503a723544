// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"context"
	"math"
	"time"

	"github.com/tomtom215/riskguard/internal/cache"
)

const (
	deltaDormantCap       = 30
	deltaVelocity         = 20
	deltaRepeatedFailures = 15
)

// BehaviorAnalyzer detects dormant account reactivation, event bursts and
// repeated failures. Its sliding windows are keyed by entity and bounded by
// MaxTrackedEntities.
type BehaviorAnalyzer struct {
	dormantAfter      float64
	velocityThreshold int
	failureThreshold  int

	velocity *cache.WindowStore
	failures *cache.WindowStore
}

// NewBehaviorAnalyzer creates a behavior analyzer.
func NewBehaviorAnalyzer(cfg Config) *BehaviorAnalyzer {
	cfg = cfg.withDefaults()
	perKey := cfg.VelocityThreshold * 2
	return &BehaviorAnalyzer{
		dormantAfter:      cfg.DormantAfter.Hours(),
		velocityThreshold: cfg.VelocityThreshold,
		failureThreshold:  cfg.FailureThreshold,
		velocity:          cache.NewWindowStore(cfg.VelocityWindow, cfg.MaxTrackedEntities, perKey),
		failures:          cache.NewWindowStore(cfg.FailureWindow, cfg.MaxTrackedEntities, cfg.FailureThreshold*4),
	}
}

// Name implements Analyzer.
func (a *BehaviorAnalyzer) Name() string { return "behavior" }

// Category implements Analyzer.
func (a *BehaviorAnalyzer) Category() Category { return CategoryBehavior }

// Analyze implements Analyzer. Counts include the event under analysis.
func (a *BehaviorAnalyzer) Analyze(_ context.Context, in *Input) (Finding, error) {
	f := NewFinding(a.Name(), a.Category())

	p := in.Pattern
	if !p.LastActivity.IsZero() {
		inactive := in.EventTime.Sub(p.LastActivity).Hours()
		if inactive > a.dormantAfter {
			f.Flag(ActivityDormantAccount, math.Min(deltaDormantCap, 10*inactive/a.dormantAfter))
			f.Factors["inactive_days"] = roundTo2Decimals(inactive / 24)
		}
	}

	if in.EntityKey == "" {
		return f, nil
	}

	if n := a.velocity.Count(in.EntityKey, in.Now) + 1; n > a.velocityThreshold {
		f.Flag(ActivityVelocityAnomaly, deltaVelocity)
		f.Factors["events_in_window"] = n
	}

	if in.Event.EventType.IsFailure() {
		if n := a.failures.Count(in.EntityKey, in.Now) + 1; n >= a.failureThreshold {
			f.Flag(ActivityRepeatedFailures, deltaRepeatedFailures)
			f.Factors["failures_in_window"] = n
		}
	}
	return f, nil
}

// Record implements Recorder.
func (a *BehaviorAnalyzer) Record(in *Input) {
	if in.EntityKey == "" {
		return
	}
	a.velocity.Add(in.EntityKey, in.Now)
	if in.Event.EventType.IsFailure() {
		a.failures.Add(in.EntityKey, in.Now)
	}
}

// Sweep drops expired window state and returns the number of keys removed.
func (a *BehaviorAnalyzer) Sweep(now time.Time) int {
	return a.velocity.Sweep(now) + a.failures.Sweep(now)
}
