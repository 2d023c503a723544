// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"context"

	"github.com/tomtom215/riskguard/internal/cache"
)

const (
	deltaNewDevice        = 10
	deltaSuspiciousAgent  = 35
	deltaUserAgentRotator = 25

	rotationMinDevices = 10
	rotationRatio      = 0.5
)

// DeviceAnalyzer fingerprints user agents and flags new devices, automation
// tooling and rapid device rotation.
type DeviceAnalyzer struct {
	agents *cache.Matcher
}

// NewDeviceAnalyzer creates a device analyzer. Suspicious patterns are
// matched as case-insensitive substrings.
func NewDeviceAnalyzer(cfg Config) *DeviceAnalyzer {
	cfg = cfg.withDefaults()
	return &DeviceAnalyzer{agents: cache.NewMatcher(cfg.SuspiciousUserAgents)}
}

// Name implements Analyzer.
func (a *DeviceAnalyzer) Name() string { return "device" }

// Category implements Analyzer.
func (a *DeviceAnalyzer) Category() Category { return CategoryDevice }

// Analyze implements Analyzer.
func (a *DeviceAnalyzer) Analyze(_ context.Context, in *Input) (Finding, error) {
	f := NewFinding(a.Name(), a.Category())

	ua := in.Event.UserAgent
	if ua == "" {
		f.Factors["user_agent_missing"] = true
		return f, nil
	}

	p := in.Pattern
	if !p.HasDevice(fingerprint(ua)) {
		f.Flag(ActivityNewUserAgent, deltaNewDevice)
	}

	if pattern, ok := a.agents.FindFirst(ua); ok {
		f.Flag(ActivitySuspiciousUserAgent, deltaSuspiciousAgent)
		f.Factors["matched_user_agent_pattern"] = pattern
	}

	known := len(p.KnownDevices)
	if known > rotationMinDevices && p.TotalEvents > 0 {
		ratio := float64(known) / float64(p.TotalEvents)
		if ratio > rotationRatio {
			f.Flag(ActivityUserAgentRotation, deltaUserAgentRotator)
			f.Factors["device_ratio"] = roundTo2Decimals(ratio)
		}
	}
	return f, nil
}
