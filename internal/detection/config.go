// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"time"
)

// Multipliers scale the normalized score after aggregation. 1.0 is neutral.
type Multipliers struct {
	// OffHours applies when OFF_HOURS_ACCESS was detected.
	OffHours float64
	// SecurityPosture applies to every event and reflects the deployment's
	// current threat level.
	SecurityPosture float64
	// Network applies when the source is a proxy, Tor, or unresolved.
	Network float64
	// Roles maps the event's details["role"] to a multiplier.
	Roles map[string]float64
}

// Config tunes the analyzers and the aggregator.
type Config struct {
	MaxDistanceKm            float64
	ImpossibleTravelSpeedKmh float64

	BusinessHoursStart    int
	BusinessHoursEnd      int
	WeekendRiskMultiplier float64

	MinimumBaselineEvents int

	RiskThresholdSuspicious float64
	RiskThresholdHigh       float64
	RiskThresholdCritical   float64
	MaxRiskScore            float64

	DormantAfter      time.Duration
	VelocityWindow    time.Duration
	VelocityThreshold int
	FailureWindow     time.Duration
	FailureThreshold  int

	SuspiciousUserAgents []string
	Multipliers          Multipliers

	LocationTimeout    time.Duration
	MaxTrackedEntities int
}

// DefaultSuspiciousUserAgents lists automation and scanner tool markers.
var DefaultSuspiciousUserAgents = []string{
	"curl", "wget", "python-requests", "python-urllib", "go-http-client",
	"sqlmap", "nikto", "nmap", "masscan", "zgrab", "hydra",
	"headless", "phantomjs", "selenium", "puppeteer", "scrapy",
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxDistanceKm:            1000,
		ImpossibleTravelSpeedKmh: 900,
		BusinessHoursStart:       8,
		BusinessHoursEnd:         18,
		WeekendRiskMultiplier:    1.5,
		MinimumBaselineEvents:    10,
		RiskThresholdSuspicious:  40,
		RiskThresholdHigh:        60,
		RiskThresholdCritical:    80,
		MaxRiskScore:             100,
		DormantAfter:             90 * 24 * time.Hour,
		VelocityWindow:           time.Hour,
		VelocityThreshold:        50,
		FailureWindow:            5 * time.Minute,
		FailureThreshold:         3,
		SuspiciousUserAgents:     append([]string(nil), DefaultSuspiciousUserAgents...),
		Multipliers: Multipliers{
			OffHours:        1.0,
			SecurityPosture: 1.0,
			Network:         1.0,
			Roles:           map[string]float64{},
		},
		LocationTimeout:    500 * time.Millisecond,
		MaxTrackedEntities: 100000,
	}
}

// withDefaults fills zero values so a partially populated Config is usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxDistanceKm <= 0 {
		c.MaxDistanceKm = d.MaxDistanceKm
	}
	if c.ImpossibleTravelSpeedKmh <= 0 {
		c.ImpossibleTravelSpeedKmh = d.ImpossibleTravelSpeedKmh
	}
	if c.BusinessHoursStart == 0 && c.BusinessHoursEnd == 0 {
		c.BusinessHoursStart, c.BusinessHoursEnd = d.BusinessHoursStart, d.BusinessHoursEnd
	}
	if c.WeekendRiskMultiplier <= 0 {
		c.WeekendRiskMultiplier = d.WeekendRiskMultiplier
	}
	if c.MinimumBaselineEvents <= 0 {
		c.MinimumBaselineEvents = d.MinimumBaselineEvents
	}
	if c.RiskThresholdSuspicious <= 0 {
		c.RiskThresholdSuspicious = d.RiskThresholdSuspicious
	}
	if c.RiskThresholdHigh <= 0 {
		c.RiskThresholdHigh = d.RiskThresholdHigh
	}
	if c.RiskThresholdCritical <= 0 {
		c.RiskThresholdCritical = d.RiskThresholdCritical
	}
	if c.MaxRiskScore <= 0 {
		c.MaxRiskScore = d.MaxRiskScore
	}
	if c.DormantAfter <= 0 {
		c.DormantAfter = d.DormantAfter
	}
	if c.VelocityWindow <= 0 {
		c.VelocityWindow = d.VelocityWindow
	}
	if c.VelocityThreshold <= 0 {
		c.VelocityThreshold = d.VelocityThreshold
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = d.FailureWindow
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuspiciousUserAgents == nil {
		c.SuspiciousUserAgents = d.SuspiciousUserAgents
	}
	if c.Multipliers.OffHours <= 0 {
		c.Multipliers.OffHours = 1.0
	}
	if c.Multipliers.SecurityPosture <= 0 {
		c.Multipliers.SecurityPosture = 1.0
	}
	if c.Multipliers.Network <= 0 {
		c.Multipliers.Network = 1.0
	}
	if c.LocationTimeout <= 0 {
		c.LocationTimeout = d.LocationTimeout
	}
	if c.MaxTrackedEntities <= 0 {
		c.MaxTrackedEntities = d.MaxTrackedEntities
	}
	return c
}

// Level buckets a score using the configured thresholds.
func (c Config) Level(score float64) RiskLevel {
	switch {
	case score >= c.RiskThresholdCritical:
		return RiskCritical
	case score >= c.RiskThresholdHigh:
		return RiskHigh
	case score >= c.RiskThresholdSuspicious:
		return RiskMedium
	default:
		return RiskLow
	}
}
