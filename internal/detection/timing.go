// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"context"
	"time"
)

const (
	deltaOffHours    = 10
	deltaUnusualHour = 20
	deltaUnusualDay  = 15

	unusualHourFrequency = 0.05
	unusualDayFrequency  = 0.10
)

// TimeAnalyzer flags access outside business hours and at hours or days the
// entity rarely uses. Times are evaluated in UTC.
type TimeAnalyzer struct {
	start, end        int
	weekendMultiplier float64
	minBaseline       int
}

// NewTimeAnalyzer creates a time analyzer.
func NewTimeAnalyzer(cfg Config) *TimeAnalyzer {
	cfg = cfg.withDefaults()
	return &TimeAnalyzer{
		start:             cfg.BusinessHoursStart,
		end:               cfg.BusinessHoursEnd,
		weekendMultiplier: cfg.WeekendRiskMultiplier,
		minBaseline:       cfg.MinimumBaselineEvents,
	}
}

// Name implements Analyzer.
func (a *TimeAnalyzer) Name() string { return "time" }

// Category implements Analyzer.
func (a *TimeAnalyzer) Category() Category { return CategoryTime }

// Analyze implements Analyzer.
func (a *TimeAnalyzer) Analyze(_ context.Context, in *Input) (Finding, error) {
	f := NewFinding(a.Name(), a.Category())

	t := in.EventTime.UTC()
	hour := t.Hour()
	weekday := t.Weekday()
	weekend := weekday == time.Saturday || weekday == time.Sunday

	if weekend || !a.withinBusinessHours(hour) {
		delta := float64(deltaOffHours)
		if weekend {
			delta *= a.weekendMultiplier
			f.Factors["weekend"] = true
		}
		f.Flag(ActivityOffHoursAccess, delta)
		f.Factors["hour"] = hour
	}

	p := in.Pattern
	total := 0
	for _, n := range p.HourHistogram {
		total += n
	}
	if total < a.minBaseline {
		return f, nil
	}

	hourFreq := float64(p.HourHistogram[hour]) / float64(total)
	if hourFreq < unusualHourFrequency {
		f.Flag(ActivityUnusualTimePattern, deltaUnusualHour)
		f.Factors["hour_frequency"] = roundTo2Decimals(hourFreq)
	}

	dayFreq := float64(p.DayHistogram[int(weekday)]) / float64(total)
	if dayFreq < unusualDayFrequency {
		f.Delta += deltaUnusualDay
		f.Factors["day_frequency"] = roundTo2Decimals(dayFreq)
	}
	return f, nil
}

// withinBusinessHours supports windows that wrap midnight (start > end).
func (a *TimeAnalyzer) withinBusinessHours(hour int) bool {
	if a.start <= a.end {
		return hour >= a.start && hour < a.end
	}
	return hour >= a.start || hour < a.end
}
