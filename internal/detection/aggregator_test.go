// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"math"
	"testing"
)

func finding(cat Category, act ActivityType, delta float64) Finding {
	f := NewFinding(string(cat), cat)
	f.Flag(act, delta)
	return f
}

func TestAggregator_Aggregate(t *testing.T) {
	t.Parallel()

	loc := locNYC
	in := &Input{Event: &SecurityEvent{}, Location: &loc}

	tests := []struct {
		name           string
		findings       []Finding
		wantScore      float64
		wantConfidence float64
		wantLevel      RiskLevel
		wantSuspicious bool
	}{
		{
			name:           "no findings",
			findings:       nil,
			wantScore:      0,
			wantConfidence: 0.5,
			wantLevel:      RiskLow,
		},
		{
			name: "empty findings do not add confidence",
			findings: []Finding{
				NewFinding("location", CategoryLocation),
				NewFinding("time", CategoryTime),
			},
			wantScore:      0,
			wantConfidence: 0.5,
			wantLevel:      RiskLow,
		},
		{
			name:           "single category",
			findings:       []Finding{finding(CategoryLocation, ActivityNewLocation, 15)},
			wantScore:      15,
			wantConfidence: 0.6,
			wantLevel:      RiskLow,
		},
		{
			name: "two categories add five",
			findings: []Finding{
				finding(CategoryLocation, ActivityNewLocation, 15),
				finding(CategoryDevice, ActivityNewUserAgent, 10),
			},
			wantScore:      30,
			wantConfidence: 0.7,
			wantLevel:      RiskLow,
		},
		{
			name: "untagged evidence is not a category",
			findings: []Finding{
				finding(CategoryLocation, ActivityNewLocation, 15),
				func() Finding {
					f := NewFinding("time", CategoryTime)
					f.Delta = 15
					f.Factors["rare_day"] = true
					return f
				}(),
			},
			wantScore:      30,
			wantConfidence: 0.7,
			wantLevel:      RiskLow,
		},
		{
			name: "three categories add eleven",
			findings: []Finding{
				finding(CategoryLocation, ActivityNewLocation, 15),
				finding(CategoryDevice, ActivityNewUserAgent, 10),
				finding(CategoryTime, ActivityOffHoursAccess, 10),
			},
			wantScore:      46,
			wantConfidence: 0.8,
			wantLevel:      RiskMedium,
			wantSuspicious: true,
		},
		{
			name: "clamped at max",
			findings: []Finding{
				finding(CategoryLocation, ActivityImpossibleTravel, 85),
				finding(CategoryDevice, ActivitySuspiciousUserAgent, 60),
				finding(CategoryBehavior, ActivityVelocityAnomaly, 20),
				finding(CategoryTime, ActivityOffHoursAccess, 15),
			},
			wantScore:      100,
			wantConfidence: 0.9,
			wantLevel:      RiskCritical,
			wantSuspicious: true,
		},
	}

	agg := NewAggregator(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := agg.Aggregate(tt.findings, in)
			if math.Abs(got.Risk.Score-tt.wantScore) > 0.001 {
				t.Errorf("score = %v, want %v", got.Risk.Score, tt.wantScore)
			}
			if math.Abs(got.Risk.Confidence-tt.wantConfidence) > 0.001 {
				t.Errorf("confidence = %v, want %v", got.Risk.Confidence, tt.wantConfidence)
			}
			if got.Risk.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", got.Risk.Level, tt.wantLevel)
			}
			if got.IsSuspicious != tt.wantSuspicious {
				t.Errorf("suspicious = %v, want %v", got.IsSuspicious, tt.wantSuspicious)
			}
		})
	}
}

func TestAggregator_ForcedSuspicion(t *testing.T) {
	t.Parallel()

	f := finding(CategoryLocation, ActivityNewLocation, 5)
	f.ForceSuspicious = true
	got := NewAggregator(DefaultConfig()).Aggregate([]Finding{f}, &Input{Event: &SecurityEvent{}})
	if !got.IsSuspicious {
		t.Error("forced finding should make the result suspicious")
	}
}

func TestAggregator_Multipliers(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Multipliers.OffHours = 2.0
	cfg.Multipliers.Network = 1.5
	cfg.Multipliers.Roles = map[string]float64{"admin": 1.5}
	agg := NewAggregator(cfg)

	loc := locNYC
	tests := []struct {
		name      string
		findings  []Finding
		in        *Input
		wantScore float64
	}{
		{
			name:      "off-hours multiplier",
			findings:  []Finding{finding(CategoryTime, ActivityOffHoursAccess, 10)},
			in:        &Input{Event: &SecurityEvent{}, Location: &loc},
			wantScore: 20,
		},
		{
			name:      "network multiplier for unresolved location",
			findings:  []Finding{finding(CategoryLocation, ActivityGeolocationAnomaly, 10)},
			in:        &Input{Event: &SecurityEvent{}},
			wantScore: 15,
		},
		{
			name:      "role multiplier",
			findings:  []Finding{finding(CategoryLocation, ActivityNewLocation, 20)},
			in:        &Input{Event: &SecurityEvent{Details: map[string]interface{}{"role": "admin"}}, Location: &loc},
			wantScore: 30,
		},
		{
			name:      "unknown role is neutral",
			findings:  []Finding{finding(CategoryLocation, ActivityNewLocation, 20)},
			in:        &Input{Event: &SecurityEvent{Details: map[string]interface{}{"role": "viewer"}}, Location: &loc},
			wantScore: 20,
		},
		{
			name:      "multiplied score is reclamped",
			findings:  []Finding{finding(CategoryTime, ActivityOffHoursAccess, 80)},
			in:        &Input{Event: &SecurityEvent{}, Location: &loc},
			wantScore: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := agg.Aggregate(tt.findings, tt.in)
			if math.Abs(got.Risk.Score-tt.wantScore) > 0.001 {
				t.Errorf("score = %v, want %v", got.Risk.Score, tt.wantScore)
			}
		})
	}
}

func TestAggregator_FinalizeBaselineCap(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(DefaultConfig())
	tests := []struct {
		name    string
		samples int
		reasons []string
		wantMax float64
	}{
		{name: "zero history", samples: 0, wantMax: 0.25},
		{name: "some history", samples: 4, wantMax: 0.3},
		{name: "cap beats extreme override", samples: 0, reasons: []string{ReasonExtremeTimestamp}, wantMax: 0.25},
		{name: "established", samples: 50, wantMax: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewAnalysisResult("e", "k")
			for _, r := range tt.reasons {
				result.addReason(r)
			}
			a := Aggregation{Risk: RiskScore{Score: 50, Confidence: 0.9}}
			agg.Finalize(&a, result, tt.samples, 10)
			if a.Risk.Confidence > tt.wantMax {
				t.Errorf("confidence = %v, want <= %v", a.Risk.Confidence, tt.wantMax)
			}
			if got := result.HasReason(ReasonInsufficientBaseline); got != (tt.samples < 10) {
				t.Errorf("insufficient_baseline reason = %v", got)
			}
		})
	}
}

func TestConfig_Level(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{0, RiskLow},
		{39.99, RiskLow},
		{40, RiskMedium},
		{59, RiskMedium},
		{60, RiskHigh},
		{79.5, RiskHigh},
		{80, RiskCritical},
		{100, RiskCritical},
	}
	for _, tt := range tests {
		if got := cfg.Level(tt.score); got != tt.want {
			t.Errorf("Level(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}
