// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"math"
)

const (
	baseConfidence        = 0.5
	confidencePerAnalyzer = 0.1

	compoundBonusThree = 11
	compoundBonusTwo   = 5
)

// Aggregation is the output of Aggregator.Aggregate.
type Aggregation struct {
	Risk         RiskScore
	IsSuspicious bool
	Activities   []ActivityType
	Factors      map[string]interface{}
	Categories   []Category
}

// Aggregator combines analyzer findings into one bounded risk score.
type Aggregator struct {
	cfg Config
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg.withDefaults()}
}

// Aggregate sums finding deltas, applies the compound bonus and the
// contextual multipliers, and classifies the result.
func (a *Aggregator) Aggregate(findings []Finding, in *Input) Aggregation {
	maxScore := a.cfg.MaxRiskScore
	agg := Aggregation{
		Activities: []ActivityType{},
		Factors:    make(map[string]interface{}),
		Categories: []Category{},
	}

	score := 0.0
	confidence := baseConfidence
	seenCategory := make(map[Category]bool)
	seenActivity := make(map[ActivityType]bool)
	forced := false

	for i := range findings {
		f := &findings[i]
		score += f.Delta
		for k, v := range f.Factors {
			agg.Factors[k] = v
		}
		for _, act := range f.Activities {
			if !seenActivity[act] {
				seenActivity[act] = true
				agg.Activities = append(agg.Activities, act)
			}
		}
		if f.ForceSuspicious {
			forced = true
		}
		if !f.Contributed() {
			continue
		}
		confidence += confidencePerAnalyzer
		// Evidence without an activity tag adds score but no category.
		if len(f.Activities) > 0 && !seenCategory[f.Category] {
			seenCategory[f.Category] = true
			agg.Categories = append(agg.Categories, f.Category)
		}
	}
	score = clamp(score, 0, maxScore)

	switch n := len(agg.Categories); {
	case n >= 3:
		score = clamp(score+compoundBonusThree, 0, maxScore)
		agg.Factors["compound_bonus"] = compoundBonusThree
	case n == 2:
		score = clamp(score+compoundBonusTwo, 0, maxScore)
		agg.Factors["compound_bonus"] = compoundBonusTwo
	}

	if m := a.multiplier(seenActivity, in); m != 1.0 {
		normalized := clamp(score/maxScore*m, 0, 1)
		score = normalized * maxScore
		agg.Factors["context_multiplier"] = roundTo2Decimals(m)
	}

	factors := make([]string, 0, len(agg.Activities))
	for _, act := range agg.Activities {
		factors = append(factors, string(act))
	}

	agg.Risk = RiskScore{
		Score:      roundTo2Decimals(score),
		Confidence: clamp(confidence, 0, 1),
		Level:      a.cfg.Level(score),
		Factors:    factors,
	}
	agg.IsSuspicious = forced || score >= a.cfg.RiskThresholdSuspicious
	return agg
}

// multiplier combines the contextual adjustments that apply to this event.
func (a *Aggregator) multiplier(activities map[ActivityType]bool, in *Input) float64 {
	m := a.cfg.Multipliers
	out := m.SecurityPosture
	if activities[ActivityOffHoursAccess] {
		out *= m.OffHours
	}
	if activities[ActivityProxyAccess] || activities[ActivityTorAccess] || in == nil || in.Location == nil {
		out *= m.Network
	}
	if in != nil && in.Event != nil && len(m.Roles) > 0 {
		if role, ok := in.Event.Details["role"].(string); ok {
			if rm, ok := m.Roles[role]; ok && rm > 0 {
				out *= rm
			}
		}
	}
	return out
}

// Finalize applies the degraded-mode overrides to a classified score.
// The insufficient-baseline cap is applied last so nothing can lift it.
func (a *Aggregator) Finalize(agg *Aggregation, result *AnalysisResult, samples int, minSamples int) {
	risk := &agg.Risk

	if result.HasReason(ReasonMalformedTimestamp) {
		risk.Confidence = math.Min(risk.Confidence, 0.8)
	}
	if result.HasReason(ReasonExtremeTimestamp) {
		risk.Score = math.Max(risk.Score, 85)
		risk.Confidence = math.Max(risk.Confidence, 0.9)
		agg.IsSuspicious = true
	}
	risk.Score = clamp(risk.Score, 0, a.cfg.MaxRiskScore)
	risk.Level = a.cfg.Level(risk.Score)

	if samples < minSamples {
		limit := 0.3
		if samples == 0 {
			limit = 0.25
		}
		risk.Confidence = math.Min(risk.Confidence, limit)
		result.addReason(ReasonInsufficientBaseline)
	}
	risk.Confidence = clamp(risk.Confidence, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
