// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func newTestDetector(t *testing.T, store BaselineStore, clock *fakeClock, locs ...LocationData) *Detector {
	t.Helper()
	if store == nil {
		store = NewMemoryBaselineStore(1000, 0)
	}
	return NewDetector(DefaultConfig(), store, newMockResolver(locs...), WithClock(clock.Now))
}

func TestDetector_KnownUserScoresLow(t *testing.T) {
	t.Parallel()

	store := NewMemoryBaselineStore(1000, 0)
	if err := store.SavePattern(context.Background(), "user:alice", establishedPattern("user:alice", locNYC, testNow)); err != nil {
		t.Fatalf("SavePattern: %v", err)
	}
	det := newTestDetector(t, store, newFakeClock(testNow), locNYC)

	result, err := det.Analyze(context.Background(), newTestEvent("evt-1", "alice", locNYC, testNow))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if result.Risk.Score >= 30 {
		t.Errorf("score = %v, want < 30 (activities %v)", result.Risk.Score, result.DetectedActivities)
	}
	if result.IsSuspicious {
		t.Error("known user at typical time should not be suspicious")
	}
	if len(result.DetectedActivities) != 0 {
		t.Errorf("unexpected activities: %v", result.DetectedActivities)
	}
	if result.HasReason(ReasonInsufficientBaseline) {
		t.Error("established baseline flagged as insufficient")
	}
}

func TestDetector_ImpossibleTravel(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(testNow)
	det := newTestDetector(t, nil, clock, locNYC, locLondon)
	ctx := context.Background()

	if _, err := det.Analyze(ctx, newTestEvent("evt-a", "bob", locNYC, clock.Now())); err != nil {
		t.Fatalf("first Analyze: %v", err)
	}

	clock.Advance(time.Hour)
	result, err := det.Analyze(ctx, newTestEvent("evt-b", "bob", locLondon, clock.Now()))
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}

	if !result.HasActivity(ActivityImpossibleTravel) {
		t.Fatalf("IMPOSSIBLE_TRAVEL not detected, got %v", result.DetectedActivities)
	}
	if !result.IsSuspicious {
		t.Error("impossible travel should be suspicious")
	}
	speed, ok := result.RiskFactors["travel_speed_kmh"].(float64)
	if !ok || speed < 900 {
		t.Errorf("travel_speed_kmh = %v, want > 900", result.RiskFactors["travel_speed_kmh"])
	}
}

func TestDetector_NewUserLowConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event func() *SecurityEvent
	}{
		{
			name:  "benign login",
			event: func() *SecurityEvent { return newTestEvent("e1", "new-1", locNYC, testNow) },
		},
		{
			name: "tor with scanner user agent at night",
			event: func() *SecurityEvent {
				ev := newTestEvent("e2", "new-2", locTor, testNow.Add(-11*time.Hour))
				ev.UserAgent = "sqlmap/1.7"
				return ev
			},
		},
		{
			name: "unresolvable ip",
			event: func() *SecurityEvent {
				ev := newTestEvent("e3", "new-3", locNYC, testNow)
				ev.IPAddress = "10.9.9.9"
				return ev
			},
		},
		{
			name: "extreme timestamp",
			event: func() *SecurityEvent {
				return newTestEvent("e4", "new-4", locNYC, testNow.AddDate(-3, 0, 0))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := newTestDetector(t, nil, newFakeClock(testNow), locNYC, locTor)
			result, err := det.Analyze(context.Background(), tt.event())
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if result.Risk.Confidence >= 0.3 {
				t.Errorf("confidence = %v, want < 0.3", result.Risk.Confidence)
			}
			if !result.HasReason(ReasonInsufficientBaseline) {
				t.Errorf("missing %s reason: %v", ReasonInsufficientBaseline, result.AnomalyReasons)
			}
		})
	}
}

func TestDetector_ScoreBounds(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Multipliers.SecurityPosture = 3.0
	cfg.Multipliers.Roles = map[string]float64{"admin": 4.0}
	clock := newFakeClock(testNow)
	det := NewDetector(cfg, NewMemoryBaselineStore(100, 0), newMockResolver(locNYC, locLondon, locTor), WithClock(clock.Now))

	locs := []LocationData{locNYC, locLondon, locTor, {IP: "10.0.0.1"}}
	agents := []string{testUserAgent, "curl/8.4.0", "", "python-requests/2.31"}
	for i := 0; i < 60; i++ {
		loc := locs[i%len(locs)]
		ev := newTestEvent(fmt.Sprintf("evt-%d", i), "mallory", loc, clock.Now())
		ev.UserAgent = agents[i%len(agents)]
		if i%3 == 0 {
			ev.EventType = EventLoginFailure
			ev.Details = map[string]interface{}{"role": "admin"}
		}
		if i%7 == 0 {
			ev.Timestamp = time.Time{}
		}

		result, err := det.Analyze(context.Background(), ev)
		if err != nil {
			t.Fatalf("Analyze %d: %v", i, err)
		}
		if result.Risk.Score < 0 || result.Risk.Score > 100 {
			t.Fatalf("event %d: score %v out of [0,100]", i, result.Risk.Score)
		}
		if result.Risk.Confidence < 0 || result.Risk.Confidence > 1 {
			t.Fatalf("event %d: confidence %v out of [0,1]", i, result.Risk.Confidence)
		}
		clock.Advance(10 * time.Minute)
	}
}

func TestDetector_TimestampEdgeCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		timestamp  time.Time
		wantReason string
		check      func(t *testing.T, r *AnalysisResult)
	}{
		{
			name:       "missing timestamp",
			timestamp:  time.Time{},
			wantReason: ReasonMalformedTimestamp,
			check: func(t *testing.T, r *AnalysisResult) {
				if r.Risk.Confidence > 0.8 {
					t.Errorf("confidence = %v, want <= 0.8", r.Risk.Confidence)
				}
				if !r.EventTime.Equal(testNow) {
					t.Errorf("event time = %v, want substituted now", r.EventTime)
				}
			},
		},
		{
			name:       "two years in the past",
			timestamp:  testNow.AddDate(-2, 0, 0),
			wantReason: ReasonExtremeTimestamp,
			check: func(t *testing.T, r *AnalysisResult) {
				if r.Risk.Score < 85 {
					t.Errorf("score = %v, want >= 85", r.Risk.Score)
				}
				if r.Risk.Confidence < 0.9 {
					t.Errorf("confidence = %v, want >= 0.9", r.Risk.Confidence)
				}
				if !r.IsSuspicious {
					t.Error("extreme timestamp should be suspicious")
				}
				if !r.HasActivity(ActivityExtremeTimestamp) {
					t.Errorf("missing EXTREME_TIMESTAMP activity: %v", r.DetectedActivities)
				}
			},
		},
		{
			name:       "centuries in the past",
			timestamp:  time.Date(1500, 6, 1, 12, 0, 0, 0, time.UTC),
			wantReason: ReasonExtremeTimestamp,
			check: func(t *testing.T, r *AnalysisResult) {
				if r.Risk.Score < 85 || !r.IsSuspicious {
					t.Errorf("score = %v suspicious = %v, want >= 85 and suspicious", r.Risk.Score, r.IsSuspicious)
				}
				if !r.EventTime.Equal(testNow) {
					t.Errorf("event time = %v, want substituted now", r.EventTime)
				}
			},
		},
		{
			name:       "far future",
			timestamp:  testNow.AddDate(5, 0, 0),
			wantReason: ReasonExtremeTimestamp,
			check: func(t *testing.T, r *AnalysisResult) {
				if r.Risk.Level != RiskCritical {
					t.Errorf("level = %v, want critical", r.Risk.Level)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryBaselineStore(10, 0)
			_ = store.SavePattern(context.Background(), "user:carol", establishedPattern("user:carol", locNYC, testNow))
			det := newTestDetector(t, store, newFakeClock(testNow), locNYC)

			result, err := det.Analyze(context.Background(), newTestEvent("evt", "carol", locNYC, tt.timestamp))
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if !result.HasReason(tt.wantReason) {
				t.Fatalf("reasons = %v, want %s", result.AnomalyReasons, tt.wantReason)
			}
			tt.check(t, result)
		})
	}
}

func TestDetector_NonFiniteTimestampIsMalformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`"NaN"`, `1e20`} {
		var ev SecurityEvent
		if err := json.Unmarshal([]byte(`{"id":"evt","user_id":"jane","ip_address":"198.51.100.10","timestamp":`+raw+`}`), &ev); err != nil {
			t.Fatalf("Unmarshal(%s): %v", raw, err)
		}
		store := NewMemoryBaselineStore(10, 0)
		det := newTestDetector(t, store, newFakeClock(testNow), locNYC)
		result, err := det.Analyze(context.Background(), &ev)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if !result.HasReason(ReasonMalformedTimestamp) {
			t.Errorf("timestamp %s: reasons = %v, want %s", raw, result.AnomalyReasons, ReasonMalformedTimestamp)
		}
		p, _ := store.GetPattern(context.Background(), "user:jane")
		if !p.LastActivity.Equal(testNow) {
			t.Errorf("timestamp %s: LastActivity = %v, want %v", raw, p.LastActivity, testNow)
		}
	}
}

func TestDetector_ExtremeTimestampDoesNotMoveBaselineClock(t *testing.T) {
	t.Parallel()

	store := NewMemoryBaselineStore(10, 0)
	ctx := context.Background()
	original := establishedPattern("user:dave", locNYC, testNow)
	_ = store.SavePattern(ctx, "user:dave", original)
	det := newTestDetector(t, store, newFakeClock(testNow), locNYC)

	if _, err := det.Analyze(ctx, newTestEvent("evt", "dave", locNYC, testNow.AddDate(3, 0, 0))); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	p, _ := store.GetPattern(ctx, "user:dave")
	if !p.LastActivity.Equal(original.LastActivity) {
		t.Errorf("LastActivity moved to %v, want %v", p.LastActivity, original.LastActivity)
	}
	if p.HourHistogram != original.HourHistogram {
		t.Error("hour histogram changed for extreme timestamp")
	}
	if p.TotalEvents != original.TotalEvents+1 {
		t.Errorf("TotalEvents = %d, want %d", p.TotalEvents, original.TotalEvents+1)
	}
}

func TestDetector_BaselineUnavailable(t *testing.T) {
	t.Parallel()

	det := newTestDetector(t, failingBaselineStore{}, newFakeClock(testNow), locNYC)
	result, err := det.Analyze(context.Background(), newTestEvent("evt", "erin", locNYC, testNow))
	if err != nil {
		t.Fatalf("Analyze returned error in degraded mode: %v", err)
	}
	for _, reason := range []string{ReasonBaselineUnavailable, ReasonInsufficientBaseline} {
		if !result.HasReason(reason) {
			t.Errorf("missing reason %s: %v", reason, result.AnomalyReasons)
		}
	}
	if result.HasReason(ReasonBaselineSaveFailed) {
		t.Error("degraded event should not attempt a baseline save")
	}
	if result.Risk.Confidence > 0.25 {
		t.Errorf("confidence = %v, want <= 0.25", result.Risk.Confidence)
	}
}

func TestDetector_TransientReadFailureKeepsHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := NewMemoryBaselineStore(10, 0)
	original := establishedPattern("user:ivy", locNYC, testNow)
	_ = inner.SavePattern(ctx, "user:ivy", original)
	store := &flakyBaselineStore{BaselineStore: inner, failReads: 1}
	det := newTestDetector(t, store, newFakeClock(testNow), locNYC)

	degraded, err := det.Analyze(ctx, newTestEvent("evt-1", "ivy", locNYC, testNow))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !degraded.HasReason(ReasonBaselineUnavailable) {
		t.Fatalf("reasons = %v, want %s", degraded.AnomalyReasons, ReasonBaselineUnavailable)
	}
	if store.saves != 0 {
		t.Errorf("saves = %d after failed read, want 0", store.saves)
	}

	p, _ := inner.GetPattern(ctx, "user:ivy")
	if p.TotalEvents != original.TotalEvents {
		t.Errorf("TotalEvents = %d, want %d", p.TotalEvents, original.TotalEvents)
	}

	next, err := det.Analyze(ctx, newTestEvent("evt-2", "ivy", locNYC, testNow))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if next.HasReason(ReasonInsufficientBaseline) {
		t.Errorf("history lost after transient failure: %v", next.AnomalyReasons)
	}
	p, _ = inner.GetPattern(ctx, "user:ivy")
	if p.TotalEvents != original.TotalEvents+1 {
		t.Errorf("TotalEvents = %d, want %d", p.TotalEvents, original.TotalEvents+1)
	}
}

func TestDetector_LocationFailureIsAnomaly(t *testing.T) {
	t.Parallel()

	resolver := newMockResolver()
	resolver.err = errors.New("upstream timeout")
	store := NewMemoryBaselineStore(10, 0)
	_ = store.SavePattern(context.Background(), "user:frank", establishedPattern("user:frank", locNYC, testNow))
	det := NewDetector(DefaultConfig(), store, resolver, WithClock(newFakeClock(testNow).Now))

	result, err := det.Analyze(context.Background(), newTestEvent("evt", "frank", locNYC, testNow))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !result.HasActivity(ActivityGeolocationAnomaly) {
		t.Errorf("GEOLOCATION_ANOMALY not flagged: %v", result.DetectedActivities)
	}
	if result.Location != nil {
		t.Errorf("location = %+v, want nil after failure", result.Location)
	}
}

type panickingAnalyzer struct{}

func (panickingAnalyzer) Name() string       { return "panicky" }
func (panickingAnalyzer) Category() Category { return CategoryBehavior }
func (panickingAnalyzer) Analyze(context.Context, *Input) (Finding, error) {
	panic("boom")
}

func TestDetector_AnalyzerFailureIsolated(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	det := NewDetector(cfg, nil, newMockResolver(locNYC),
		WithClock(newFakeClock(testNow).Now),
		WithAnalyzers(panickingAnalyzer{}, NewLocationAnalyzer(cfg)))

	result, err := det.Analyze(context.Background(), newTestEvent("evt", "gina", locNYC, testNow))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !result.HasReason(ReasonAnalyzerFailed) {
		t.Errorf("missing %s: %v", ReasonAnalyzerFailed, result.AnomalyReasons)
	}
	if !result.HasActivity(ActivityNewLocation) {
		t.Errorf("surviving analyzer output lost: %v", result.DetectedActivities)
	}
}

func TestDetector_NilEvent(t *testing.T) {
	t.Parallel()

	det := newTestDetector(t, nil, newFakeClock(testNow))
	if _, err := det.Analyze(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Errorf("err = %v, want ErrNilEvent", err)
	}
}

func TestDetector_RecommendationsFollowActivities(t *testing.T) {
	t.Parallel()

	det := newTestDetector(t, nil, newFakeClock(testNow), locTor)
	ev := newTestEvent("evt", "hank", locTor, testNow)
	result, err := det.Analyze(context.Background(), ev)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := activityRecommendations[ActivityTorAccess]
	found := false
	for _, r := range result.Recommendations {
		if r == want {
			found = true
		}
	}
	if !found {
		t.Errorf("recommendations %v missing %q", result.Recommendations, want)
	}
}
