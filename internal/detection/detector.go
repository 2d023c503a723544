// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
)

// extremeSkew is how far an event timestamp may sit from the processing
// clock, in either direction, before it is treated as hostile.
const extremeSkew = 365 * 24 * time.Hour

var (
	// ErrNilEvent is returned when Analyze is called without an event.
	ErrNilEvent = errors.New("nil security event")
	// ErrNoIPAddress marks events that cannot be located.
	ErrNoIPAddress = errors.New("event has no ip address")
	// ErrNoResolver marks a detector running without a location resolver.
	ErrNoResolver = errors.New("no location resolver configured")
)

// Detector runs the analyzers for one event, aggregates their findings and
// folds the event into the entity's baseline.
//
// Analyze is safe for concurrent use, but baseline updates for one entity
// must come from a single goroutine (the pipeline's shard worker) to avoid
// lost updates.
type Detector struct {
	cfg        Config
	baselines  BaselineStore
	resolver   LocationResolver
	analyzers  []Analyzer
	aggregator *Aggregator
	now        func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the processing clock.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// WithAnalyzers replaces the default analyzer set.
func WithAnalyzers(analyzers ...Analyzer) Option {
	return func(d *Detector) {
		d.analyzers = analyzers
	}
}

// NewDetector creates a detector with the location, time, device and behavior
// analyzers. A nil resolver makes every event an unresolved location.
func NewDetector(cfg Config, baselines BaselineStore, resolver LocationResolver, opts ...Option) *Detector {
	cfg = cfg.withDefaults()
	if baselines == nil {
		baselines = NewMemoryBaselineStore(cfg.MaxTrackedEntities, 0)
	}
	d := &Detector{
		cfg:        cfg,
		baselines:  baselines,
		resolver:   resolver,
		aggregator: NewAggregator(cfg),
		now:        time.Now,
		analyzers: []Analyzer{
			NewLocationAnalyzer(cfg),
			NewTimeAnalyzer(cfg),
			NewDeviceAnalyzer(cfg),
			NewBehaviorAnalyzer(cfg),
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the effective configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Analyze scores an event. Degraded inputs (bad timestamps, missing baseline,
// failed location lookup) are reflected in the result, never returned as errors.
func (d *Detector) Analyze(ctx context.Context, event *SecurityEvent) (*AnalysisResult, error) {
	if event == nil {
		return nil, ErrNilEvent
	}

	now := d.now()
	key := event.EntityKey()
	result := NewAnalysisResult(event.ID, key)
	result.AnalyzedAt = now

	in := &Input{
		Event:     event,
		EntityKey: key,
		Now:       now,
		EventTime: event.Timestamp,
	}
	extreme := d.normalizeTime(in, result)

	in.Pattern = d.loadPattern(ctx, key, result)
	in.Location, in.LocationErr = d.resolve(ctx, event.IPAddress)
	result.Location = in.Location
	result.EventTime = in.EventTime

	findings := d.runAnalyzers(ctx, in, result)
	agg := d.aggregator.Aggregate(findings, in)
	if extreme {
		agg.Activities = append(agg.Activities, ActivityExtremeTimestamp)
		agg.Risk.Factors = append(agg.Risk.Factors, string(ActivityExtremeTimestamp))
	}
	d.aggregator.Finalize(&agg, result, in.Pattern.SampleCount(), d.cfg.MinimumBaselineEvents)

	result.Risk = agg.Risk
	result.IsSuspicious = agg.IsSuspicious
	result.DetectedActivities = agg.Activities
	for k, v := range agg.Factors {
		result.RiskFactors[k] = v
	}
	result.Recommendations = Recommend(result.DetectedActivities, result.Risk.Level)

	d.commit(ctx, in, result, extreme)

	metrics.RecordRiskScore(result.Risk.Score)
	for _, act := range result.DetectedActivities {
		metrics.RecordActivity(string(act))
	}
	return result, nil
}

// normalizeTime substitutes the processing time for missing or extreme
// timestamps and reports whether the timestamp was extreme.
func (d *Detector) normalizeTime(in *Input, result *AnalysisResult) bool {
	if in.EventTime.IsZero() {
		in.EventTime = in.Now
		result.addReason(ReasonMalformedTimestamp)
		return false
	}
	// Bound comparisons, since Sub saturates for dates centuries away.
	if in.EventTime.Before(in.Now.Add(-extremeSkew)) || in.EventTime.After(in.Now.Add(extremeSkew)) {
		result.RiskFactors["original_timestamp"] = in.EventTime.UTC().Format(time.RFC3339)
		in.EventTime = in.Now
		result.addReason(ReasonExtremeTimestamp)
		return true
	}
	return false
}

func (d *Detector) loadPattern(ctx context.Context, key string, result *AnalysisResult) *UserPattern {
	if key == "" {
		return NewUserPattern(key)
	}
	p, err := d.baselines.GetPattern(ctx, key)
	if err != nil || p == nil {
		metrics.RecordBaselineError("get")
		logging.Warn().Err(err).Str("entity", key).Str("event_id", result.EventID).Msg("baseline unavailable, analyzing in degraded mode")
		result.addReason(ReasonBaselineUnavailable)
		return NewUserPattern(key)
	}
	return p.Normalize()
}

func (d *Detector) resolve(ctx context.Context, ip string) (*LocationData, error) {
	if ip == "" {
		return nil, ErrNoIPAddress
	}
	if d.resolver == nil {
		return nil, ErrNoResolver
	}
	lookupCtx, cancel := context.WithTimeout(ctx, d.cfg.LocationTimeout)
	defer cancel()

	loc, err := d.resolver.Resolve(lookupCtx, ip)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ip, err)
	}
	return loc, nil
}

// runAnalyzers runs every analyzer concurrently. A failing analyzer is
// counted and skipped.
func (d *Detector) runAnalyzers(ctx context.Context, in *Input, result *AnalysisResult) []Finding {
	findings := make([]Finding, len(d.analyzers))
	failed := make([]error, len(d.analyzers))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range d.analyzers {
		g.Go(func() error {
			f, err := safeAnalyze(gctx, a, in)
			if err != nil {
				failed[i] = err
				return nil
			}
			findings[i] = f
			return nil
		})
	}
	_ = g.Wait()

	out := findings[:0]
	for i, f := range findings {
		if failed[i] != nil {
			name := d.analyzers[i].Name()
			metrics.RecordAnalyzerError(name)
			logging.Warn().Err(failed[i]).Str("analyzer", name).Str("event_id", result.EventID).Msg("analyzer failed")
			result.addReason(ReasonAnalyzerFailed)
			continue
		}
		out = append(out, f)
	}
	return out
}

func safeAnalyze(ctx context.Context, a Analyzer, in *Input) (f Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer %s panicked: %v", a.Name(), r)
		}
	}()
	return a.Analyze(ctx, in)
}

// commit updates analyzer state and the baseline after aggregation.
func (d *Detector) commit(ctx context.Context, in *Input, result *AnalysisResult, extreme bool) {
	for _, a := range d.analyzers {
		if r, ok := a.(Recorder); ok {
			r.Record(in)
		}
	}
	if in.EntityKey == "" {
		return
	}
	// The pattern is a stand-in when the read failed. Saving it would
	// replace the stored history.
	if result.HasReason(ReasonBaselineUnavailable) {
		return
	}

	in.Pattern.Observe(Observation{
		Timestamp: in.EventTime,
		IPAddress: in.Event.IPAddress,
		UserAgent: in.Event.UserAgent,
		Location:  in.Location,
		SkipTime:  extreme,
	}, in.Now)

	if err := d.baselines.SavePattern(ctx, in.EntityKey, in.Pattern); err != nil {
		metrics.RecordBaselineError("save")
		logging.Warn().Err(err).Str("entity", in.EntityKey).Str("event_id", result.EventID).Msg("failed to save baseline")
		result.addReason(ReasonBaselineSaveFailed)
	}
}

// Sweep drops expired analyzer window state.
func (d *Detector) Sweep() int {
	now := d.now()
	removed := 0
	for _, a := range d.analyzers {
		if s, ok := a.(interface{ Sweep(time.Time) int }); ok {
			removed += s.Sweep(now)
		}
	}
	return removed
}
