// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"context"
	"math"
	"time"
)

// Location analyzer score contributions.
const (
	deltaUnresolvedLocation = 10
	deltaNewLocation        = 15
	deltaDistanceCap        = 30
	deltaImpossibleTravel   = 40
	deltaProxy              = 15
	deltaTor                = 25

	// travelLookback bounds how old the previous activity may be for a
	// speed check to be meaningful.
	travelLookback = 24 * time.Hour
	// minTravelInterval floors the elapsed time so simultaneous events
	// from distant places yield a finite, very high speed.
	minTravelInterval = time.Minute
)

// LocationAnalyzer flags unresolved, new, distant and physically unreachable
// locations, plus anonymizing networks.
type LocationAnalyzer struct {
	maxDistanceKm float64
	maxSpeedKmh   float64
}

// NewLocationAnalyzer creates a location analyzer.
func NewLocationAnalyzer(cfg Config) *LocationAnalyzer {
	cfg = cfg.withDefaults()
	return &LocationAnalyzer{
		maxDistanceKm: cfg.MaxDistanceKm,
		maxSpeedKmh:   cfg.ImpossibleTravelSpeedKmh,
	}
}

// Name implements Analyzer.
func (a *LocationAnalyzer) Name() string { return "location" }

// Category implements Analyzer.
func (a *LocationAnalyzer) Category() Category { return CategoryLocation }

// Analyze implements Analyzer.
func (a *LocationAnalyzer) Analyze(_ context.Context, in *Input) (Finding, error) {
	f := NewFinding(a.Name(), a.Category())

	loc := in.Location
	if in.LocationErr != nil || loc == nil || !loc.HasCoordinates() {
		f.Flag(ActivityGeolocationAnomaly, deltaUnresolvedLocation)
		f.Factors["location_unresolved"] = true
		if in.LocationErr != nil {
			f.Factors["location_error"] = in.LocationErr.Error()
		}
		return f, nil
	}

	f.Factors["location"] = formatLocation(loc.City, loc.Country)
	p := in.Pattern

	if !p.HasLocation(loc.Hash()) {
		f.Flag(ActivityNewLocation, deltaNewLocation)
	}

	minDistance := -1.0
	for _, known := range p.KnownLocations {
		d := haversineDistance(known.Latitude, known.Longitude, loc.Latitude, loc.Longitude)
		if minDistance < 0 || d < minDistance {
			minDistance = d
		}
	}
	if minDistance > a.maxDistanceKm {
		f.Flag(ActivityGeolocationAnomaly, math.Min(deltaDistanceCap, 10*minDistance/a.maxDistanceKm))
		f.Factors["min_known_distance_km"] = roundTo2Decimals(minDistance)
	}

	a.checkTravel(&f, in, minDistance)

	if loc.IsProxy {
		f.Flag(ActivityProxyAccess, deltaProxy)
	}
	if loc.IsTor {
		f.Flag(ActivityTorAccess, deltaTor)
	}
	return f, nil
}

func (a *LocationAnalyzer) checkTravel(f *Finding, in *Input, minDistance float64) {
	p := in.Pattern
	if p.LastActivity.IsZero() {
		return
	}
	elapsed := in.EventTime.Sub(p.LastActivity)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	if elapsed >= travelLookback {
		return
	}

	distance := minDistance
	if last := p.LastLocation; last != nil {
		distance = haversineDistance(last.Latitude, last.Longitude, in.Location.Latitude, in.Location.Longitude)
	}
	if distance <= 0 {
		return
	}

	if elapsed < minTravelInterval {
		elapsed = minTravelInterval
	}
	speed := distance / elapsed.Hours()
	if speed > a.maxSpeedKmh {
		f.Flag(ActivityImpossibleTravel, deltaImpossibleTravel)
		f.ForceSuspicious = true
		f.Factors["travel_distance_km"] = roundTo2Decimals(distance)
		f.Factors["travel_speed_kmh"] = roundTo2Decimals(speed)
		f.Factors["travel_elapsed_minutes"] = roundTo2Decimals(elapsed.Minutes())
	}
}
