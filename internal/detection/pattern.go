// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"time"
)

// Upper bounds for the per-entity sets kept in a UserPattern. When a set is
// full the least recently seen member is evicted.
const (
	MaxKnownLocations = 256
	MaxKnownCountries = 64
	MaxKnownIPs       = 256
	MaxKnownDevices   = 64
)

// KnownLocation is a location the entity has been seen at.
type KnownLocation struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Country   string    `json:"country,omitempty"`
	City      string    `json:"city,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Count     int       `json:"count"`
}

// UserPattern is the behavioral baseline for one entity.
type UserPattern struct {
	EntityKey      string                    `json:"entity_key"`
	KnownLocations map[string]*KnownLocation `json:"known_locations"`
	KnownCountries map[string]time.Time      `json:"known_countries"`
	KnownIPs       map[string]time.Time      `json:"known_ips"`
	KnownDevices   map[string]time.Time      `json:"known_devices"`
	HourHistogram  [24]int                   `json:"hour_histogram"`
	DayHistogram   [7]int                    `json:"day_histogram"`
	TotalEvents    int                       `json:"total_events"`
	FirstSeen      time.Time                 `json:"first_seen"`
	LastActivity   time.Time                 `json:"last_activity"`
	LastLocation   *KnownLocation            `json:"last_location,omitempty"`
	LastUpdated    time.Time                 `json:"last_updated"`
}

// NewUserPattern returns an empty baseline for key.
func NewUserPattern(key string) *UserPattern {
	return &UserPattern{
		EntityKey:      key,
		KnownLocations: make(map[string]*KnownLocation),
		KnownCountries: make(map[string]time.Time),
		KnownIPs:       make(map[string]time.Time),
		KnownDevices:   make(map[string]time.Time),
	}
}

// ensureMaps fills containers that are nil after decoding older records.
func (p *UserPattern) ensureMaps() {
	if p.KnownLocations == nil {
		p.KnownLocations = make(map[string]*KnownLocation)
	}
	if p.KnownCountries == nil {
		p.KnownCountries = make(map[string]time.Time)
	}
	if p.KnownIPs == nil {
		p.KnownIPs = make(map[string]time.Time)
	}
	if p.KnownDevices == nil {
		p.KnownDevices = make(map[string]time.Time)
	}
}

// Normalize prepares a decoded pattern for use.
func (p *UserPattern) Normalize() *UserPattern {
	p.ensureMaps()
	return p
}

// SampleCount is the number of events folded into the baseline.
func (p *UserPattern) SampleCount() int {
	return p.TotalEvents
}

// HasLocation reports whether the location hash is known.
func (p *UserPattern) HasLocation(hash string) bool {
	_, ok := p.KnownLocations[hash]
	return ok
}

// HasDevice reports whether the fingerprint is known.
func (p *UserPattern) HasDevice(fp string) bool {
	_, ok := p.KnownDevices[fp]
	return ok
}

// Observation is one event as folded into a baseline.
type Observation struct {
	Timestamp time.Time
	IPAddress string
	UserAgent string
	Location  *LocationData
	// SkipTime leaves the time histograms and last activity untouched.
	// Set for events whose timestamp cannot be trusted.
	SkipTime bool
}

// Observe folds an event into the baseline. now is the processing time.
func (p *UserPattern) Observe(obs Observation, now time.Time) {
	p.ensureMaps()
	ts := obs.Timestamp
	if obs.SkipTime || ts.IsZero() {
		ts = now
	}

	p.TotalEvents++
	if p.FirstSeen.IsZero() {
		p.FirstSeen = ts
	}
	p.LastUpdated = now

	if !obs.SkipTime {
		utc := ts.UTC()
		p.HourHistogram[utc.Hour()]++
		p.DayHistogram[int(utc.Weekday())]++
		if ts.After(p.LastActivity) {
			p.LastActivity = ts
		}
	}

	if obs.IPAddress != "" {
		p.KnownIPs[obs.IPAddress] = ts
		trimOldest(p.KnownIPs, MaxKnownIPs)
	}
	if obs.UserAgent != "" {
		p.KnownDevices[fingerprint(obs.UserAgent)] = ts
		trimOldest(p.KnownDevices, MaxKnownDevices)
	}

	loc := obs.Location
	if loc == nil || !loc.HasCoordinates() {
		return
	}
	if loc.Country != "" {
		p.KnownCountries[loc.Country] = ts
		trimOldest(p.KnownCountries, MaxKnownCountries)
	}
	hash := loc.Hash()
	known, ok := p.KnownLocations[hash]
	if !ok {
		known = &KnownLocation{
			Latitude:  roundTo2Decimals(loc.Latitude),
			Longitude: roundTo2Decimals(loc.Longitude),
			Country:   loc.Country,
			City:      loc.City,
			FirstSeen: ts,
		}
		p.KnownLocations[hash] = known
	}
	known.Count++
	if ts.After(known.LastSeen) {
		known.LastSeen = ts
	}
	trimOldestLocation(p.KnownLocations, MaxKnownLocations)

	if !obs.SkipTime {
		last := *known
		last.LastSeen = ts
		p.LastLocation = &last
	}
}

// Clone returns a deep copy.
func (p *UserPattern) Clone() *UserPattern {
	if p == nil {
		return nil
	}
	c := *p
	c.KnownLocations = make(map[string]*KnownLocation, len(p.KnownLocations))
	for k, v := range p.KnownLocations {
		loc := *v
		c.KnownLocations[k] = &loc
	}
	c.KnownCountries = copyTimes(p.KnownCountries)
	c.KnownIPs = copyTimes(p.KnownIPs)
	c.KnownDevices = copyTimes(p.KnownDevices)
	if p.LastLocation != nil {
		last := *p.LastLocation
		c.LastLocation = &last
	}
	return &c
}

func copyTimes(m map[string]time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func trimOldest(m map[string]time.Time, limit int) {
	for len(m) > limit {
		var oldestKey string
		var oldest time.Time
		first := true
		for k, v := range m {
			if first || v.Before(oldest) {
				oldestKey, oldest, first = k, v, false
			}
		}
		delete(m, oldestKey)
	}
}

func trimOldestLocation(m map[string]*KnownLocation, limit int) {
	for len(m) > limit {
		var oldestKey string
		var oldest time.Time
		first := true
		for k, v := range m {
			if first || v.LastSeen.Before(oldest) {
				oldestKey, oldest, first = k, v.LastSeen, false
			}
		}
		delete(m, oldestKey)
	}
}
