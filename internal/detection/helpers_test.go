// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"context"
	"errors"
	"sync"
	"time"
)

const testUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 Version/17.2 Safari/605.1.15"

var (
	// Wednesday, 14:00 UTC.
	testNow = time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)

	locNYC    = LocationData{IP: "198.51.100.10", Country: "US", City: "New York", Latitude: 40.7128, Longitude: -74.0060}
	locLondon = LocationData{IP: "203.0.113.20", Country: "GB", City: "London", Latitude: 51.5074, Longitude: -0.1278}
	locTor    = LocationData{IP: "192.0.2.66", Country: "DE", City: "Berlin", Latitude: 52.52, Longitude: 13.405, IsTor: true}
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockResolver resolves from a fixed table.
type mockResolver struct {
	locations map[string]LocationData
	err       error
}

func newMockResolver(locs ...LocationData) *mockResolver {
	m := &mockResolver{locations: make(map[string]LocationData)}
	for _, l := range locs {
		m.locations[l.IP] = l
	}
	return m
}

func (m *mockResolver) Resolve(_ context.Context, ip string) (*LocationData, error) {
	if m.err != nil {
		return nil, m.err
	}
	loc, ok := m.locations[ip]
	if !ok {
		return nil, errors.New("location not found")
	}
	return &loc, nil
}

// failingBaselineStore fails every read and write.
type failingBaselineStore struct{}

func (failingBaselineStore) GetPattern(context.Context, string) (*UserPattern, error) {
	return nil, ErrBaselineUnavailable
}

func (failingBaselineStore) SavePattern(context.Context, string, *UserPattern) error {
	return ErrBaselineUnavailable
}

// flakyBaselineStore wraps a store and fails the next failReads reads.
type flakyBaselineStore struct {
	BaselineStore
	mu        sync.Mutex
	failReads int
	saves     int
}

func (f *flakyBaselineStore) GetPattern(ctx context.Context, key string) (*UserPattern, error) {
	f.mu.Lock()
	if f.failReads > 0 {
		f.failReads--
		f.mu.Unlock()
		return nil, ErrBaselineUnavailable
	}
	f.mu.Unlock()
	return f.BaselineStore.GetPattern(ctx, key)
}

func (f *flakyBaselineStore) SavePattern(ctx context.Context, key string, p *UserPattern) error {
	f.mu.Lock()
	f.saves++
	f.mu.Unlock()
	return f.BaselineStore.SavePattern(ctx, key, p)
}

// establishedPattern returns a baseline of 20 events at 14:00 UTC on
// consecutive days ending nine days before now, all from loc with testUserAgent.
func establishedPattern(key string, loc LocationData, now time.Time) *UserPattern {
	p := NewUserPattern(key)
	for i := 0; i < 20; i++ {
		ts := now.Add(-time.Duration(28-i) * 24 * time.Hour)
		l := loc
		p.Observe(Observation{
			Timestamp: ts,
			IPAddress: loc.IP,
			UserAgent: testUserAgent,
			Location:  &l,
		}, ts)
	}
	return p
}

func newTestEvent(id, user string, loc LocationData, ts time.Time) *SecurityEvent {
	return &SecurityEvent{
		ID:        id,
		EventType: EventLoginSuccess,
		Severity:  SeverityLow,
		UserID:    user,
		IPAddress: loc.IP,
		UserAgent: testUserAgent,
		Timestamp: ts,
	}
}

func hasActivity(acts []ActivityType, want ActivityType) bool {
	for _, a := range acts {
		if a == want {
			return true
		}
	}
	return false
}
