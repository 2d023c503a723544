// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestUserPattern_Observe(t *testing.T) {
	t.Parallel()

	p := NewUserPattern("user:alice")
	loc := locNYC
	p.Observe(Observation{Timestamp: testNow, IPAddress: loc.IP, UserAgent: testUserAgent, Location: &loc}, testNow)

	if p.TotalEvents != 1 {
		t.Errorf("TotalEvents = %d, want 1", p.TotalEvents)
	}
	if p.HourHistogram[14] != 1 || p.DayHistogram[int(time.Wednesday)] != 1 {
		t.Errorf("histograms not updated: hour=%v day=%v", p.HourHistogram, p.DayHistogram)
	}
	if !p.HasLocation(loc.Hash()) {
		t.Error("location not recorded")
	}
	if !p.HasDevice(Fingerprint(testUserAgent)) {
		t.Error("device not recorded")
	}
	if _, ok := p.KnownCountries["US"]; !ok {
		t.Error("country not recorded")
	}
	if p.LastLocation == nil || p.LastLocation.City != "New York" {
		t.Errorf("LastLocation = %+v", p.LastLocation)
	}
	if !p.LastActivity.Equal(testNow) || !p.FirstSeen.Equal(testNow) {
		t.Errorf("LastActivity=%v FirstSeen=%v", p.LastActivity, p.FirstSeen)
	}
}

func TestUserPattern_OutOfOrderKeepsLatestActivity(t *testing.T) {
	t.Parallel()

	p := NewUserPattern("k")
	p.Observe(Observation{Timestamp: testNow}, testNow)
	p.Observe(Observation{Timestamp: testNow.Add(-time.Hour)}, testNow)

	if !p.LastActivity.Equal(testNow) {
		t.Errorf("LastActivity = %v, want %v", p.LastActivity, testNow)
	}
}

func TestUserPattern_BoundedSets(t *testing.T) {
	t.Parallel()

	p := NewUserPattern("k")
	for i := 0; i < MaxKnownIPs+50; i++ {
		ts := testNow.Add(time.Duration(i) * time.Second)
		p.Observe(Observation{
			Timestamp: ts,
			IPAddress: fmt.Sprintf("10.0.%d.%d", i/256, i%256),
			UserAgent: fmt.Sprintf("agent/%d", i),
			Location:  &LocationData{Latitude: float64(i%80) + 0.5, Longitude: float64(i) / 2, Country: fmt.Sprintf("C%d", i)},
		}, ts)
	}

	if got := len(p.KnownIPs); got != MaxKnownIPs {
		t.Errorf("KnownIPs = %d, want %d", got, MaxKnownIPs)
	}
	if got := len(p.KnownDevices); got != MaxKnownDevices {
		t.Errorf("KnownDevices = %d, want %d", got, MaxKnownDevices)
	}
	if got := len(p.KnownCountries); got != MaxKnownCountries {
		t.Errorf("KnownCountries = %d, want %d", got, MaxKnownCountries)
	}
	if got := len(p.KnownLocations); got > MaxKnownLocations {
		t.Errorf("KnownLocations = %d, want <= %d", got, MaxKnownLocations)
	}
	// The newest members survive eviction.
	if _, ok := p.KnownIPs["10.0.1.49"]; !ok {
		t.Error("most recent IP was evicted")
	}
	if _, ok := p.KnownIPs["10.0.0.0"]; ok {
		t.Error("oldest IP was not evicted")
	}
}

func TestUserPattern_CloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := establishedPattern("k", locNYC, testNow)
	clone := orig.Clone()

	l := locLondon
	clone.Observe(Observation{Timestamp: testNow, IPAddress: l.IP, UserAgent: "other", Location: &l}, testNow)
	for _, known := range clone.KnownLocations {
		known.Count = 999
	}

	if orig.TotalEvents != 20 {
		t.Errorf("original TotalEvents = %d, want 20", orig.TotalEvents)
	}
	if orig.HasLocation(locLondon.Hash()) {
		t.Error("clone location leaked into original")
	}
	if _, ok := orig.KnownIPs[locLondon.IP]; ok {
		t.Error("clone IP leaked into original")
	}
	for _, known := range orig.KnownLocations {
		if known.Count == 999 {
			t.Error("clone shares KnownLocation pointers with original")
		}
	}
	if orig.LastLocation.City != "New York" {
		t.Errorf("original LastLocation = %+v", orig.LastLocation)
	}
}

func TestUserPattern_JSONRoundTripNormalizes(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(establishedPattern("k", locNYC, testNow))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded UserPattern
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.TotalEvents != 20 || !decoded.HasLocation(locNYC.Hash()) {
		t.Errorf("decoded pattern lost data: %+v", decoded)
	}

	var empty UserPattern
	if err := json.Unmarshal([]byte(`{"entity_key":"k"}`), &empty); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	empty.Normalize().Observe(Observation{Timestamp: testNow, IPAddress: "1.2.3.4"}, testNow)
	if len(empty.KnownIPs) != 1 {
		t.Error("Normalize did not initialize maps")
	}
}

func TestLocationData_Hash(t *testing.T) {
	t.Parallel()

	a := LocationData{Latitude: 40.71281, Longitude: -74.00601}
	b := LocationData{Latitude: 40.7149, Longitude: -74.0081}
	c := LocationData{Latitude: 40.7251, Longitude: -74.0060}

	if a.Hash() != b.Hash() {
		t.Error("coordinates rounding to the same 2 decimals should share a hash")
	}
	if a.Hash() == c.Hash() {
		t.Error("distinct rounded coordinates should not share a hash")
	}
}

func TestHaversineKm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b    LocationData
		wantMin float64
		wantMax float64
	}{
		{"same point", locNYC, locNYC, 0, 0.001},
		{"new york to london", locNYC, locLondon, 5550, 5590},
		{"london to berlin", locLondon, locTor, 920, 940},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := HaversineKm(tt.a.Latitude, tt.a.Longitude, tt.b.Latitude, tt.b.Longitude)
			if d < tt.wantMin || d > tt.wantMax {
				t.Errorf("distance = %v, want [%v, %v]", d, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestMemoryBaselineStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryBaselineStore(2, time.Hour)

	p, err := store.GetPattern(ctx, "user:new")
	if err != nil || p == nil || p.TotalEvents != 0 {
		t.Fatalf("GetPattern for unknown key = %+v, %v", p, err)
	}

	saved := establishedPattern("user:a", locNYC, testNow)
	if err := store.SavePattern(ctx, "user:a", saved); err != nil {
		t.Fatalf("SavePattern: %v", err)
	}
	saved.TotalEvents = 0

	got, _ := store.GetPattern(ctx, "user:a")
	if got.TotalEvents != 20 {
		t.Errorf("store shares state with caller: TotalEvents = %d", got.TotalEvents)
	}

	_ = store.SavePattern(ctx, "user:b", NewUserPattern("user:b"))
	_ = store.SavePattern(ctx, "user:c", NewUserPattern("user:c"))
	if store.Len() != 2 {
		t.Errorf("Len = %d, want 2 (bounded)", store.Len())
	}
}
