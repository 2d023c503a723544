// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/riskguard/internal/detection"
)

var testNow = time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)

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

func newEvent(id string, eventType detection.EventType, user, ip string) *detection.SecurityEvent {
	return &detection.SecurityEvent{
		ID:        id,
		EventType: eventType,
		Severity:  detection.SeverityMedium,
		UserID:    user,
		IPAddress: ip,
		Timestamp: testNow,
	}
}

func newResult(score float64, suspicious bool, activities ...detection.ActivityType) *detection.AnalysisResult {
	r := detection.NewAnalysisResult("ev", "user:test")
	r.Risk.Score = score
	r.IsSuspicious = suspicious
	r.DetectedActivities = append(r.DetectedActivities, activities...)
	return r
}

func newAlert(ruleID string, severity detection.Severity, user, ip string) *SecurityAlert {
	a := NewSecurityAlert("test_alert", severity, ruleID, testNow)
	a.AffectedUser = user
	a.AffectedIP = ip
	return a
}

// mockChannel fails its first failFirst sends.
type mockChannel struct {
	name      string
	enabled   bool
	failFirst int32

	calls    atomic.Int32
	mu       sync.Mutex
	received []string
}

func newMockChannel(name string) *mockChannel {
	return &mockChannel{name: name, enabled: true}
}

func (m *mockChannel) Name() string  { return m.name }
func (m *mockChannel) Enabled() bool { return m.enabled }

func (m *mockChannel) Send(_ context.Context, alert *SecurityAlert) error {
	if n := m.calls.Add(1); n <= m.failFirst {
		return errors.New("channel unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, alert.ID)
	return nil
}

func (m *mockChannel) Received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.received...)
}

// recordingSleep captures backoff durations without waiting.
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}
