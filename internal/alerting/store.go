// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/riskguard/internal/detection"
)

// AlertStore is the append-only alert history. Alerts are never deleted
// through it; state changes are recorded on the stored alert.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *SecurityAlert) error
	GetAlert(ctx context.Context, id string) (*SecurityAlert, error)
	// ListAlerts returns matching alerts, newest first.
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*SecurityAlert, error)
	AcknowledgeAlert(ctx context.Context, id, by, notes string, at time.Time) error
	ResolveAlert(ctx context.Context, id string, at time.Time) error
	RecordNotification(ctx context.Context, id, channel string) error
	// RecordSuppression counts a suppressed duplicate on the alert holding
	// the cooldown and keeps ev if the snapshot has room.
	RecordSuppression(ctx context.Context, id string, ev *detection.SecurityEvent, maxEvents int) error
}

// Acknowledge marks a as acknowledged. A second acknowledgement is a conflict.
func Acknowledge(a *SecurityAlert, by, notes string, at time.Time) error {
	if a.Acknowledged {
		return fmt.Errorf("alert %q already acknowledged: %w", a.ID, ErrConflict)
	}
	a.Acknowledged = true
	a.AcknowledgedBy = by
	a.AcknowledgementNotes = notes
	t := at
	a.AcknowledgedAt = &t
	return nil
}

// Resolve marks a as resolved. Resolving twice is a conflict.
func Resolve(a *SecurityAlert, at time.Time) error {
	if a.Resolved {
		return fmt.Errorf("alert %q already resolved: %w", a.ID, ErrConflict)
	}
	a.Resolved = true
	t := at
	a.ResolvedAt = &t
	return nil
}

// MarkNotified adds channel to a.NotificationsSent once.
func MarkNotified(a *SecurityAlert, channel string) {
	if !a.HasNotified(channel) {
		a.NotificationsSent = append(a.NotificationsSent, channel)
	}
}

// MarkSuppressed counts a suppressed duplicate on a.
func MarkSuppressed(a *SecurityAlert, ev *detection.SecurityEvent, maxEvents int) {
	a.SuppressedCount++
	a.appendEvent(ev, maxEvents)
}

// SortNewestFirst orders alerts by timestamp, newest first, breaking ties by ID.
func SortNewestFirst(alerts []*SecurityAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if !alerts[i].Timestamp.Equal(alerts[j].Timestamp) {
			return alerts[i].Timestamp.After(alerts[j].Timestamp)
		}
		return alerts[i].ID > alerts[j].ID
	})
}

// MemoryAlertStore keeps the most recent alerts in memory. When full, the
// oldest inserted alert is dropped.
type MemoryAlertStore struct {
	mu       sync.RWMutex
	capacity int
	alerts   map[string]*SecurityAlert
	order    []string
}

// NewMemoryAlertStore creates a store holding up to capacity alerts.
func NewMemoryAlertStore(capacity int) *MemoryAlertStore {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryAlertStore{
		capacity: capacity,
		alerts:   make(map[string]*SecurityAlert),
	}
}

// SaveAlert stores a copy of alert. Saving an existing ID is a conflict.
func (s *MemoryAlertStore) SaveAlert(_ context.Context, alert *SecurityAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[alert.ID]; exists {
		return fmt.Errorf("alert %q: %w", alert.ID, ErrConflict)
	}
	s.alerts[alert.ID] = alert.Clone()
	s.order = append(s.order, alert.ID)
	for len(s.order) > s.capacity {
		delete(s.alerts, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// GetAlert returns a copy of the alert.
func (s *MemoryAlertStore) GetAlert(_ context.Context, id string) (*SecurityAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %q: %w", id, ErrNotFound)
	}
	return a.Clone(), nil
}

// ListAlerts returns copies of matching alerts, newest first.
func (s *MemoryAlertStore) ListAlerts(_ context.Context, filter AlertFilter) ([]*SecurityAlert, error) {
	s.mu.RLock()
	matched := make([]*SecurityAlert, 0)
	for _, a := range s.alerts {
		if filter.Matches(a) {
			matched = append(matched, a.Clone())
		}
	}
	s.mu.RUnlock()

	SortNewestFirst(matched)
	return filter.Page(matched), nil
}

// AcknowledgeAlert records an acknowledgement.
func (s *MemoryAlertStore) AcknowledgeAlert(_ context.Context, id, by, notes string, at time.Time) error {
	return s.update(id, func(a *SecurityAlert) error {
		return Acknowledge(a, by, notes, at)
	})
}

// ResolveAlert records a resolution.
func (s *MemoryAlertStore) ResolveAlert(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(a *SecurityAlert) error {
		return Resolve(a, at)
	})
}

// RecordNotification records a successful delivery to channel.
func (s *MemoryAlertStore) RecordNotification(_ context.Context, id, channel string) error {
	return s.update(id, func(a *SecurityAlert) error {
		MarkNotified(a, channel)
		return nil
	})
}

// RecordSuppression counts a suppressed duplicate of alert id.
func (s *MemoryAlertStore) RecordSuppression(_ context.Context, id string, ev *detection.SecurityEvent, maxEvents int) error {
	return s.update(id, func(a *SecurityAlert) error {
		MarkSuppressed(a, ev, maxEvents)
		return nil
	})
}

// Len returns the number of stored alerts.
func (s *MemoryAlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

func (s *MemoryAlertStore) update(id string, fn func(*SecurityAlert) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return fmt.Errorf("alert %q: %w", id, ErrNotFound)
	}
	return fn(a)
}

var _ AlertStore = (*MemoryAlertStore)(nil)
