// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/riskguard/internal/detection"
)

// ProcessedEvent is the audit record written for every event the pipeline
// finishes.
type ProcessedEvent struct {
	Event       *detection.SecurityEvent  `json:"event"`
	Result      *detection.AnalysisResult `json:"result,omitempty"`
	AlertIDs    []string                  `json:"alert_ids"`
	Suppressed  int                       `json:"suppressed"`
	ProcessedAt time.Time                 `json:"processed_at"`
	DurationMs  float64                   `json:"duration_ms"`
	Error       string                    `json:"error,omitempty"`
}

// EventLog is the append-only processed-event history.
type EventLog interface {
	RecordEvent(ctx context.Context, rec *ProcessedEvent) error
}

// MemoryEventLog keeps the most recent records in a ring buffer.
type MemoryEventLog struct {
	mu    sync.RWMutex
	buf   []*ProcessedEvent
	next  int
	full  bool
	total int64
}

// NewMemoryEventLog creates a log holding capacity records.
func NewMemoryEventLog(capacity int) *MemoryEventLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryEventLog{buf: make([]*ProcessedEvent, capacity)}
}

// RecordEvent appends rec, overwriting the oldest record when full.
func (l *MemoryEventLog) RecordEvent(_ context.Context, rec *ProcessedEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.next] = rec
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	l.total++
	return nil
}

// Recent returns up to n records, newest first.
func (l *MemoryEventLog) Recent(n int) []*ProcessedEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = len(l.buf)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]*ProcessedEvent, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.next - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

// Total returns the number of records ever written.
func (l *MemoryEventLog) Total() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

var _ EventLog = (*MemoryEventLog)(nil)
