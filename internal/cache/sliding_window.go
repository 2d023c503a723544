// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package cache

import (
	"sort"
	"time"
)

// timeLog holds the timestamps recorded for one key, oldest first.
type timeLog struct {
	times []time.Time
}

// prune drops every timestamp at or before cutoff.
func (l *timeLog) prune(cutoff time.Time) {
	idx := sort.Search(len(l.times), func(i int) bool {
		return l.times[i].After(cutoff)
	})
	if idx > 0 {
		l.times = append(l.times[:0], l.times[idx:]...)
	}
}

// insert adds t keeping the log ordered. Out-of-order arrivals are common
// when events are replayed from a broker.
func (l *timeLog) insert(t time.Time) {
	n := len(l.times)
	if n == 0 || !t.Before(l.times[n-1]) {
		l.times = append(l.times, t)
		return
	}
	idx := sort.Search(n, func(i int) bool { return l.times[i].After(t) })
	l.times = append(l.times, time.Time{})
	copy(l.times[idx+1:], l.times[idx:])
	l.times[idx] = t
}

func (l *timeLog) newest() time.Time {
	if len(l.times) == 0 {
		return time.Time{}
	}
	return l.times[len(l.times)-1]
}

// WindowStore keeps a sliding log of timestamps per key.
//
// It is used for per-entity event counts (velocity, repeated failures,
// rule thresholds), the global alert rate limit and escalation tracking.
// Memory is bounded on two axes:
//   - keys live in an LRU of maxKeys entries that expire one window after
//     their newest timestamp
//   - each key retains at most maxPerKey timestamps (newest kept)
//
// All methods take the reference time explicitly so callers decide whether
// windows follow wall-clock or event time.
//
// Example usage:
//
//	store := NewWindowStore(5*time.Minute, 100000, 256)
//	n := store.Add("user:123", now)
//	if n >= threshold { ... }
type WindowStore struct {
	window    time.Duration
	maxPerKey int
	keys      *LRU[*timeLog]
}

// NewWindowStore creates a store for the given window duration.
func NewWindowStore(window time.Duration, maxKeys, maxPerKey int) *WindowStore {
	if window <= 0 {
		window = time.Minute
	}
	if maxPerKey <= 0 {
		maxPerKey = 1024
	}
	return &WindowStore{
		window:    window,
		maxPerKey: maxPerKey,
		keys:      NewLRU[*timeLog](maxKeys, window),
	}
}

// Window returns the configured window duration.
func (s *WindowStore) Window() time.Duration {
	return s.window
}

// Add records a timestamp for key and returns the number of timestamps
// inside the window ending at at, including the one just added.
func (s *WindowStore) Add(key string, at time.Time) int {
	c := s.keys
	c.mu.Lock()
	defer c.mu.Unlock()

	log, ok := c.getLocked(key, at)
	if !ok {
		log = &timeLog{}
	}
	log.prune(at.Add(-s.window))
	log.insert(at)
	if over := len(log.times) - s.maxPerKey; over > 0 {
		log.times = append(log.times[:0], log.times[over:]...)
	}
	c.addLocked(key, log, log.newest().Add(s.window))
	return len(log.times)
}

// Count returns the number of timestamps for key inside the window ending at at.
func (s *WindowStore) Count(key string, at time.Time) int {
	c := s.keys
	c.mu.Lock()
	defer c.mu.Unlock()

	log, ok := c.getLocked(key, at)
	if !ok {
		return 0
	}
	log.prune(at.Add(-s.window))
	if len(log.times) == 0 {
		if e, exists := c.items[key]; exists {
			c.removeEntry(e)
		}
		return 0
	}
	return len(log.times)
}

// Reset forgets all timestamps for key.
func (s *WindowStore) Reset(key string) {
	s.keys.Remove(key)
}

// Len returns the number of tracked keys.
func (s *WindowStore) Len() int {
	return s.keys.Len()
}

// Sweep prunes every key against the window ending at at and drops keys left
// empty. It returns the number of keys removed.
func (s *WindowStore) Sweep(at time.Time) int {
	c := s.keys
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := at.Add(-s.window)
	removed := 0
	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		entry.value.prune(cutoff)
		if len(entry.value.times) == 0 {
			c.removeEntry(entry)
			removed++
		}
		entry = prev
	}
	return removed
}
