// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/riskguard/internal/cache"
)

// ErrBaselineUnavailable is returned by baseline stores that cannot serve reads.
var ErrBaselineUnavailable = errors.New("baseline store unavailable")

// BaselineStore persists behavioral baselines. GetPattern returns a fresh
// empty pattern, not an error, when the key has no history.
type BaselineStore interface {
	GetPattern(ctx context.Context, key string) (*UserPattern, error)
	SavePattern(ctx context.Context, key string, pattern *UserPattern) error
}

// LocationResolver resolves an IP address to a location.
type LocationResolver interface {
	Resolve(ctx context.Context, ip string) (*LocationData, error)
}

// MemoryBaselineStore keeps baselines in a bounded LRU. Patterns are cloned on
// the way in and out so callers never share state with the store.
type MemoryBaselineStore struct {
	patterns *cache.LRU[*UserPattern]
}

// NewMemoryBaselineStore creates a store holding at most maxEntities
// baselines, each evicted after ttl without a save.
func NewMemoryBaselineStore(maxEntities int, ttl time.Duration) *MemoryBaselineStore {
	if ttl <= 0 {
		ttl = 180 * 24 * time.Hour
	}
	return &MemoryBaselineStore{patterns: cache.NewLRU[*UserPattern](maxEntities, ttl)}
}

// GetPattern implements BaselineStore.
func (s *MemoryBaselineStore) GetPattern(_ context.Context, key string) (*UserPattern, error) {
	if p, ok := s.patterns.Get(key); ok {
		return p.Clone(), nil
	}
	return NewUserPattern(key), nil
}

// SavePattern implements BaselineStore.
func (s *MemoryBaselineStore) SavePattern(_ context.Context, key string, pattern *UserPattern) error {
	s.patterns.Add(key, pattern.Clone())
	return nil
}

// Len returns the number of stored baselines.
func (s *MemoryBaselineStore) Len() int {
	return s.patterns.Len()
}

// Sweep drops expired baselines.
func (s *MemoryBaselineStore) Sweep() int {
	return s.patterns.CleanupExpired()
}
