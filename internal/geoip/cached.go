// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package geoip

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/riskguard/internal/cache"
	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/resilience"
)

// CacheConfig configures a CachedResolver.
type CacheConfig struct {
	Size        int
	TTL         time.Duration
	NegativeTTL time.Duration
	Timeout     time.Duration
	Breaker     resilience.BreakerConfig
	Clock       cache.Clock
}

type lookup struct {
	loc *detection.LocationData
	err error
}

// CachedResolver fronts another resolver with an LRU cache and a breaker.
// Definitive misses are cached for NegativeTTL. Transient failures are not
// cached, so the next lookup retries once the breaker allows it.
type CachedResolver struct {
	upstream    Resolver
	entries     *cache.LRU[lookup]
	negativeTTL time.Duration
	timeout     time.Duration
	breaker     *gobreaker.CircuitBreaker[interface{}]
}

// NewCachedResolver wraps upstream.
func NewCachedResolver(upstream Resolver, cfg CacheConfig) *CachedResolver {
	if cfg.Size <= 0 {
		cfg.Size = 50000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = resilience.DefaultBreakerConfig("geoip")
	}

	var opts []cache.LRUOption
	if cfg.Clock != nil {
		opts = append(opts, cache.WithClock(cfg.Clock))
	}
	return &CachedResolver{
		upstream:    upstream,
		entries:     cache.NewLRU[lookup](cfg.Size, cfg.TTL, opts...),
		negativeTTL: cfg.NegativeTTL,
		timeout:     cfg.Timeout,
		breaker:     resilience.NewCircuitBreaker(cfg.Breaker),
	}
}

// Resolve implements Resolver.
func (r *CachedResolver) Resolve(ctx context.Context, ip string) (*detection.LocationData, error) {
	if hit, ok := r.entries.Get(ip); ok {
		if hit.err != nil {
			metrics.RecordLocationLookup("negative")
			return nil, hit.err
		}
		metrics.RecordLocationLookup("hit")
		loc := *hit.loc
		return &loc, nil
	}
	metrics.RecordLocationLookup("miss")

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.breaker.Execute(func() (interface{}, error) {
		loc, err := r.upstream.Resolve(lookupCtx, ip)
		if isNegative(err) {
			// A definitive miss is a healthy upstream answer.
			return lookup{err: err}, nil
		}
		if err != nil {
			return nil, err
		}
		return lookup{loc: loc}, nil
	})
	if err != nil {
		if resilience.IsOpen(err) {
			metrics.RecordLocationLookup("breaker_open")
		} else {
			metrics.RecordLocationLookup("error")
		}
		return nil, fmt.Errorf("location lookup failed: %w", err)
	}

	res, ok := result.(lookup)
	if !ok {
		return nil, fmt.Errorf("location lookup: unexpected result type %T", result)
	}
	if res.err != nil {
		r.entries.AddWithTTL(ip, res, r.negativeTTL)
		return nil, res.err
	}
	if res.loc == nil {
		r.entries.AddWithTTL(ip, lookup{err: ErrLocationNotFound}, r.negativeTTL)
		return nil, ErrLocationNotFound
	}
	stored := *res.loc
	r.entries.Add(ip, lookup{loc: &stored})
	loc := *res.loc
	return &loc, nil
}

// Len returns the number of cached lookups.
func (r *CachedResolver) Len() int {
	return r.entries.Len()
}

// Sweep removes expired cache entries.
func (r *CachedResolver) Sweep() int {
	return r.entries.CleanupExpired()
}

// BreakerState returns the upstream breaker state.
func (r *CachedResolver) BreakerState() string {
	return r.breaker.State().String()
}
