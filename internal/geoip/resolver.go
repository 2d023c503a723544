// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

// Package geoip resolves IP addresses to locations for the location analyzer.
//
// Resolvers compose: a StaticResolver or HTTPResolver does the lookup and a
// CachedResolver in front of it adds an LRU with TTL, negative caching for
// unknown addresses, a per-lookup timeout and a circuit breaker.
//
//	upstream := geoip.NewHTTPResolver(cfg.HTTPURL, 2*time.Second)
//	resolver := geoip.NewCachedResolver(upstream, geoip.CacheConfig{Size: 50000, TTL: time.Hour})
package geoip

import (
	"context"
	"errors"

	"github.com/tomtom215/riskguard/internal/detection"
)

var (
	// ErrLocationNotFound is returned when the address has no known location.
	ErrLocationNotFound = errors.New("location not found")
	// ErrInvalidIP is returned for strings that are not IP addresses.
	ErrInvalidIP = errors.New("invalid ip address")
)

// Resolver resolves an IP address to a location.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*detection.LocationData, error)
}

var (
	_ detection.LocationResolver = (Resolver)(nil)
	_ Resolver                   = (*StaticResolver)(nil)
	_ Resolver                   = (*HTTPResolver)(nil)
	_ Resolver                   = (*CachedResolver)(nil)
)

// isNegative reports whether err is a definitive answer worth caching.
func isNegative(err error) bool {
	return errors.Is(err, ErrLocationNotFound) || errors.Is(err, ErrInvalidIP)
}
