// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package geoip

import (
	"context"
	"fmt"
	"net/netip"
	"sort"

	"github.com/tomtom215/riskguard/internal/detection"
)

// StaticEntry maps a CIDR block to a location.
type StaticEntry struct {
	CIDR      string  `koanf:"cidr" json:"cidr"`
	Country   string  `koanf:"country" json:"country"`
	City      string  `koanf:"city" json:"city"`
	Latitude  float64 `koanf:"latitude" json:"latitude"`
	Longitude float64 `koanf:"longitude" json:"longitude"`
	Proxy     bool    `koanf:"proxy" json:"proxy"`
	Tor       bool    `koanf:"tor" json:"tor"`
}

type staticRange struct {
	prefix netip.Prefix
	entry  StaticEntry
}

// StaticResolver resolves addresses from a fixed CIDR table using longest
// prefix match. It suits air-gapped deployments and tests.
type StaticResolver struct {
	ranges []staticRange
}

// NewStaticResolver builds a resolver from entries. Invalid CIDRs are rejected.
func NewStaticResolver(entries []StaticEntry) (*StaticResolver, error) {
	ranges := make([]staticRange, 0, len(entries))
	for _, e := range entries {
		prefix, err := netip.ParsePrefix(e.CIDR)
		if err != nil {
			return nil, fmt.Errorf("parse cidr %q: %w", e.CIDR, err)
		}
		ranges = append(ranges, staticRange{prefix: prefix.Masked(), entry: e})
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].prefix.Bits() > ranges[j].prefix.Bits()
	})
	return &StaticResolver{ranges: ranges}, nil
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(_ context.Context, ip string) (*detection.LocationData, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	addr = addr.Unmap()
	for _, rg := range r.ranges {
		if rg.prefix.Contains(addr) {
			e := rg.entry
			return &detection.LocationData{
				IP:        ip,
				Country:   e.Country,
				City:      e.City,
				Latitude:  e.Latitude,
				Longitude: e.Longitude,
				IsProxy:   e.Proxy,
				IsTor:     e.Tor,
			}, nil
		}
	}
	return nil, ErrLocationNotFound
}

// Len returns the number of configured ranges.
func (r *StaticResolver) Len() int {
	return len(r.ranges)
}
