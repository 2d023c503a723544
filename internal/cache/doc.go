// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package cache provides bounded, thread-safe in-memory structures used by the
detection and alerting pipeline.

# Overview

  - LRU: generic least-recently-used cache with per-entry TTL and an
    injectable clock. Backs the location cache, cooldown tracking, escalation
    marks and the in-memory baseline store.
  - WindowStore: per-key sliding log of timestamps. Backs velocity and
    repeated-failure counters, rule thresholds, the global alert rate limit
    and escalation counters.
  - Matcher: case-insensitive multi-pattern substring search (Aho-Corasick).
    Flags automation and scanner user agents in one pass over the header.

The LRU and WindowStore bound memory by key count, so the number of
distinct users and IP addresses seen never grows state without limit.

# Usage

	seen := cache.NewLRU[string](10000, 15*time.Minute)
	seen.Add("rule:brute-force|user:42|global", alertID)

	failures := cache.NewWindowStore(5*time.Minute, 100000, 64)
	if failures.Add("user:42", now) >= 3 {
	    // repeated failures
	}
*/
package cache
