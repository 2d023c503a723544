// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package detection scores security events against per-entity behavioral
baselines.

# Overview

For each event the Detector:

 1. Normalizes the timestamp (missing and extreme values are flagged)
 2. Loads the entity's UserPattern from a BaselineStore
 3. Resolves the source IP through a LocationResolver with a timeout
 4. Runs the analyzers concurrently over a read-only Input
 5. Aggregates their findings into a bounded RiskScore
 6. Records analyzer window state and saves the updated baseline

# Analyzers

  - LocationAnalyzer: unresolved, new and distant locations, impossible
    travel (haversine distance over elapsed time), proxy and Tor sources
  - TimeAnalyzer: off-hours and weekend access, rare hours and days
  - DeviceAnalyzer: new user agent fingerprints, automation tooling,
    fingerprint rotation
  - BehaviorAnalyzer: dormant account reactivation, event velocity,
    repeated failures

Custom analyzers implement Analyzer and are installed with WithAnalyzers.
Analyzers that keep their own state also implement Recorder.

# Scoring

Deltas are summed and clamped to [0, MaxRiskScore]. Confidence starts at 0.5
and gains 0.1 for every analyzer that contributed. When two categories fire
the score gains 5, and three or more categories give 11. Contextual
multipliers then scale the normalized score. The insufficient-baseline
confidence cap is applied after every other adjustment.

# Entity Keys

Baselines and windows are keyed by "user:<id>", falling back to "ip:<addr>"
for anonymous events.

# Thread Safety

Detector.Analyze may be called concurrently for different entities. Calls for
the same entity must be serialized by the caller.
*/
package detection
