// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"context"
	"time"
)

// Input is everything an analyzer sees for one event. Analyzers must treat
// it as read-only: they run concurrently over the same Input.
type Input struct {
	Event     *SecurityEvent
	EntityKey string
	Pattern   *UserPattern

	// EventTime is the normalized event timestamp.
	EventTime time.Time
	// Now is the processing time used for sliding windows.
	Now time.Time

	Location    *LocationData
	LocationErr error
}

// Analyzer inspects one event against its baseline.
type Analyzer interface {
	Name() string
	Category() Category
	Analyze(ctx context.Context, in *Input) (Finding, error)
}

// Recorder is implemented by analyzers that keep state of their own. Record
// runs after aggregation, on the goroutine that owns the entity.
type Recorder interface {
	Record(in *Input)
}
