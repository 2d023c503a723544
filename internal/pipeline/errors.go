// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package pipeline

import "errors"

var (
	// ErrQueueFull is returned by Enqueue when the event's shard queue has no room.
	ErrQueueFull = errors.New("event queue full")
	// ErrNotRunning is returned by Enqueue before Start or after Stop.
	ErrNotRunning = errors.New("pipeline not running")
	// ErrAlreadyRunning is returned by Start on a running engine.
	ErrAlreadyRunning = errors.New("pipeline already running")
	// ErrNilEvent is returned by Enqueue for a nil event.
	ErrNilEvent = errors.New("nil event")
)

// Error kinds counted in Metrics.ErrorCounts.
const (
	ErrorKindQueueFull   = "queue_full"
	ErrorKindPanic       = "panic"
	ErrorKindAnalyze     = "analyze"
	ErrorKindAlertStore  = "alert_store"
	ErrorKindSuppression = "suppression"
	ErrorKindEventLog    = "event_log"
	ErrorKindDispatch    = "dispatch"
)
