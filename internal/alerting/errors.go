// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import "errors"

var (
	// ErrNotFound is returned when a rule, alert or channel does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an operation collides with existing state,
	// such as a duplicate rule ID or acknowledging an alert twice.
	ErrConflict = errors.New("conflict")
)
