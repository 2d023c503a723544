// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package storage

import "errors"

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store closed")
