// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package services provides suture.Service wrappers for components that do not
implement Serve themselves.

The pipeline engine and the broker ingesters already implement
suture.Service and are added to the tree directly. This package covers the
rest:

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the blocking ListenAndServe into Serve
  - http.ErrServerClosed is treated as a clean stop

Periodic Tasks (PeriodicService):
  - Runs a TaskFunc on a ticker until the context is canceled
  - Used for BadgerDB value-log GC and geoip cache sweeps
  - Recovers task panics so one bad run does not trigger a restart
*/
package services
