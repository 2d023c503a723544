// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package api exposes the HTTP ingestion endpoint and the administrative
surface of the pipeline using the Chi router.

Routes:

	POST   /api/v1/events                      ingest one event or a batch (202, 503 when full)
	GET    /api/v1/rules                       list rules
	POST   /api/v1/rules                       add a rule
	DELETE /api/v1/rules/{id}                  remove a rule
	GET    /api/v1/alerts                      list alerts (filters as query parameters)
	GET    /api/v1/alerts/{id}                 get one alert
	POST   /api/v1/alerts/{id}/acknowledge     acknowledge an alert
	POST   /api/v1/alerts/{id}/resolve         resolve an alert
	GET    /api/v1/stats                       pipeline metrics
	GET    /healthz                            liveness and pipeline state
	GET    /metrics                            Prometheus metrics

Every JSON response uses the APIResponse envelope. Errors map to status codes
by kind: not found 404, conflict 409, validation 400, full queue 503.
*/
package api
