// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"errors"

	"github.com/tomtom215/riskguard/internal/alerting"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/pipeline"
	"github.com/tomtom215/riskguard/internal/validation"
)

// ErrEngineRequired is returned by NewRouter without an engine.
var ErrEngineRequired = errors.New("api: engine is required")

// writeServiceError maps pipeline and alerting errors to status codes.
func writeServiceError(rw *ResponseWriter, err error) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
	case errors.Is(err, alerting.ErrNotFound):
		rw.NotFound(err.Error())
	case errors.Is(err, alerting.ErrConflict):
		rw.Conflict(err.Error())
	case errors.Is(err, pipeline.ErrQueueFull):
		rw.ServiceUnavailable(ErrCodeQueueFull, "event queue is full")
	case errors.Is(err, pipeline.ErrNotRunning):
		rw.ServiceUnavailable(ErrCodeServiceUnavailable, "pipeline is not running")
	default:
		logging.Error().Err(err).Str("path", rw.r.URL.Path).Msg("API request failed")
		rw.InternalError("internal error")
	}
}
