// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/riskguard/internal/alerting"
	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/ingest"
	"github.com/tomtom215/riskguard/internal/pipeline"
	"github.com/tomtom215/riskguard/internal/validation"
)

const httpTransport = "http"

// Engine is the pipeline surface the handlers use. *pipeline.Engine
// implements it.
type Engine interface {
	Enqueue(ev *detection.SecurityEvent) error
	IsRunning() bool
	GetMetrics() pipeline.Metrics

	AddRule(rule *alerting.AlertRule) error
	RemoveRule(id string) error
	ListRules() []*alerting.AlertRule

	GetAlert(ctx context.Context, id string) (*alerting.SecurityAlert, error)
	ListAlerts(ctx context.Context, filter alerting.AlertFilter) ([]*alerting.SecurityAlert, error)
	AcknowledgeAlert(ctx context.Context, id, by, notes string) error
	ResolveAlert(ctx context.Context, id string) error
}

// Handler serves the API endpoints.
type Handler struct {
	engine Engine
}

// NewHandler creates handlers backed by engine.
func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// decodeBody reads a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// IngestEvents handles POST /api/v1/events
func (h *Handler) IngestEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		if errBodyTooLarge(err) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
			return
		}
		rw.BadRequest("unreadable request body")
		return
	}
	events, err := ingest.Decode(body)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	out := ingest.EnqueueAll(h.engine, httpTransport, events)
	switch {
	case out.Retry():
		writeServiceError(rw, pipeline.ErrQueueFull)
	case out.Accepted == 0 && out.Err != nil:
		writeServiceError(rw, out.Err)
	default:
		rw.Accepted(IngestResponse{Accepted: out.Accepted, Dropped: out.Dropped})
	}
}

// ListRules handles GET /api/v1/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.engine.ListRules()
	if rules == nil {
		rules = []*alerting.AlertRule{}
	}
	NewResponseWriter(w, r).Success(rules)
}

// CreateRule handles POST /api/v1/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var rule alerting.AlertRule
	if err := decodeBody(w, r, &rule); err != nil {
		rw.BadRequest("invalid rule body: " + err.Error())
		return
	}
	if err := h.engine.AddRule(&rule); err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.Created(&rule)
}

// DeleteRule handles DELETE /api/v1/rules/{id}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.engine.RemoveRule(chi.URLParam(r, "id")); err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.NoContent()
}

// ListAlerts handles GET /api/v1/alerts
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	filter := parseAlertFilter(r.URL.Query())
	limit := filter.Limit
	// One extra row tells whether another page exists.
	filter.Limit = limit + 1

	alerts, err := h.engine.ListAlerts(r.Context(), filter)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	hasMore := len(alerts) > limit
	if hasMore {
		alerts = alerts[:limit]
	}
	rw.SuccessWithPagination(alerts, &PaginationMeta{
		Count:   len(alerts),
		Offset:  filter.Offset,
		Limit:   limit,
		HasMore: hasMore,
	})
}

// GetAlert handles GET /api/v1/alerts/{id}
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	alert, err := h.engine.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.Success(alert)
}

// AcknowledgeAlert handles POST /api/v1/alerts/{id}/acknowledge
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req AcknowledgeRequest
	if err := decodeBody(w, r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeServiceError(rw, verr)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.engine.AcknowledgeAlert(r.Context(), id, req.AcknowledgedBy, req.Notes); err != nil {
		writeServiceError(rw, err)
		return
	}
	h.writeAlert(rw, r, id)
}

// ResolveAlert handles POST /api/v1/alerts/{id}/resolve
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")
	if err := h.engine.ResolveAlert(r.Context(), id); err != nil {
		writeServiceError(rw, err)
		return
	}
	h.writeAlert(rw, r, id)
}

func (h *Handler) writeAlert(rw *ResponseWriter, r *http.Request, id string) {
	alert, err := h.engine.GetAlert(r.Context(), id)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.Success(alert)
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.engine.GetMetrics())
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status          string `json:"status"`
	PipelineRunning bool   `json:"pipeline_running"`
	QueueDepth      int    `json:"queue_depth"`
}

// Health handles GET /healthz. It answers 503 while the pipeline is stopped.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	m := h.engine.GetMetrics()
	resp := HealthResponse{Status: "ok", PipelineRunning: m.Running, QueueDepth: m.QueueDepth}
	rw := NewResponseWriter(w, r)
	if !m.Running {
		resp.Status = "degraded"
		rw.writeJSON(http.StatusServiceUnavailable, APIResponse{Success: false, Data: resp, Meta: rw.meta()})
		return
	}
	rw.Success(resp)
}

// errBodyTooLarge reports whether err came from MaxBytesReader.
func errBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
