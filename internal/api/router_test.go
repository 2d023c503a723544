// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/riskguard/internal/alerting"
	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/pipeline"
)

var testNow = time.Date(2026, 3, 11, 14, 0, 0, 0, time.UTC)

// mockEngine backs the handlers with a real rule engine and alert store.
type mockEngine struct {
	mu         sync.Mutex
	running    bool
	enqueueErr error
	events     []*detection.SecurityEvent

	rules  *alerting.RuleEngine
	alerts *alerting.MemoryAlertStore
}

func newMockEngine(t *testing.T) *mockEngine {
	t.Helper()
	m := &mockEngine{
		running: true,
		rules:   alerting.NewRuleEngine(alerting.RuleEngineConfig{}),
		alerts:  alerting.NewMemoryAlertStore(100),
	}
	for _, r := range alerting.DefaultRules() {
		if err := m.rules.AddRule(r); err != nil {
			t.Fatalf("AddRule: %v", err)
		}
	}
	return m
}

func (m *mockEngine) Enqueue(ev *detection.SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockEngine) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *mockEngine) GetMetrics() pipeline.Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pipeline.Metrics{
		Running:        m.running,
		EventsReceived: int64(len(m.events)),
		Rules:          m.rules.Len(),
		ErrorCounts:    map[string]int64{},
	}
}

func (m *mockEngine) AddRule(rule *alerting.AlertRule) error { return m.rules.AddRule(rule) }
func (m *mockEngine) RemoveRule(id string) error             { return m.rules.RemoveRule(id) }
func (m *mockEngine) ListRules() []*alerting.AlertRule       { return m.rules.Rules() }

func (m *mockEngine) GetAlert(ctx context.Context, id string) (*alerting.SecurityAlert, error) {
	return m.alerts.GetAlert(ctx, id)
}

func (m *mockEngine) ListAlerts(ctx context.Context, f alerting.AlertFilter) ([]*alerting.SecurityAlert, error) {
	return m.alerts.ListAlerts(ctx, f)
}

func (m *mockEngine) AcknowledgeAlert(ctx context.Context, id, by, notes string) error {
	return m.alerts.AcknowledgeAlert(ctx, id, by, notes, testNow)
}

func (m *mockEngine) ResolveAlert(ctx context.Context, id string) error {
	return m.alerts.ResolveAlert(ctx, id, testNow)
}

func (m *mockEngine) seedAlerts(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		a := alerting.NewSecurityAlert(alerting.AlertTypeBruteForce, detection.SeverityHigh, "brute-force", testNow.Add(time.Duration(i)*time.Minute))
		a.ID = fmt.Sprintf("a%d", i)
		a.AffectedUser = "alice"
		if err := m.alerts.SaveAlert(context.Background(), a); err != nil {
			t.Fatalf("SaveAlert: %v", err)
		}
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func newTestRouter(t *testing.T, m *mockEngine, cfg MiddlewareConfig) http.Handler {
	t.Helper()
	h, err := NewRouter(m, cfg)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return h
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestNewRouterRequiresEngine(t *testing.T) {
	if _, err := NewRouter(nil, DefaultMiddlewareConfig()); err != ErrEngineRequired {
		t.Fatalf("err = %v, want ErrEngineRequired", err)
	}
}

func TestIngestEvents(t *testing.T) {
	tests := []struct {
		name       string
		enqueueErr error
		body       string
		wantStatus int
		wantCode   string
		accepted   int
	}{
		{"single", nil, `{"event_type":"login_failure","user_id":"alice"}`, http.StatusAccepted, "", 1},
		{"batch", nil, `[{"event_type":"logout"},{"event_type":"logout"}]`, http.StatusAccepted, "", 2},
		{"malformed", nil, `{nope`, http.StatusBadRequest, ErrCodeBadRequest, 0},
		{"empty", nil, ``, http.StatusBadRequest, ErrCodeBadRequest, 0},
		{"invalid ip", nil, `{"event_type":"logout","ip_address":"not-an-ip"}`, http.StatusBadRequest, ErrCodeValidationFailed, 0},
		{"queue full", pipeline.ErrQueueFull, `{"event_type":"logout"}`, http.StatusServiceUnavailable, ErrCodeQueueFull, 0},
		{"not running", pipeline.ErrNotRunning, `{"event_type":"logout"}`, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockEngine(t)
			m.enqueueErr = tt.enqueueErr
			h := newTestRouter(t, m, DefaultMiddlewareConfig())

			rec, env := do(t, h, http.MethodPost, "/api/v1/events", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if env.Error == nil || env.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
				}
				return
			}
			var resp IngestResponse
			if err := json.Unmarshal(env.Data, &resp); err != nil {
				t.Fatalf("decode data: %v", err)
			}
			if resp.Accepted != tt.accepted || len(m.events) != tt.accepted {
				t.Errorf("accepted = %d (engine saw %d), want %d", resp.Accepted, len(m.events), tt.accepted)
			}
		})
	}
}

func TestRuleEndpoints(t *testing.T) {
	m := newMockEngine(t)
	h := newTestRouter(t, m, DefaultMiddlewareConfig())

	rec, env := do(t, h, http.MethodGet, "/api/v1/rules", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var rules []alerting.AlertRule
	if err := json.Unmarshal(env.Data, &rules); err != nil {
		t.Fatalf("decode rules: %v", err)
	}
	if len(rules) != len(alerting.DefaultRules()) {
		t.Errorf("listed %d rules, want %d", len(rules), len(alerting.DefaultRules()))
	}

	body := `{"id":"data-export","alert_type":"data_exfiltration","alert_severity":"high","event_types":["data_export"],"threshold_count":3,"threshold_window":"10m","cooldown":"30m"}`
	rec, env = do(t, h, http.MethodPost, "/api/v1/rules", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", rec.Code, rec.Body.String())
	}
	var created alerting.AlertRule
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode rule: %v", err)
	}
	if created.ThresholdWindow != 10*time.Minute || created.Cooldown != 30*time.Minute {
		t.Errorf("durations = %v / %v", created.ThresholdWindow, created.Cooldown)
	}

	rec, env = do(t, h, http.MethodPost, "/api/v1/rules", body)
	if rec.Code != http.StatusConflict || env.Error.Code != ErrCodeConflict {
		t.Errorf("duplicate status = %d, error = %+v", rec.Code, env.Error)
	}

	rec, env = do(t, h, http.MethodPost, "/api/v1/rules", `{"id":"bad","alert_type":"x","alert_severity":"urgent"}`)
	if rec.Code != http.StatusBadRequest || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("invalid rule status = %d, error = %+v", rec.Code, env.Error)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/v1/rules", `{"id":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed rule status = %d", rec.Code)
	}

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/rules/data-export", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec, env = do(t, h, http.MethodDelete, "/api/v1/rules/data-export", "")
	if rec.Code != http.StatusNotFound || env.Error.Code != ErrCodeNotFound {
		t.Errorf("second delete status = %d, error = %+v", rec.Code, env.Error)
	}
}

func TestAlertEndpoints(t *testing.T) {
	m := newMockEngine(t)
	m.seedAlerts(t, 3)
	h := newTestRouter(t, m, DefaultMiddlewareConfig())

	rec, env := do(t, h, http.MethodGet, "/api/v1/alerts?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var alerts []alerting.SecurityAlert
	if err := json.Unmarshal(env.Data, &alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(alerts) != 2 || alerts[0].ID != "a2" {
		t.Fatalf("alerts = %d, first %q; want 2 starting at a2", len(alerts), alerts[0].ID)
	}
	if p := env.Meta.Pagination; p == nil || !p.HasMore || p.Limit != 2 {
		t.Errorf("pagination = %+v, want has_more with limit 2", p)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/alerts/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing status = %d", rec.Code)
	}

	rec, env = do(t, h, http.MethodPost, "/api/v1/alerts/a1/acknowledge", `{"notes":"no name"}`)
	if rec.Code != http.StatusBadRequest || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("ack without name status = %d, error = %+v", rec.Code, env.Error)
	}

	rec, env = do(t, h, http.MethodPost, "/api/v1/alerts/a1/acknowledge", `{"acknowledged_by":"analyst","notes":"investigating"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ack status = %d (%s)", rec.Code, rec.Body.String())
	}
	var acked alerting.SecurityAlert
	if err := json.Unmarshal(env.Data, &acked); err != nil {
		t.Fatalf("decode alert: %v", err)
	}
	if !acked.Acknowledged || acked.AcknowledgedBy != "analyst" || acked.AcknowledgementNotes != "investigating" {
		t.Errorf("acknowledged alert = %+v", acked)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/v1/alerts/a1/acknowledge", `{"acknowledged_by":"analyst"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("second ack status = %d, want 409", rec.Code)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/v1/alerts/a1/resolve", "")
	if rec.Code != http.StatusOK {
		t.Errorf("resolve status = %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodPost, "/api/v1/alerts/missing/resolve", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("resolve missing status = %d", rec.Code)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/alerts?acknowledged=false", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered list status = %d", rec.Code)
	}
	alerts = nil
	if err := json.Unmarshal(env.Data, &alerts); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Errorf("unacknowledged alerts = %d, want 2", len(alerts))
	}
}

func TestHealthAndStats(t *testing.T) {
	m := newMockEngine(t)
	h := newTestRouter(t, m, DefaultMiddlewareConfig())

	rec, _ := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}

	rec, env := do(t, h, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats pipeline.Metrics
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if !stats.Running || stats.Rules != len(alerting.DefaultRules()) {
		t.Errorf("stats = %+v", stats)
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	rec, _ = do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz while stopped = %d, want 503", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	h.ServeHTTP(mrec, req)
	if mrec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", mrec.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newTestRouter(t, newMockEngine(t), DefaultMiddlewareConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Meta == nil || env.Meta.RequestID != "req-123" {
		t.Errorf("meta = %+v", env.Meta)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("request ID should be generated when absent")
	}
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultMiddlewareConfig()
	cfg.RateLimitRequests = 2
	cfg.RateLimitWindow = time.Minute
	h := newTestRouter(t, newMockEngine(t), cfg)

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodGet, "/api/v1/stats", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec, env := do(t, h, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusTooManyRequests || env.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("third request status = %d, error = %+v", rec.Code, env.Error)
	}
}

func TestParseAlertFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/alerts?limit=5000&offset=3&severity=high,critical,bogus&type=brute_force&user=alice&resolved=true&since=2026-03-11T00:00:00Z&until=nope", nil)
	f := parseAlertFilter(req.URL.Query())

	if f.Limit != maxListLimit || f.Offset != 3 {
		t.Errorf("limit/offset = %d/%d", f.Limit, f.Offset)
	}
	if len(f.Severities) != 2 {
		t.Errorf("severities = %v", f.Severities)
	}
	if len(f.AlertTypes) != 1 || f.User != "alice" {
		t.Errorf("types/user = %v/%q", f.AlertTypes, f.User)
	}
	if f.Resolved == nil || !*f.Resolved || f.Acknowledged != nil {
		t.Error("resolved filter not parsed")
	}
	if f.Since == nil || f.Until != nil {
		t.Errorf("since/until = %v/%v", f.Since, f.Until)
	}
}
