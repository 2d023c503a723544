// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestSecurityEvent_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantTime time.Time
		wantErr  bool
	}{
		{
			name:     "rfc3339",
			input:    `{"id":"1","event_type":"login_success","timestamp":"2026-03-11T14:00:00Z"}`,
			wantTime: testNow,
		},
		{
			name:     "rfc3339 with offset",
			input:    `{"id":"1","timestamp":"2026-03-11T16:00:00+02:00"}`,
			wantTime: testNow,
		},
		{
			name:     "naive datetime",
			input:    `{"id":"1","timestamp":"2026-03-11 14:00:00"}`,
			wantTime: testNow,
		},
		{
			name:     "unix seconds",
			input:    `{"id":"1","timestamp":1773237600}`,
			wantTime: testNow,
		},
		{
			name:     "unix milliseconds",
			input:    `{"id":"1","timestamp":1773237600000}`,
			wantTime: testNow,
		},
		{
			name:     "unix seconds as string",
			input:    `{"id":"1","timestamp":"1773237600"}`,
			wantTime: testNow,
		},
		{
			name:  "missing timestamp",
			input: `{"id":"1"}`,
		},
		{
			name:  "garbage timestamp",
			input: `{"id":"1","timestamp":"yesterday-ish"}`,
		},
		{
			name:  "null timestamp",
			input: `{"id":"1","timestamp":null}`,
		},
		{
			name:  "NaN string",
			input: `{"id":"1","timestamp":"NaN"}`,
		},
		{
			name:  "infinity string",
			input: `{"id":"1","timestamp":"-Inf"}`,
		},
		{
			name:  "number beyond year 9999",
			input: `{"id":"1","timestamp":1e20}`,
		},
		{
			name:  "number before year 1",
			input: `{"id":"1","timestamp":-1e15}`,
		},
		{
			name:    "invalid json",
			input:   `{"id":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev SecurityEvent
			err := json.Unmarshal([]byte(tt.input), &ev)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !ev.Timestamp.Equal(tt.wantTime) {
				t.Errorf("timestamp = %v, want %v", ev.Timestamp, tt.wantTime)
			}
			if ev.ID != "1" {
				t.Errorf("id = %q", ev.ID)
			}
		})
	}
}

func TestSecurityEvent_UnmarshalNormalizesEnums(t *testing.T) {
	t.Parallel()

	var ev SecurityEvent
	input := `{"id":"x","event_type":"LOGIN_FAILURE","severity":"High","user_id":"u1","details":{"role":"admin"}}`
	if err := json.Unmarshal([]byte(input), &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ev.EventType != EventLoginFailure || ev.Severity != SeverityHigh {
		t.Errorf("event_type=%q severity=%q", ev.EventType, ev.Severity)
	}
	if ev.Details["role"] != "admin" {
		t.Errorf("details = %v", ev.Details)
	}
}

func TestSecurityEvent_EntityKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ev   SecurityEvent
		want string
	}{
		{SecurityEvent{UserID: "u1", IPAddress: "1.2.3.4"}, "user:u1"},
		{SecurityEvent{IPAddress: "1.2.3.4"}, "ip:1.2.3.4"},
		{SecurityEvent{}, ""},
	}
	for _, tt := range tests {
		if got := tt.ev.EntityKey(); got != tt.want {
			t.Errorf("EntityKey() = %q, want %q", got, tt.want)
		}
	}
}

func TestSeverity(t *testing.T) {
	t.Parallel()

	if !SeverityCritical.AtLeast(SeverityMedium) || SeverityLow.AtLeast(SeverityMedium) {
		t.Error("AtLeast ordering broken")
	}
	if Severity("bogus").Valid() {
		t.Error("unknown severity reported valid")
	}

	for _, in := range []string{"LOW", " medium ", "High", "critical"} {
		if _, err := ParseSeverity(in); err != nil {
			t.Errorf("ParseSeverity(%q): %v", in, err)
		}
	}
	if _, err := ParseSeverity("urgent"); err == nil {
		t.Error("ParseSeverity accepted unknown value")
	}
}

func TestEventType_IsFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		t    EventType
		want bool
	}{
		{EventLoginFailure, true},
		{EventMFAFailure, true},
		{EventAccessDenied, true},
		{EventType("token_refresh_failure"), true},
		{EventLoginSuccess, false},
		{EventPrivilegeChange, false},
	}
	for _, tt := range tests {
		if got := tt.t.IsFailure(); got != tt.want {
			t.Errorf("%s.IsFailure() = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestParseTimestamp_RejectsNonFinite(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"NaN", "nan", "Inf", "+Inf", "-Infinity", "1e20", "-1e20"} {
		if got, ok := ParseTimestamp(in); ok {
			t.Errorf("ParseTimestamp(%q) = %v, want rejected", in, got)
		}
	}
	if got, ok := ParseTimestamp("1773237600.5"); !ok || !got.Equal(testNow.Add(500*time.Millisecond)) {
		t.Errorf("fractional seconds = %v, %v", got, ok)
	}
}
