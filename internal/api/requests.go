// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package api

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/riskguard/internal/alerting"
	"github.com/tomtom215/riskguard/internal/detection"
)

const (
	maxBodyBytes  = 1 << 20
	maxListLimit  = 1000
	defaultLimit  = alerting.DefaultListLimit
	queryTimeForm = time.RFC3339
)

// AcknowledgeRequest is the body of POST /api/v1/alerts/{id}/acknowledge.
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by" validate:"required,max=200"`
	Notes          string `json:"notes" validate:"max=2000"`
}

// IngestResponse reports how many events of a request were queued.
type IngestResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// parseAlertFilter reads list filters from the query string. Unparseable
// values are ignored.
func parseAlertFilter(q url.Values) alerting.AlertFilter {
	filter := alerting.AlertFilter{Limit: defaultLimit}

	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			filter.Limit = min(limit, maxListLimit)
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	for _, s := range splitList(q.Get("severity")) {
		if sev, err := detection.ParseSeverity(s); err == nil {
			filter.Severities = append(filter.Severities, sev)
		}
	}
	filter.AlertTypes = splitList(q.Get("type"))
	filter.RuleID = q.Get("rule_id")
	filter.User = q.Get("user")

	if v := q.Get("acknowledged"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Acknowledged = &b
		}
	}
	if v := q.Get("resolved"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Resolved = &b
		}
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(queryTimeForm, v); err == nil {
			filter.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(queryTimeForm, v); err == nil {
			filter.Until = &t
		}
	}
	return filter
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
