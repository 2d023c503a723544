// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tomtom215/riskguard/internal/detection"
)

// alertTemplate holds title and description patterns. Placeholders:
// {user}, {ip}, {event_type}, {count}, {window}, {risk}, {rule}, {activities}.
type alertTemplate struct {
	title       string
	description string
}

var alertTemplates = map[string]alertTemplate{
	AlertTypeBruteForce: {
		title:       "Brute force attempt against {user}",
		description: "{count} {event_type} events for {user} from {ip} within {window}.",
	},
	AlertTypeSuspiciousLogin: {
		title:       "Suspicious login for {user}",
		description: "Login by {user} from {ip} scored {risk}/100. Signals: {activities}.",
	},
	AlertTypeImpossibleTravel: {
		title:       "Impossible travel for {user}",
		description: "{user} appeared at {ip} faster than physically possible since the last known location. Signals: {activities}.",
	},
	AlertTypePrivilegeChange: {
		title:       "Privilege change for {user}",
		description: "A privilege change was recorded for {user} from {ip} (risk {risk}/100).",
	},
	AlertTypeDormantAccount: {
		title:       "Dormant account reactivated: {user}",
		description: "{user} became active again from {ip} after a long idle period.",
	},
	AlertTypeDataExfiltration: {
		title:       "Possible data exfiltration by {user}",
		description: "{count} {event_type} events for {user} within {window} (risk {risk}/100).",
	},
	AlertTypeAutomatedAccess: {
		title:       "Automated client used by {user}",
		description: "{user} connected from {ip} with a client flagged as automated. Signals: {activities}.",
	},
	AlertTypeAnonymizingNetwork: {
		title:       "Anonymizing network used by {user}",
		description: "{user} connected through a proxy or Tor exit at {ip}.",
	},
	AlertTypeEscalation: {
		title:       "Escalation: repeated alerts for {user}",
		description: "{count} alerts of medium severity or above for {user} within {window}.",
	},
}

var defaultTemplate = alertTemplate{
	title:       "Security alert: {rule}",
	description: "Rule {rule} matched {event_type} for {user} from {ip} (risk {risk}/100).",
}

// templateVars are the values substituted into an alert template.
type templateVars struct {
	rule       string
	user       string
	ip         string
	eventType  string
	count      int
	window     string
	risk       float64
	activities []detection.ActivityType
}

// render returns the title and description for alertType.
func render(alertType string, v templateVars) (title, description string) {
	tmpl, ok := alertTemplates[alertType]
	if !ok {
		tmpl = defaultTemplate
	}

	user := v.user
	if user == "" {
		user = "unknown user"
	}
	ip := v.ip
	if ip == "" {
		ip = "unknown address"
	}
	activities := "none"
	if len(v.activities) > 0 {
		names := make([]string, len(v.activities))
		for i, a := range v.activities {
			names[i] = string(a)
		}
		activities = strings.Join(names, ", ")
	}

	r := strings.NewReplacer(
		"{rule}", v.rule,
		"{user}", user,
		"{ip}", ip,
		"{event_type}", v.eventType,
		"{count}", strconv.Itoa(v.count),
		"{window}", v.window,
		"{risk}", fmt.Sprintf("%.0f", v.risk),
		"{activities}", activities,
	)
	return r.Replace(tmpl.title), r.Replace(tmpl.description)
}
