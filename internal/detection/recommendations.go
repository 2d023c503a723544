// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package detection

var activityRecommendations = map[ActivityType]string{
	ActivityGeolocationAnomaly:  "Verify the login location with the user",
	ActivityNewLocation:         "Confirm the new location is expected for this user",
	ActivityImpossibleTravel:    "Force re-authentication and review active sessions for credential sharing or compromise",
	ActivityProxyAccess:         "Review whether proxy access is permitted for this account",
	ActivityTorAccess:           "Block or challenge access from Tor exit nodes",
	ActivityOffHoursAccess:      "Confirm off-hours access was authorized",
	ActivityUnusualTimePattern:  "Compare activity against the user's normal working hours",
	ActivityNewUserAgent:        "Confirm the new device with the user",
	ActivitySuspiciousUserAgent: "Investigate possible automated or scripted access",
	ActivityUserAgentRotation:   "Investigate device rotation typical of credential stuffing",
	ActivityDormantAccount:      "Verify the reactivation of this dormant account with its owner",
	ActivityVelocityAnomaly:     "Apply rate limiting to this entity",
	ActivityRepeatedFailures:    "Consider a temporary lockout and require MFA",
	ActivityExtremeTimestamp:    "Check the event source clock and look for replayed events",
}

// Recommend returns one recommendation per detected activity, in detection
// order, followed by a level-based action for high and critical risk.
func Recommend(activities []ActivityType, level RiskLevel) []string {
	out := make([]string, 0, len(activities)+1)
	seen := make(map[string]bool, len(activities))
	for _, act := range activities {
		rec, ok := activityRecommendations[act]
		if !ok || seen[rec] {
			continue
		}
		seen[rec] = true
		out = append(out, rec)
	}
	switch level {
	case RiskCritical:
		out = append(out, "Suspend the session and open an incident")
	case RiskHigh:
		out = append(out, "Require step-up authentication")
	}
	return out
}
