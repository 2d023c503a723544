// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package alerting turns analyzed security events into governed alerts and
delivers them to notification channels.

Three stages run for every analyzed event:

  - RuleEngine matches the event against AlertRules. Rules with a threshold
    count matching events per entity (user, falling back to IP) in a sliding
    window and fire once the threshold is reached.
  - Governor admits or suppresses each candidate alert. Cooldowns are keyed
    by (rule, user, ip); a global sliding window caps non-critical alert
    volume; repeated alerts for one user produce a single CRITICAL
    escalation alert per escalation window.
  - Dispatcher fans admitted alerts out to Channels asynchronously with
    per-call timeouts, capped exponential backoff, a circuit breaker and a
    per-channel rate limit that critical alerts ignore.

Admitted alerts are appended to an AlertStore. Suppressed duplicates are
counted on the alert that holds the cooldown.

Example:

	rules := alerting.NewRuleEngine(alerting.DefaultRuleEngineConfig())
	for _, r := range alerting.DefaultRules() {
	    _ = rules.AddRule(r)
	}
	gov := alerting.NewGovernor(alerting.DefaultGovernorConfig())
	for _, alert := range rules.Evaluate(event, result, now) {
	    verdict := gov.Admit(alert, cooldown)
	    ...
	}
*/
package alerting
