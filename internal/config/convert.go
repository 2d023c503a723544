// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/riskguard/internal/alerting"
	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/geoip"
	"github.com/tomtom215/riskguard/internal/ingest"
	"github.com/tomtom215/riskguard/internal/pipeline"
	"github.com/tomtom215/riskguard/internal/resilience"
	"github.com/tomtom215/riskguard/internal/storage"
)

// ToDetection converts the detection section to detector settings.
func (c *Config) ToDetection() detection.Config {
	d := c.Detection
	roles := make(map[string]float64, len(d.Multipliers.Roles))
	for k, v := range d.Multipliers.Roles {
		roles[strings.ToLower(k)] = v
	}
	return detection.Config{
		MaxDistanceKm:            d.MaxDistanceKm,
		ImpossibleTravelSpeedKmh: d.ImpossibleTravelSpeedKmh,
		BusinessHoursStart:       d.BusinessHoursStart,
		BusinessHoursEnd:         d.BusinessHoursEnd,
		WeekendRiskMultiplier:    d.WeekendRiskMultiplier,
		MinimumBaselineEvents:    d.MinimumBaselineEvents,
		RiskThresholdSuspicious:  d.RiskThresholdSuspicious,
		RiskThresholdHigh:        d.RiskThresholdHigh,
		RiskThresholdCritical:    d.RiskThresholdCritical,
		MaxRiskScore:             d.MaxRiskScore,
		DormantAfter:             d.DormantAfter,
		VelocityWindow:           d.VelocityWindow,
		VelocityThreshold:        d.VelocityThreshold,
		FailureWindow:            d.FailureWindow,
		FailureThreshold:         d.FailureThreshold,
		SuspiciousUserAgents:     append([]string(nil), d.SuspiciousUserAgents...),
		Multipliers: detection.Multipliers{
			OffHours:        d.Multipliers.OffHours,
			SecurityPosture: d.Multipliers.SecurityPosture,
			Network:         d.Multipliers.Network,
			Roles:           roles,
		},
		LocationTimeout:    d.LocationTimeout,
		MaxTrackedEntities: d.MaxTrackedEntities,
	}
}

// ToRuleEngine returns the rule engine bounds.
func (c *Config) ToRuleEngine() alerting.RuleEngineConfig {
	return alerting.RuleEngineConfig{
		MaxTrackedEntities:  c.Alerting.MaxTrackedKeys,
		MaxTriggeringEvents: c.Alerting.MaxTriggeringEvents,
	}
}

// ToGovernor returns the cooldown, rate limit and escalation settings.
func (c *Config) ToGovernor() alerting.GovernorConfig {
	return alerting.GovernorConfig{
		RateLimitCount:      c.Alerting.GlobalRateLimitCount,
		RateLimitWindow:     c.Alerting.GlobalRateLimitWindow,
		EscalationThreshold: c.Alerting.EscalationThreshold,
		EscalationWindow:    c.Alerting.EscalationWindow,
		MaxTrackedKeys:      c.Alerting.MaxTrackedKeys,
	}
}

// ToDispatcher returns the notification delivery settings.
func (c *Config) ToDispatcher() alerting.DispatcherConfig {
	n := c.Notification
	return alerting.DispatcherConfig{
		RetryCount:         n.RetryCount,
		RetryBackoff:       n.RetryBackoff,
		MaxBackoff:         n.MaxBackoff,
		Timeout:            n.Timeout,
		RateLimitPerMinute: n.RateLimitPerMinute,
		RateBurst:          n.RateBurst,
		Breaker:            n.Breaker.toResilience("notify"),
	}
}

// ToPipeline returns the queue settings.
func (c *Config) ToPipeline() pipeline.Config {
	p := c.Pipeline
	return pipeline.Config{
		QueueSize:           p.QueueSize,
		Shards:              p.Shards,
		BatchSize:           p.BatchSize,
		BatchTimeout:        p.BatchTimeout,
		DrainTimeout:        p.DrainTimeout,
		SweepInterval:       c.Alerting.SweepInterval,
		DefaultCooldown:     c.Alerting.CooldownPerRule,
		MaxTriggeringEvents: c.Alerting.MaxTriggeringEvents,
	}
}

// ToRules builds the startup rule set. With DefaultRules set the built-in
// rules come first and a configured rule with the same ID replaces one in
// place. Every rule is validated.
func (c *Config) ToRules() ([]*alerting.AlertRule, error) {
	var rules []*alerting.AlertRule
	index := make(map[string]int)
	if c.Alerting.DefaultRules {
		for _, r := range alerting.DefaultRules() {
			index[r.ID] = len(rules)
			rules = append(rules, r)
		}
	}
	for i := range c.Alerting.Rules {
		rc := &c.Alerting.Rules[i]
		rule, err := rc.ToRule(c.Alerting.CooldownPerRule)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rc.ID, err)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %q: %w", rc.ID, err)
		}
		if pos, ok := index[rule.ID]; ok {
			rules[pos] = rule
			continue
		}
		index[rule.ID] = len(rules)
		rules = append(rules, rule)
	}
	return rules, nil
}

// ToRule converts a configured rule. Omitted fields take the same defaults
// as rules created through the API; cooldown falls back to defaultCooldown.
func (r *RuleConfig) ToRule(defaultCooldown time.Duration) (*alerting.AlertRule, error) {
	severity, err := detection.ParseSeverity(r.AlertSeverity)
	if err != nil {
		return nil, fmt.Errorf("alert_severity: %w", err)
	}
	rule := alerting.NewAlertRule(r.ID, r.AlertType, severity)
	if r.Name != "" {
		rule.Name = r.Name
	}
	rule.Description = r.Description
	if r.ThresholdCount > 0 {
		rule.ThresholdCount = r.ThresholdCount
	}
	rule.ThresholdWindow = r.ThresholdWindow
	switch {
	case r.Cooldown > 0:
		rule.Cooldown = r.Cooldown
	case defaultCooldown > 0:
		rule.Cooldown = defaultCooldown
	}
	rule.MinRiskScore = r.MinRiskScore
	rule.RequireSuspect = r.RequireSuspect
	rule.Channels = append([]string(nil), r.Channels...)
	if r.Enabled != nil {
		rule.Enabled = *r.Enabled
	}

	for _, t := range r.EventTypes {
		rule.EventTypes = append(rule.EventTypes, detection.EventType(strings.ToLower(strings.TrimSpace(t))))
	}
	for _, s := range r.Severities {
		sev, err := detection.ParseSeverity(s)
		if err != nil {
			return nil, fmt.Errorf("severities: %w", err)
		}
		rule.Severities = append(rule.Severities, sev)
	}
	for _, a := range r.Activities {
		rule.Activities = append(rule.Activities, detection.ActivityType(strings.ToUpper(strings.TrimSpace(a))))
	}
	return rule, nil
}

func (b BreakerConfig) toResilience(name string) resilience.BreakerConfig {
	def := resilience.DefaultBreakerConfig(name)
	if b.MaxRequests > 0 {
		def.MaxRequests = b.MaxRequests
	}
	if b.Interval > 0 {
		def.Interval = b.Interval
	}
	if b.Timeout > 0 {
		def.Timeout = b.Timeout
	}
	if b.FailureThreshold > 0 {
		def.FailureThreshold = b.FailureThreshold
	}
	return def
}

// ToResolver builds the configured location resolver wrapped in the shared
// cache and breaker. It returns nil for the none provider, which leaves the
// location analyzer without a resolver.
func (c *Config) ToResolver() (*geoip.CachedResolver, error) {
	g := c.GeoIP
	var upstream geoip.Resolver
	switch g.Provider {
	case GeoIPProviderNone, "":
		return nil, nil
	case GeoIPProviderStatic:
		static, err := geoip.NewStaticResolver(g.Static)
		if err != nil {
			return nil, fmt.Errorf("static geoip table: %w", err)
		}
		upstream = static
	case GeoIPProviderHTTP:
		upstream = geoip.NewHTTPResolver(g.HTTPURL, g.HTTPTimeout)
	default:
		return nil, fmt.Errorf("unknown geoip provider %q", g.Provider)
	}
	return geoip.NewCachedResolver(upstream, geoip.CacheConfig{
		Size:        g.CacheSize,
		TTL:         g.CacheTTL,
		NegativeTTL: g.NegativeTTL,
		Timeout:     c.Detection.LocationTimeout,
		Breaker:     g.Breaker.toResilience("geoip"),
	}), nil
}

// ToBadger returns the embedded database settings.
func (c *Config) ToBadger() storage.BadgerConfig {
	return storage.BadgerConfig{
		Path:        c.Storage.BadgerPath,
		SyncWrites:  c.Storage.SyncWrites,
		BaselineTTL: c.Storage.BaselineTTL,
		EventTTL:    c.Storage.EventTTL,
	}
}

// ToRedis returns the shared baseline store settings.
func (c *Config) ToRedis() storage.RedisConfig {
	return storage.RedisConfig{
		URL:       c.Storage.RedisURL,
		Addr:      c.Storage.RedisAddr,
		DB:        c.Storage.RedisDB,
		KeyPrefix: c.Storage.RedisPrefix,
		TTL:       c.Storage.BaselineTTL,
	}
}

// ToNATS returns the JetStream ingester settings.
func (c *Config) ToNATS() ingest.NATSConfig {
	n := c.Ingest.NATS
	out := ingest.DefaultNATSConfig()
	out.URL = n.URL
	out.Embedded = n.Embedded
	out.Server = ingest.EmbeddedServerConfig{
		Host:     n.Host,
		Port:     n.Port,
		StoreDir: n.StoreDir,
	}
	out.Subject = n.Subject
	out.StreamName = n.StreamName
	out.QueueGroup = n.QueueGroup
	out.DurableName = n.DurableName
	out.SubscribersCount = n.Subscribers
	if n.AckWait > 0 {
		out.AckWait = n.AckWait
	}
	if n.MaxDeliver > 0 {
		out.MaxDeliver = n.MaxDeliver
	}
	if n.MaxAckPending > 0 {
		out.MaxAckPending = n.MaxAckPending
	}
	return out
}

// ToKafka returns the consumer-group ingester settings.
func (c *Config) ToKafka() ingest.KafkaConfig {
	k := c.Ingest.Kafka
	out := ingest.DefaultKafkaConfig()
	out.Brokers = append([]string(nil), k.Brokers...)
	out.Topic = k.Topic
	out.GroupID = k.GroupID
	if k.MinBytes > 0 {
		out.MinBytes = k.MinBytes
	}
	if k.MaxBytes > 0 {
		out.MaxBytes = k.MaxBytes
	}
	if k.MaxWait > 0 {
		out.MaxWait = k.MaxWait
	}
	return out
}
