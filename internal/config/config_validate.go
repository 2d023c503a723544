// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/validation"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateAlerting(); err != nil {
		return err
	}
	if err := c.validateNotification(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateGeoIP(); err != nil {
		return err
	}
	return c.validateIngest()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitRequests < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Server.RateLimitRequests)
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Server.RateLimitWindow)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateDetection checks the analyzer tunables. Scores live on 0-100 and
// the three thresholds must be strictly ordered.
func (c *Config) validateDetection() error {
	d := c.Detection
	if d.BusinessHoursStart < 0 || d.BusinessHoursStart > 23 {
		return fmt.Errorf("BUSINESS_HOURS_START must be between 0 and 23, got %d", d.BusinessHoursStart)
	}
	if d.BusinessHoursEnd < 1 || d.BusinessHoursEnd > 24 {
		return fmt.Errorf("BUSINESS_HOURS_END must be between 1 and 24, got %d", d.BusinessHoursEnd)
	}
	if d.BusinessHoursStart >= d.BusinessHoursEnd {
		return fmt.Errorf("BUSINESS_HOURS_START (%d) must be before BUSINESS_HOURS_END (%d)",
			d.BusinessHoursStart, d.BusinessHoursEnd)
	}
	if d.MaxRiskScore <= 0 || d.MaxRiskScore > 100 {
		return fmt.Errorf("MAX_RISK_SCORE must be in (0, 100], got %v", d.MaxRiskScore)
	}
	if d.RiskThresholdSuspicious <= 0 ||
		d.RiskThresholdSuspicious >= d.RiskThresholdHigh ||
		d.RiskThresholdHigh >= d.RiskThresholdCritical ||
		d.RiskThresholdCritical > d.MaxRiskScore {
		return fmt.Errorf("risk thresholds must satisfy 0 < suspicious < high < critical <= max, got %v/%v/%v/%v",
			d.RiskThresholdSuspicious, d.RiskThresholdHigh, d.RiskThresholdCritical, d.MaxRiskScore)
	}
	if d.WeekendRiskMultiplier < 1 {
		return fmt.Errorf("WEEKEND_RISK_MULTIPLIER must be at least 1, got %v", d.WeekendRiskMultiplier)
	}
	if d.MaxDistanceKm <= 0 || d.ImpossibleTravelSpeedKmh <= 0 {
		return fmt.Errorf("travel limits must be positive")
	}
	if d.MinimumBaselineEvents < 1 {
		return fmt.Errorf("MINIMUM_BASELINE_EVENTS must be at least 1, got %d", d.MinimumBaselineEvents)
	}
	if d.VelocityThreshold < 1 || d.FailureThreshold < 1 {
		return fmt.Errorf("velocity and failure thresholds must be at least 1")
	}
	if d.VelocityWindow <= 0 || d.FailureWindow <= 0 || d.DormantAfter <= 0 {
		return fmt.Errorf("detection windows must be positive")
	}
	m := d.Multipliers
	if m.OffHours < 0 || m.SecurityPosture < 0 || m.Network < 0 {
		return fmt.Errorf("risk multipliers must not be negative")
	}
	for role, v := range m.Roles {
		if v < 0 {
			return fmt.Errorf("role multiplier %q must not be negative, got %v", role, v)
		}
	}
	return nil
}

func (c *Config) validateAlerting() error {
	a := c.Alerting
	if a.GlobalRateLimitCount < 1 {
		return fmt.Errorf("ALERT_RATE_LIMIT_COUNT must be at least 1, got %d", a.GlobalRateLimitCount)
	}
	if a.GlobalRateLimitWindow <= 0 {
		return fmt.Errorf("ALERT_RATE_LIMIT_WINDOW must be positive, got %v", a.GlobalRateLimitWindow)
	}
	if a.EscalationThreshold < 1 {
		return fmt.Errorf("ALERT_ESCALATION_THRESHOLD must be at least 1, got %d", a.EscalationThreshold)
	}
	if a.EscalationWindow <= 0 {
		return fmt.Errorf("ALERT_ESCALATION_WINDOW must be positive, got %v", a.EscalationWindow)
	}
	if a.CooldownPerRule <= 0 {
		return fmt.Errorf("ALERT_COOLDOWN must be positive, got %v", a.CooldownPerRule)
	}
	if a.HistorySize < 1 {
		return fmt.Errorf("ALERT_HISTORY_SIZE must be at least 1, got %d", a.HistorySize)
	}

	seen := make(map[string]bool, len(a.Rules))
	for i := range a.Rules {
		r := &a.Rules[i]
		if r.ID == "" {
			return fmt.Errorf("alerting.rules[%d]: id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("alerting.rules[%d]: duplicate rule id %q", i, r.ID)
		}
		seen[r.ID] = true
		rule, err := r.ToRule(a.CooldownPerRule)
		if err != nil {
			return fmt.Errorf("alerting.rules[%d] (%s): %w", i, r.ID, err)
		}
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("alerting.rules[%d] (%s): %w", i, r.ID, err)
		}
	}
	return nil
}

func (c *Config) validateNotification() error {
	n := c.Notification
	if n.RetryCount < 0 {
		return fmt.Errorf("NOTIFY_RETRY_COUNT must not be negative, got %d", n.RetryCount)
	}
	if n.Timeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive, got %v", n.Timeout)
	}
	if n.RetryBackoff > n.MaxBackoff {
		return fmt.Errorf("NOTIFY_RETRY_BACKOFF (%v) must not exceed NOTIFY_MAX_BACKOFF (%v)", n.RetryBackoff, n.MaxBackoff)
	}
	if verr := validation.ValidateStruct(n.Webhook); verr != nil {
		return fmt.Errorf("notification.webhook: %w", verr)
	}
	if n.Webhook.Enabled {
		if n.Webhook.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_ENABLED=true")
		}
		if err := validateHTTPURL(n.Webhook.WebhookURL); err != nil {
			return fmt.Errorf("WEBHOOK_URL is invalid: %w", err)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := c.Storage
	switch s.Backend {
	case StorageMemory:
	case StorageBadger:
		if s.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required when STORAGE_BACKEND=badger")
		}
	case StorageRedis:
		if s.RedisURL == "" && s.RedisAddr == "" {
			return fmt.Errorf("REDIS_URL or REDIS_ADDR is required when STORAGE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be memory, badger or redis, got %q", s.Backend)
	}
	if s.BaselineTTL < 0 || s.EventTTL < 0 {
		return fmt.Errorf("storage TTLs must not be negative")
	}
	return nil
}

func (c *Config) validateGeoIP() error {
	g := c.GeoIP
	switch g.Provider {
	case GeoIPProviderNone:
		return nil
	case GeoIPProviderStatic:
		if len(g.Static) == 0 {
			return fmt.Errorf("geoip.static requires at least one entry when GEOIP_PROVIDER=static")
		}
	case GeoIPProviderHTTP:
		if g.HTTPURL == "" {
			return fmt.Errorf("GEOIP_HTTP_URL is required when GEOIP_PROVIDER=http")
		}
		if err := validateHTTPURL(g.HTTPURL); err != nil {
			return fmt.Errorf("GEOIP_HTTP_URL is invalid: %w", err)
		}
	default:
		return fmt.Errorf("GEOIP_PROVIDER must be none, static or http, got %q", g.Provider)
	}
	if g.CacheSize < 1 {
		return fmt.Errorf("GEOIP_CACHE_SIZE must be at least 1, got %d", g.CacheSize)
	}
	return nil
}

func (c *Config) validateIngest() error {
	n := c.Ingest.NATS
	if n.Enabled {
		if !n.Embedded && n.URL == "" {
			return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true and NATS_EMBEDDED=false")
		}
		if n.Subject == "" {
			return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
		}
		if n.Subscribers < 1 {
			return fmt.Errorf("NATS_SUBSCRIBERS must be at least 1, got %d", n.Subscribers)
		}
	}
	k := c.Ingest.Kafka
	if k.Enabled {
		if len(k.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
		}
		if k.Topic == "" {
			return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_ENABLED=true")
		}
		if k.GroupID == "" {
			return fmt.Errorf("KAFKA_GROUP_ID is required when KAFKA_ENABLED=true")
		}
	}
	return nil
}

// validateHTTPURL requires an absolute http or https URL with a host.
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
