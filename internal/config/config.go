// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package config

import (
	"time"

	"github.com/tomtom215/riskguard/internal/alerting"
	"github.com/tomtom215/riskguard/internal/geoip"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	Detection    DetectionConfig    `koanf:"detection"`
	Alerting     AlertingConfig     `koanf:"alerting"`
	Notification NotificationConfig `koanf:"notification"`
	Pipeline     PipelineConfig     `koanf:"pipeline"`
	GeoIP        GeoIPConfig        `koanf:"geoip"`
	Storage      StorageConfig      `koanf:"storage"`
	Ingest       IngestConfig       `koanf:"ingest"`
}

// ServerConfig configures the admin and ingestion HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Per-IP request budget for /api/v1
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MultipliersConfig scales aggregated risk. 1.0 is neutral.
type MultipliersConfig struct {
	OffHours        float64            `koanf:"off_hours"`
	SecurityPosture float64            `koanf:"security_posture"`
	Network         float64            `koanf:"network"`
	Roles           map[string]float64 `koanf:"roles"`
}

// DetectionConfig tunes the analyzers and the aggregator.
type DetectionConfig struct {
	MaxDistanceKm            float64 `koanf:"max_distance_km"`
	ImpossibleTravelSpeedKmh float64 `koanf:"impossible_travel_speed_kmh"`

	BusinessHoursStart    int     `koanf:"business_hours_start"`
	BusinessHoursEnd      int     `koanf:"business_hours_end"`
	WeekendRiskMultiplier float64 `koanf:"weekend_risk_multiplier"`

	MinimumBaselineEvents int `koanf:"minimum_baseline_events"`

	RiskThresholdSuspicious float64 `koanf:"risk_threshold_suspicious"`
	RiskThresholdHigh       float64 `koanf:"risk_threshold_high"`
	RiskThresholdCritical   float64 `koanf:"risk_threshold_critical"`
	MaxRiskScore            float64 `koanf:"max_risk_score"`

	DormantAfter      time.Duration `koanf:"dormant_after"`
	VelocityWindow    time.Duration `koanf:"velocity_window"`
	VelocityThreshold int           `koanf:"velocity_threshold"`
	FailureWindow     time.Duration `koanf:"failure_window"`
	FailureThreshold  int           `koanf:"failure_threshold"`

	SuspiciousUserAgents []string          `koanf:"suspicious_user_agents"`
	Multipliers          MultipliersConfig `koanf:"multipliers"`

	LocationTimeout    time.Duration `koanf:"location_timeout"`
	MaxTrackedEntities int           `koanf:"max_tracked_entities"`
}

// RuleConfig is an alert rule as written in the config file.
type RuleConfig struct {
	ID              string        `koanf:"id"`
	Name            string        `koanf:"name"`
	Description     string        `koanf:"description"`
	EventTypes      []string      `koanf:"event_types"`
	Severities      []string      `koanf:"severities"`
	ThresholdCount  int           `koanf:"threshold_count"`
	ThresholdWindow time.Duration `koanf:"threshold_window"`
	AlertType       string        `koanf:"alert_type"`
	AlertSeverity   string        `koanf:"alert_severity"`
	Cooldown        time.Duration `koanf:"cooldown"`
	Channels        []string      `koanf:"channels"`
	MinRiskScore    float64       `koanf:"min_risk_score"`
	RequireSuspect  bool          `koanf:"require_suspicious"`
	Activities      []string      `koanf:"activities"`
	// Enabled defaults to true when omitted.
	Enabled *bool `koanf:"enabled"`
}

// AlertingConfig configures the rule engine and the governor.
type AlertingConfig struct {
	GlobalRateLimitCount  int           `koanf:"global_rate_limit_count"`
	GlobalRateLimitWindow time.Duration `koanf:"global_rate_limit_window"`
	EscalationThreshold   int           `koanf:"escalation_threshold"`
	EscalationWindow      time.Duration `koanf:"escalation_window"`
	// CooldownPerRule is the cooldown for rules that set none.
	CooldownPerRule     time.Duration `koanf:"cooldown_per_rule"`
	MaxTriggeringEvents int           `koanf:"max_triggering_events"`
	MaxTrackedKeys      int           `koanf:"max_tracked_keys"`
	SweepInterval       time.Duration `koanf:"sweep_interval"`
	HistorySize         int           `koanf:"history_size"`

	// DefaultRules loads the built-in rule set before Rules. A configured rule
	// with a built-in ID replaces it.
	DefaultRules bool         `koanf:"default_rules"`
	Rules        []RuleConfig `koanf:"rules"`
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// LogChannelConfig configures the structured log channel.
type LogChannelConfig struct {
	Enabled bool `koanf:"enabled"`
}

// NotificationConfig configures dispatch and the built-in channels.
type NotificationConfig struct {
	RetryCount         int           `koanf:"retry_count"`
	RetryBackoff       time.Duration `koanf:"retry_backoff"`
	MaxBackoff         time.Duration `koanf:"max_backoff"`
	Timeout            time.Duration `koanf:"timeout"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute"`
	RateBurst          int           `koanf:"rate_burst"`
	Breaker            BreakerConfig `koanf:"breaker"`

	Webhook alerting.WebhookConfig `koanf:"webhook"`
	Log     LogChannelConfig       `koanf:"log"`
}

// PipelineConfig configures the sharded event queue.
type PipelineConfig struct {
	QueueSize    int           `koanf:"queue_size"`
	Shards       int           `koanf:"shards"`
	BatchSize    int           `koanf:"batch_size"`
	BatchTimeout time.Duration `koanf:"batch_timeout"`
	DrainTimeout time.Duration `koanf:"drain_timeout"`
	EventLogSize int           `koanf:"event_log_size"`
}

// GeoIP providers
const (
	GeoIPProviderNone   = "none"
	GeoIPProviderStatic = "static"
	GeoIPProviderHTTP   = "http"
)

// GeoIPConfig selects and tunes the location resolver.
type GeoIPConfig struct {
	Provider    string              `koanf:"provider"`
	Static      []geoip.StaticEntry `koanf:"static"`
	HTTPURL     string              `koanf:"http_url"`
	HTTPTimeout time.Duration       `koanf:"http_timeout"`
	CacheSize   int                 `koanf:"cache_size"`
	CacheTTL    time.Duration       `koanf:"cache_ttl"`
	NegativeTTL time.Duration       `koanf:"negative_ttl"`
	Breaker     BreakerConfig       `koanf:"breaker"`
}

// Storage backends
const (
	StorageMemory = "memory"
	StorageBadger = "badger"
	StorageRedis  = "redis"
)

// StorageConfig selects where baselines, alerts and event history live.
// The redis backend holds baselines only; alerts and history stay in memory.
type StorageConfig struct {
	Backend      string        `koanf:"backend"`
	BadgerPath   string        `koanf:"badger_path"`
	SyncWrites   bool          `koanf:"sync_writes"`
	RedisURL     string        `koanf:"redis_url"`
	RedisAddr    string        `koanf:"redis_addr"`
	RedisDB      int           `koanf:"redis_db"`
	RedisPrefix  string        `koanf:"redis_prefix"`
	BaselineTTL  time.Duration `koanf:"baseline_ttl"`
	EventTTL     time.Duration `koanf:"event_ttl"`
	MaxBaselines int           `koanf:"max_baselines"`
}

// NATSIngestConfig configures JetStream ingestion.
type NATSIngestConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	Embedded      bool          `koanf:"embedded"`
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port"`
	StoreDir      string        `koanf:"store_dir"`
	Subject       string        `koanf:"subject"`
	StreamName    string        `koanf:"stream_name"`
	QueueGroup    string        `koanf:"queue_group"`
	DurableName   string        `koanf:"durable_name"`
	Subscribers   int           `koanf:"subscribers"`
	AckWait       time.Duration `koanf:"ack_wait"`
	MaxDeliver    int           `koanf:"max_deliver"`
	MaxAckPending int           `koanf:"max_ack_pending"`
}

// KafkaIngestConfig configures consumer-group ingestion.
type KafkaIngestConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Brokers  []string      `koanf:"brokers"`
	Topic    string        `koanf:"topic"`
	GroupID  string        `koanf:"group_id"`
	MinBytes int           `koanf:"min_bytes"`
	MaxBytes int           `koanf:"max_bytes"`
	MaxWait  time.Duration `koanf:"max_wait"`
}

// IngestConfig groups the broker transports.
type IngestConfig struct {
	NATS  NATSIngestConfig  `koanf:"nats"`
	Kafka KafkaIngestConfig `koanf:"kafka"`
}
