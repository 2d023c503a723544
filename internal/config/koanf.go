// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/riskguard/internal/alerting"
	"github.com/tomtom215/riskguard/internal/detection"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/riskguard/config.yaml",
	"/etc/riskguard/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every default applied. Defaults are
// loaded first, then overridden by the config file and the environment.
func defaultConfig() *Config {
	det := detection.DefaultConfig()
	gov := alerting.DefaultGovernorConfig()
	disp := alerting.DefaultDispatcherConfig()

	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Detection: DetectionConfig{
			MaxDistanceKm:            det.MaxDistanceKm,
			ImpossibleTravelSpeedKmh: det.ImpossibleTravelSpeedKmh,
			BusinessHoursStart:       det.BusinessHoursStart,
			BusinessHoursEnd:         det.BusinessHoursEnd,
			WeekendRiskMultiplier:    det.WeekendRiskMultiplier,
			MinimumBaselineEvents:    det.MinimumBaselineEvents,
			RiskThresholdSuspicious:  det.RiskThresholdSuspicious,
			RiskThresholdHigh:        det.RiskThresholdHigh,
			RiskThresholdCritical:    det.RiskThresholdCritical,
			MaxRiskScore:             det.MaxRiskScore,
			DormantAfter:             det.DormantAfter,
			VelocityWindow:           det.VelocityWindow,
			VelocityThreshold:        det.VelocityThreshold,
			FailureWindow:            det.FailureWindow,
			FailureThreshold:         det.FailureThreshold,
			SuspiciousUserAgents:     det.SuspiciousUserAgents,
			Multipliers: MultipliersConfig{
				OffHours:        1.0,
				SecurityPosture: 1.0,
				Network:         1.0,
			},
			LocationTimeout:    det.LocationTimeout,
			MaxTrackedEntities: det.MaxTrackedEntities,
		},
		Alerting: AlertingConfig{
			GlobalRateLimitCount:  gov.RateLimitCount,
			GlobalRateLimitWindow: gov.RateLimitWindow,
			EscalationThreshold:   gov.EscalationThreshold,
			EscalationWindow:      gov.EscalationWindow,
			CooldownPerRule:       alerting.DefaultCooldown,
			MaxTriggeringEvents:   10,
			MaxTrackedKeys:        gov.MaxTrackedKeys,
			SweepInterval:         time.Minute,
			HistorySize:           10000,
			DefaultRules:          true,
		},
		Notification: NotificationConfig{
			RetryCount:         disp.RetryCount,
			RetryBackoff:       disp.RetryBackoff,
			MaxBackoff:         disp.MaxBackoff,
			Timeout:            disp.Timeout,
			RateLimitPerMinute: disp.RateLimitPerMinute,
			RateBurst:          disp.RateBurst,
			Breaker: BreakerConfig{
				MaxRequests:      1,
				Interval:         time.Minute,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
			Webhook: alerting.WebhookConfig{
				Name:    "webhook",
				Timeout: 10 * time.Second,
			},
			Log: LogChannelConfig{Enabled: true},
		},
		Pipeline: PipelineConfig{
			QueueSize:    10000,
			Shards:       0, // 0 = runtime.NumCPU(), capped at 16
			BatchSize:    100,
			BatchTimeout: 50 * time.Millisecond,
			DrainTimeout: 30 * time.Second,
			EventLogSize: 1000,
		},
		GeoIP: GeoIPConfig{
			Provider:    GeoIPProviderNone,
			HTTPTimeout: 2 * time.Second,
			CacheSize:   50000,
			CacheTTL:    24 * time.Hour,
			NegativeTTL: time.Hour,
			Breaker: BreakerConfig{
				MaxRequests:      1,
				Interval:         time.Minute,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
		},
		Storage: StorageConfig{
			Backend:      StorageMemory,
			BadgerPath:   "/data/riskguard",
			RedisAddr:    "localhost:6379",
			RedisPrefix:  "riskguard:",
			BaselineTTL:  180 * 24 * time.Hour,
			EventTTL:     30 * 24 * time.Hour,
			MaxBaselines: det.MaxTrackedEntities,
		},
		Ingest: IngestConfig{
			NATS: NATSIngestConfig{
				Enabled:       false,
				URL:           "nats://127.0.0.1:4222",
				Embedded:      false,
				Host:          "127.0.0.1",
				Port:          4222,
				StoreDir:      "/data/nats/jetstream",
				Subject:       "security.events",
				QueueGroup:    "riskguard",
				DurableName:   "riskguard-ingest",
				Subscribers:   4,
				AckWait:       30 * time.Second,
				MaxDeliver:    5,
				MaxAckPending: 1000,
			},
			Kafka: KafkaIngestConfig{
				Enabled:  false,
				Brokers:  []string{"localhost:9092"},
				Topic:    "security-events",
				GroupID:  "riskguard",
				MinBytes: 1,
				MaxBytes: 10 << 20,
				MaxWait:  500 * time.Millisecond,
			},
		},
	}
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables: the mapped names in envMappings
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
	"detection.suspicious_user_agents",
	"ingest.kafka.brokers",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while YAML lists are already slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"shutdown_timeout":      "server.shutdown_timeout",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",
	"cors_origins":          "server.cors_origins",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
	"log_caller":            "logging.caller",

	// Detection
	"max_distance_km":           "detection.max_distance_km",
	"impossible_travel_kmh":     "detection.impossible_travel_speed_kmh",
	"business_hours_start":      "detection.business_hours_start",
	"business_hours_end":        "detection.business_hours_end",
	"weekend_risk_multiplier":   "detection.weekend_risk_multiplier",
	"minimum_baseline_events":   "detection.minimum_baseline_events",
	"risk_threshold_suspicious": "detection.risk_threshold_suspicious",
	"risk_threshold_high":       "detection.risk_threshold_high",
	"risk_threshold_critical":   "detection.risk_threshold_critical",
	"max_risk_score":            "detection.max_risk_score",
	"dormant_after":             "detection.dormant_after",
	"velocity_window":           "detection.velocity_window",
	"velocity_threshold":        "detection.velocity_threshold",
	"failure_window":            "detection.failure_window",
	"failure_threshold":         "detection.failure_threshold",
	"suspicious_user_agents":    "detection.suspicious_user_agents",
	"security_posture":          "detection.multipliers.security_posture",
	"location_timeout":          "detection.location_timeout",
	"max_tracked_entities":      "detection.max_tracked_entities",

	// Alerting
	"alert_rate_limit_count":     "alerting.global_rate_limit_count",
	"alert_rate_limit_window":    "alerting.global_rate_limit_window",
	"alert_escalation_threshold": "alerting.escalation_threshold",
	"alert_escalation_window":    "alerting.escalation_window",
	"alert_cooldown":             "alerting.cooldown_per_rule",
	"alert_max_events":           "alerting.max_triggering_events",
	"alert_history_size":         "alerting.history_size",
	"alert_default_rules":        "alerting.default_rules",
	"sweep_interval":             "alerting.sweep_interval",

	// Notification
	"notify_retry_count":     "notification.retry_count",
	"notify_retry_backoff":   "notification.retry_backoff",
	"notify_max_backoff":     "notification.max_backoff",
	"notify_timeout":         "notification.timeout",
	"notify_rate_per_minute": "notification.rate_limit_per_minute",
	"notify_rate_burst":      "notification.rate_burst",
	"webhook_enabled":        "notification.webhook.enabled",
	"webhook_url":            "notification.webhook.url",
	"log_channel_enabled":    "notification.log.enabled",

	// Pipeline
	"queue_size":     "pipeline.queue_size",
	"shards":         "pipeline.shards",
	"batch_size":     "pipeline.batch_size",
	"batch_timeout":  "pipeline.batch_timeout",
	"drain_timeout":  "pipeline.drain_timeout",
	"event_log_size": "pipeline.event_log_size",

	// GeoIP
	"geoip_provider":     "geoip.provider",
	"geoip_http_url":     "geoip.http_url",
	"geoip_http_timeout": "geoip.http_timeout",
	"geoip_cache_size":   "geoip.cache_size",
	"geoip_cache_ttl":    "geoip.cache_ttl",

	// Storage
	"storage_backend": "storage.backend",
	"badger_path":     "storage.badger_path",
	"redis_url":       "storage.redis_url",
	"redis_addr":      "storage.redis_addr",
	"redis_db":        "storage.redis_db",
	"baseline_ttl":    "storage.baseline_ttl",
	"max_baselines":   "storage.max_baselines",

	// Ingest
	"nats_enabled":     "ingest.nats.enabled",
	"nats_url":         "ingest.nats.url",
	"nats_embedded":    "ingest.nats.embedded",
	"nats_store_dir":   "ingest.nats.store_dir",
	"nats_subject":     "ingest.nats.subject",
	"nats_stream":      "ingest.nats.stream_name",
	"nats_queue_group": "ingest.nats.queue_group",
	"nats_durable":     "ingest.nats.durable_name",
	"nats_subscribers": "ingest.nats.subscribers",
	"kafka_enabled":    "ingest.kafka.enabled",
	"kafka_brokers":    "ingest.kafka.brokers",
	"kafka_topic":      "ingest.kafka.topic",
	"kafka_group_id":   "ingest.kafka.group_id",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped, so unrelated environment
// does not leak into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
