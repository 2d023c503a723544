// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package config provides centralized configuration management for Riskguard.

# Configuration Sources

Load layers three sources, later ones overriding earlier ones:

  - Built-in defaults (defaultConfig)
  - An optional YAML file: CONFIG_PATH, else the first of DefaultConfigPaths
  - Environment variables listed in envMappings

A .env file can be loaded into the environment first with LoadDotEnv.
Comma-separated environment values are split for list fields such as
CORS_ORIGINS, SUSPICIOUS_USER_AGENTS and KAFKA_BROKERS.

# Example config.yaml

	server:
	  port: 8080
	detection:
	  risk_threshold_suspicious: 40
	  multipliers:
	    roles:
	      admin: 1.5
	alerting:
	  default_rules: true
	  rules:
	    - id: admin-login
	      alert_type: privileged_login
	      alert_severity: high
	      event_types: [login_success]
	      min_risk_score: 30
	notification:
	  webhook:
	    enabled: true
	    url: https://hooks.example.com/riskguard
	geoip:
	  provider: static
	  static:
	    - cidr: 10.0.0.0/8
	      country: Internal
	storage:
	  backend: badger
	  badger_path: /data/riskguard

# Conversion

The To* methods translate sections into the settings types of the packages
they configure (detection, alerting, pipeline, geoip, storage, ingest), so
those packages never import config.
*/
package config
