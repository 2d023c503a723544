// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package main is the entry point for the Riskguard server.

Riskguard scores authentication and access events against per-user
behavioral baselines and turns them into governed, deduplicated alerts.

# Application Architecture

	RootSupervisor ("riskguard")
	├── ProcessingSupervisor ("processing-layer")
	│   ├── event-pipeline (detection, rules, governor, dispatch)
	│   └── badger-gc (STORAGE_BACKEND=badger)
	├── IngestSupervisor ("ingest-layer")
	│   ├── nats-ingester (NATS_ENABLED=true)
	│   └── kafka-ingester (KAFKA_ENABLED=true)
	└── APISupervisor ("api-layer")
	    └── http-server (POST /api/v1/events, admin API, /metrics)

Startup order:

 1. Configuration: .env, then Koanf v2 defaults, config.yaml and environment
 2. Logging: zerolog with JSON or console output
 3. Storage: memory, BadgerDB, or Redis baselines
 4. GeoIP: static CIDR table or HTTP lookup behind an LRU and circuit breaker
 5. Pipeline: detector, rule engine, governor and notification dispatcher
 6. Supervisor tree: suture v4 with sutureslog events
 7. HTTP server: chi router with request IDs, CORS and per-IP rate limits

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server stops accepting
requests, consumers stop fetching, and the pipeline drains queued events
for up to pipeline.drain_timeout before stores are closed.

# Example Usage

Development with defaults (memory storage, no geoip):

	LOG_FORMAT=console ./riskguard

Embedded JetStream and BadgerDB:

	export NATS_ENABLED=true NATS_EMBEDDED=true
	export STORAGE_BACKEND=badger BADGER_PATH=/data/riskguard
	./riskguard

Submitting an event:

	curl -X POST localhost:8080/api/v1/events -d '{
	  "id": "evt-1", "event_type": "login_success", "user_id": "alice",
	  "ip_address": "203.0.113.7", "timestamp": "2026-10-14T09:30:00Z"
	}'
*/
package main
