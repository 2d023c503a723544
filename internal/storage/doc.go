// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package storage provides durable backends for baselines, alerts and the
processed-event log.

BadgerStore keeps everything in one embedded BadgerDB:

	baseline:<entity>            UserPattern JSON, expires after BaselineTTL
	alert:<id>                   SecurityAlert JSON
	alert_ts:<unix-nanos>:<id>   time index for newest-first listing
	event:<unix-nanos>:<id>      ProcessedEvent JSON, expires after EventTTL

RedisBaselineStore keeps baselines in Redis so several riskguard instances
can share them. Each entity must still be owned by a single pipeline shard
across the fleet for updates to stay lossless.
*/
package storage
