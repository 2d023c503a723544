// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package ingest feeds security events from message brokers into the pipeline.

Two transports are provided, both running as suture services:

  - NATSIngester consumes a JetStream subject through Watermill, optionally
    starting an embedded NATS server for single-node deployments.
  - KafkaIngester consumes a topic with a consumer group through kafka-go.

Payloads are JSON, either a single event object or an array of events.
Malformed payloads are counted and discarded. When the pipeline queue is
full and nothing from a message was accepted, the message is left for
redelivery (NATS nack, Kafka refetch after backoff).
*/
package ingest
