// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

// Package logging provides centralized zerolog-based structured logging for Riskguard.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("rule_id", rule.ID).Msg("Rule added")
//	logging.Error().Err(err).Str("channel", name).Msg("Notification failed")
//
// # Component Loggers
//
//	logger := logging.WithComponent("pipeline")
//	logger.Info().Int("shards", n).Msg("Workers started")
//
// # Context-Aware Logging
//
// The pipeline tags each event's context with its ID so downstream log lines
// can be correlated:
//
//	ctx = logging.ContextWithEventID(ctx, ev.ID)
//	logging.Ctx(ctx).Warn().Err(err).Msg("Baseline store unavailable")
//
// # Adapters
//
//   - NewSlogLogger: *slog.Logger for sutureslog
//   - NewWatermillLogger: watermill.LoggerAdapter for the NATS subscriber
//
// Always terminate log chains with .Msg() or .Send().
package logging
