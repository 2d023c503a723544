// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/riskguard/internal/alerting"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/ingest"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/pipeline"
	"github.com/tomtom215/riskguard/internal/storage"
	"github.com/tomtom215/riskguard/internal/supervisor"
	"github.com/tomtom215/riskguard/internal/supervisor/services"
)

// badgerGCInterval is how often the BadgerDB value log is compacted.
const badgerGCInterval = 10 * time.Minute

// stores holds the persistence chosen by storage.backend.
type stores struct {
	baselines detection.BaselineStore
	alerts    alerting.AlertStore
	events    pipeline.EventLog

	// sweepers run on the pipeline sweep tick.
	sweepers []pipeline.Sweeper
	// maintenance runs on its own schedule under the processing layer.
	maintenance []*services.PeriodicService
	closers     []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}
}

// openStores opens the configured backend. The redis backend shares
// baselines across instances; alerts and history stay in process memory.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}
	memoryAlertsAndEvents := func() {
		s.alerts = alerting.NewMemoryAlertStore(cfg.Alerting.HistorySize)
		s.events = pipeline.NewMemoryEventLog(cfg.Pipeline.EventLogSize)
	}

	switch cfg.Storage.Backend {
	case config.StorageBadger:
		db, err := storage.OpenBadger(cfg.ToBadger())
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		s.baselines, s.alerts, s.events = db, db, db
		s.closers = append(s.closers, db.Close)
		s.maintenance = append(s.maintenance, services.NewPeriodicService("badger-gc", badgerGCInterval,
			func(context.Context) int { return db.Sweep() }))

	case config.StorageRedis:
		rs, err := storage.NewRedisBaselineStore(ctx, cfg.ToRedis())
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.baselines = rs
		s.closers = append(s.closers, rs.Close)
		memoryAlertsAndEvents()

	default:
		mem := detection.NewMemoryBaselineStore(cfg.Storage.MaxBaselines, cfg.Storage.BaselineTTL)
		s.baselines = mem
		s.sweepers = append(s.sweepers, mem)
		memoryAlertsAndEvents()
	}

	logging.Info().Str("backend", cfg.Storage.Backend).Msg("Storage initialized")
	return s, nil
}

// buildEngine wires detection, rules, governance and notification into the
// event pipeline.
func buildEngine(cfg *config.Config, st *stores) (*pipeline.Engine, error) {
	sweepers := append([]pipeline.Sweeper(nil), st.sweepers...)

	resolver, err := cfg.ToResolver()
	if err != nil {
		return nil, err
	}
	var location detection.LocationResolver
	if resolver != nil {
		location = resolver
		sweepers = append(sweepers, resolver)
		logging.Info().Str("provider", cfg.GeoIP.Provider).Msg("GeoIP resolver enabled")
	} else {
		logging.Warn().Msg("GeoIP disabled: location analysis only uses caller-supplied coordinates")
	}

	detector := detection.NewDetector(cfg.ToDetection(), st.baselines, location)

	rules := alerting.NewRuleEngine(cfg.ToRuleEngine())
	ruleSet, err := cfg.ToRules()
	if err != nil {
		return nil, err
	}
	for _, r := range ruleSet {
		if err := rules.AddRule(r); err != nil {
			return nil, fmt.Errorf("add rule %q: %w", r.ID, err)
		}
	}
	logging.Info().Int("rules", rules.Len()).Msg("Alert rules loaded")

	dispatcher := alerting.NewDispatcher(cfg.ToDispatcher(), st.alerts)
	if err := registerChannels(cfg, dispatcher); err != nil {
		return nil, err
	}

	return pipeline.NewEngine(cfg.ToPipeline(), pipeline.Components{
		Detector:   detector,
		Rules:      rules,
		Governor:   alerting.NewGovernor(cfg.ToGovernor()),
		Dispatcher: dispatcher,
		Alerts:     st.alerts,
		Events:     st.events,
	}, pipeline.WithSweepers(sweepers...))
}

func registerChannels(cfg *config.Config, d *alerting.Dispatcher) error {
	if err := d.RegisterChannel(alerting.NewLogChannel(cfg.Notification.Log.Enabled)); err != nil {
		return fmt.Errorf("register log channel: %w", err)
	}
	if cfg.Notification.Webhook.Enabled {
		if err := d.RegisterChannel(alerting.NewWebhookChannel(cfg.Notification.Webhook)); err != nil {
			return fmt.Errorf("register webhook channel: %w", err)
		}
		logging.Info().Str("url", cfg.Notification.Webhook.WebhookURL).Msg("Webhook notifications enabled")
	}
	return nil
}

// addIngesters adds the enabled broker consumers to the ingest layer.
func addIngesters(cfg *config.Config, tree *supervisor.SupervisorTree, sink ingest.Sink) error {
	if cfg.Ingest.NATS.Enabled {
		n, err := ingest.NewNATSIngester(cfg.ToNATS(), sink)
		if err != nil {
			return fmt.Errorf("nats ingester: %w", err)
		}
		tree.AddIngestService(n)
		logging.Info().
			Str("subject", cfg.Ingest.NATS.Subject).
			Bool("embedded", cfg.Ingest.NATS.Embedded).
			Msg("NATS ingestion enabled")
	}
	if cfg.Ingest.Kafka.Enabled {
		k, err := ingest.NewKafkaIngester(cfg.ToKafka(), sink)
		if err != nil {
			return fmt.Errorf("kafka ingester: %w", err)
		}
		tree.AddIngestService(k)
		logging.Info().
			Strs("brokers", cfg.Ingest.Kafka.Brokers).
			Str("topic", cfg.Ingest.Kafka.Topic).
			Msg("Kafka ingestion enabled")
	}
	return nil
}
