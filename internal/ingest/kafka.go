// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tomtom215/riskguard/internal/logging"
)

const kafkaTransport = "kafka"

// KafkaConfig configures consumer-group ingestion.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
	// RetryBackoff is the pause before refetching a message rejected by a
	// full queue.
	RetryBackoff time.Duration
}

// DefaultKafkaConfig returns production defaults.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "security-events",
		GroupID:      "riskguard",
		MinBytes:     1,
		MaxBytes:     10 << 20,
		MaxWait:      500 * time.Millisecond,
		RetryBackoff: 250 * time.Millisecond,
	}
}

// messageReader is the subset of *kafka.Reader the ingester uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaIngester consumes events from a Kafka topic.
type KafkaIngester struct {
	cfg       KafkaConfig
	sink      Sink
	newReader func(KafkaConfig) messageReader
}

// NewKafkaIngester validates cfg. The reader is created in Serve.
func NewKafkaIngester(cfg KafkaConfig, sink Sink) (*KafkaIngester, error) {
	if sink == nil {
		return nil, errors.New("ingest sink is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	return &KafkaIngester{cfg: cfg, sink: sink, newReader: newKafkaReader}, nil
}

func newKafkaReader(cfg KafkaConfig) messageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	})
}

// String implements fmt.Stringer for suture logging.
func (k *KafkaIngester) String() string {
	return "kafka-ingester"
}

// Serve implements suture.Service.
func (k *KafkaIngester) Serve(ctx context.Context) error {
	reader := k.newReader(k.cfg)
	defer func() {
		if err := reader.Close(); err != nil {
			logging.Warn().Err(err).Msg("Closing Kafka reader")
		}
	}()
	logging.Info().Strs("brokers", k.cfg.Brokers).Str("topic", k.cfg.Topic).Msg("Kafka ingestion started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}

		if err := k.deliver(ctx, msg); err != nil {
			return err
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("commit kafka offset: %w", err)
		}
	}
}

// deliver retries a message while the queue rejects all of it.
func (k *KafkaIngester) deliver(ctx context.Context, msg kafka.Message) error {
	for {
		out := Deliver(k.sink, kafkaTransport, msg.Value)
		if out.Err != nil {
			logging.Warn().Err(out.Err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Discarding Kafka message")
		}
		if !out.Retry() {
			return nil
		}

		timer := time.NewTimer(k.cfg.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
