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

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/riskguard/internal/logging"
)

const natsTransport = "nats"

// NATSConfig configures JetStream ingestion.
type NATSConfig struct {
	URL string
	// Embedded starts an in-process server and ignores URL.
	Embedded bool
	Server   EmbeddedServerConfig

	Subject          string
	StreamName       string
	QueueGroup       string
	DurableName      string
	SubscribersCount int
	AckWait          time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
}

// DefaultNATSConfig returns production defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:              "nats://127.0.0.1:4222",
		Server:           EmbeddedServerConfig{Host: "127.0.0.1", Port: 4222, StoreDir: "/data/nats/jetstream"},
		Subject:          "security.events",
		QueueGroup:       "riskguard",
		DurableName:      "riskguard-ingest",
		SubscribersCount: 4,
		AckWait:          30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// NATSIngester consumes events from a JetStream subject.
type NATSIngester struct {
	cfg    NATSConfig
	sink   Sink
	logger watermill.LoggerAdapter
}

// NewNATSIngester validates cfg. Connections are made in Serve.
func NewNATSIngester(cfg NATSConfig, sink Sink) (*NATSIngester, error) {
	if sink == nil {
		return nil, errors.New("ingest sink is required")
	}
	if cfg.Subject == "" {
		return nil, errors.New("nats subject is required")
	}
	if !cfg.Embedded && cfg.URL == "" {
		return nil, errors.New("nats url is required without an embedded server")
	}
	if cfg.SubscribersCount <= 0 {
		cfg.SubscribersCount = 1
	}
	return &NATSIngester{
		cfg:    cfg,
		sink:   sink,
		logger: logging.NewWatermillLogger(),
	}, nil
}

// String implements fmt.Stringer for suture logging.
func (n *NATSIngester) String() string {
	return "nats-ingester"
}

// Serve implements suture.Service. It returns when ctx is canceled or the
// subscription ends.
func (n *NATSIngester) Serve(ctx context.Context) error {
	url := n.cfg.URL
	if n.cfg.Embedded {
		srv, err := StartEmbeddedServer(n.cfg.Server)
		if err != nil {
			return err
		}
		defer srv.Shutdown()
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	sub, err := n.newSubscriber(url)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Close(); err != nil {
			logging.Warn().Err(err).Msg("Closing NATS subscriber")
		}
	}()

	messages, err := sub.Subscribe(ctx, n.cfg.Subject)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", n.cfg.Subject, err)
	}
	logging.Info().Str("subject", n.cfg.Subject).Str("url", url).Msg("NATS ingestion started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			n.handle(msg)
		}
	}
}

func (n *NATSIngester) newSubscriber(url string) (message.Subscriber, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(n.cfg.MaxReconnects),
		natsgo.ReconnectWait(n.cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				n.logger.Error("NATS ingest disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			n.logger.Info("NATS ingest reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(n.cfg.MaxDeliver),
		natsgo.MaxAckPending(n.cfg.MaxAckPending),
		natsgo.AckWait(n.cfg.AckWait),
		natsgo.DeliverNew(),
	}

	// Wildcard subjects cannot name a stream, so bind to an existing one.
	autoProvision := true
	if n.cfg.StreamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(n.cfg.StreamName))
		autoProvision = false
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: n.cfg.QueueGroup,
		SubscribersCount: n.cfg.SubscribersCount,
		AckWaitTimeout:   n.cfg.AckWait,
		CloseTimeout:     n.cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision:    autoProvision,
			SubscribeOptions: subOpts,
			DurablePrefix:    n.cfg.DurableName,
		},
	}, n.logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return sub, nil
}

// handle acks everything except payloads rejected wholesale by a full queue.
func (n *NATSIngester) handle(msg *message.Message) {
	out := Deliver(n.sink, natsTransport, msg.Payload)
	if out.Err != nil {
		logging.Warn().Err(out.Err).Str("message_uuid", msg.UUID).Msg("Discarding NATS message")
	}
	if out.Retry() {
		msg.Nack()
		return
	}
	msg.Ack()
}
