// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

/*
Package supervisor provides process supervision for Riskguard using suture v4.

Every long-running component runs as a suture.Service under a three-layer
tree, so a crash restarts only the failing service with backoff:

	RootSupervisor ("riskguard")
	├── ProcessingSupervisor ("processing-layer")
	│   ├── event-pipeline (pipeline.Engine, also runs store and cache sweeps)
	│   └── badger-gc (if STORAGE_BACKEND=badger)
	├── IngestSupervisor ("ingest-layer")
	│   ├── nats-ingester (if NATS_ENABLED)
	│   └── kafka-ingester (if KAFKA_ENABLED)
	└── APISupervisor ("api-layer")
	    └── http-server

Supervisor events (start, stop, failure, backoff) are logged through
sutureslog on the slog bridge to the zerolog logger.

# Usage

	logger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddProcessingService(engine)
	tree.AddIngestService(natsIngester)
	tree.AddAPIService(services.NewHTTPServerService(server, 30*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("supervisor exited")
	}

Events a consumer hands over after the pipeline stopped fail with
pipeline.ErrNotRunning and are redelivered by the broker.

# See Also

  - internal/supervisor/services: HTTP server and periodic task wrappers
  - github.com/thejerf/suture/v4
*/
package supervisor
