// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/riskguard/internal/api"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/supervisor"
	"github.com/tomtom215/riskguard/internal/supervisor/services"
)

func main() {
	if err := config.LoadDotEnv(""); err != nil {
		logging.Warn().Err(err).Msg("Ignoring unreadable .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("storage", cfg.Storage.Backend).
		Str("geoip", cfg.GeoIP.Provider).
		Bool("nats", cfg.Ingest.NATS.Enabled).
		Bool("kafka", cfg.Ingest.Kafka.Enabled).
		Msg("Starting Riskguard")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Riskguard stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := buildEngine(cfg, st)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(engine, middlewareConfig(cfg))
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	if need := cfg.Pipeline.DrainTimeout + cfg.Server.ShutdownTimeout; treeCfg.ShutdownTimeout < need {
		treeCfg.ShutdownTimeout = need
	}
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddProcessingService(engine)
	for _, svc := range st.maintenance {
		tree.AddProcessingService(svc)
	}
	if err := addIngesters(cfg, tree, engine); err != nil {
		return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, draining")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	m := engine.GetMetrics()
	logging.Info().
		Int64("events_processed", m.EventsProcessed).
		Int64("alerts_generated", m.AlertsGenerated).
		Msg("Final pipeline counters")
	return nil
}

func middlewareConfig(cfg *config.Config) api.MiddlewareConfig {
	mw := api.DefaultMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mw.RateLimitRequests = cfg.Server.RateLimitRequests
	mw.RateLimitWindow = cfg.Server.RateLimitWindow
	mw.RateLimitDisabled = cfg.Server.RateLimitDisabled
	return mw
}
