// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package services

import (
	"context"
	"time"

	"github.com/tomtom215/riskguard/internal/logging"
)

// TaskFunc is one run of a periodic task. It returns how many items it
// cleaned up, which is logged at debug level.
type TaskFunc func(ctx context.Context) int

// PeriodicService runs a maintenance task on a fixed interval, for example
// BadgerDB value-log GC or sweeping the geoip cache.
//
// A panic inside the task is recovered and logged; the service keeps its
// schedule instead of being restarted.
//
//	svc := services.NewPeriodicService("badger-gc", 10*time.Minute, func(context.Context) int {
//	    return store.Sweep()
//	})
//	tree.AddProcessingService(svc)
type PeriodicService struct {
	name     string
	interval time.Duration
	task     TaskFunc
}

// NewPeriodicService creates the service. A non-positive interval means one minute.
func NewPeriodicService(name string, interval time.Duration, task TaskFunc) *PeriodicService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PeriodicService{name: name, interval: interval, task: task}
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *PeriodicService) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Str("task", p.name).Interface("panic", r).Msg("Periodic task panicked")
		}
	}()

	start := time.Now()
	n := p.task(ctx)
	logging.Debug().
		Str("task", p.name).
		Int("cleaned", n).
		Dur("duration", time.Since(start)).
		Msg("Periodic task finished")
}

func (p *PeriodicService) String() string {
	return p.name
}
