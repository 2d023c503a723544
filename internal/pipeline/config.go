// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package pipeline

import (
	"runtime"
	"time"

	"github.com/tomtom215/riskguard/internal/alerting"
)

// Config configures queueing, batching and shutdown.
type Config struct {
	// QueueSize is the total queue capacity, split evenly across shards.
	QueueSize int
	// Shards is the number of workers. Each entity key maps to one shard.
	Shards       int
	BatchSize    int
	BatchTimeout time.Duration
	// DrainTimeout bounds Stop when its context has no deadline.
	DrainTimeout time.Duration
	// SweepInterval is how often expired window and cache state is cleared.
	SweepInterval time.Duration
	// DefaultCooldown applies when a fired rule was removed before admission.
	DefaultCooldown     time.Duration
	MaxTriggeringEvents int
}

// DefaultConfig returns a 10000-event queue with one shard per CPU.
func DefaultConfig() Config {
	shards := runtime.NumCPU()
	if shards > 16 {
		shards = 16
	}
	return Config{
		QueueSize:           10000,
		Shards:              shards,
		BatchSize:           100,
		BatchTimeout:        50 * time.Millisecond,
		DrainTimeout:        30 * time.Second,
		SweepInterval:       time.Minute,
		DefaultCooldown:     alerting.DefaultCooldown,
		MaxTriggeringEvents: 10,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Shards <= 0 {
		c.Shards = def.Shards
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.QueueSize < c.Shards {
		c.QueueSize = c.Shards
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = def.BatchTimeout
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = def.DrainTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.DefaultCooldown <= 0 {
		c.DefaultCooldown = def.DefaultCooldown
	}
	if c.MaxTriggeringEvents <= 0 {
		c.MaxTriggeringEvents = def.MaxTriggeringEvents
	}
	return c
}
