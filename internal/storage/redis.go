// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/logging"
)

// RedisConfig configures the shared baseline store.
type RedisConfig struct {
	// URL takes precedence over Addr/Password/DB when set,
	// e.g. redis://:secret@localhost:6379/0
	URL          string
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	TTL          time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

func (c RedisConfig) options() (*redis.Options, error) {
	var opts *redis.Options
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		if c.Addr == "" {
			return nil, errors.New("redis addr or url is required")
		}
		opts = &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
	}
	opts.DialTimeout = durationOr(c.DialTimeout, 5*time.Second)
	opts.ReadTimeout = durationOr(c.ReadTimeout, 3*time.Second)
	opts.WriteTimeout = durationOr(c.WriteTimeout, 3*time.Second)
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	return opts, nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// RedisBaselineStore implements detection.BaselineStore on Redis.
type RedisBaselineStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBaselineStore connects and pings the server.
func NewRedisBaselineStore(ctx context.Context, cfg RedisConfig) (*RedisBaselineStore, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "riskguard:"
	}
	logging.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Redis baseline store connected")
	return &RedisBaselineStore{
		client: client,
		prefix: prefix + baselineKeyPrefix,
		ttl:    durationOr(cfg.TTL, defaultBaselineTTL),
	}, nil
}

// GetPattern returns the stored baseline for key or a new one.
func (s *RedisBaselineStore) GetPattern(ctx context.Context, key string) (*detection.UserPattern, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return detection.NewUserPattern(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get: %w", detection.ErrBaselineUnavailable, err)
	}
	var p detection.UserPattern
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal baseline: %w", err)
	}
	return p.Normalize(), nil
}

// SavePattern writes the baseline and refreshes its TTL.
func (s *RedisBaselineStore) SavePattern(ctx context.Context, key string, pattern *detection.UserPattern) error {
	data, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the client pool.
func (s *RedisBaselineStore) Close() error {
	return s.client.Close()
}

var _ detection.BaselineStore = (*RedisBaselineStore)(nil)
