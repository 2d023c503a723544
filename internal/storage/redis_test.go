// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package storage

import (
	"context"
	"testing"
	"time"
)

func TestRedisConfigOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      RedisConfig
		wantAddr string
		wantDB   int
		wantErr  bool
	}{
		{"addr", RedisConfig{Addr: "cache:6379", DB: 2}, "cache:6379", 2, false},
		{"url wins", RedisConfig{URL: "redis://:secret@redis.internal:6380/3", Addr: "ignored:1"}, "redis.internal:6380", 3, false},
		{"bad url", RedisConfig{URL: "http://nope"}, "", 0, true},
		{"missing", RedisConfig{}, "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := tt.cfg.options()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("options: %v", err)
			}
			if opts.Addr != tt.wantAddr || opts.DB != tt.wantDB {
				t.Errorf("addr=%s db=%d, want %s db=%d", opts.Addr, opts.DB, tt.wantAddr, tt.wantDB)
			}
			if opts.DialTimeout != 5*time.Second {
				t.Errorf("DialTimeout = %v, want default 5s", opts.DialTimeout)
			}
		})
	}
}

func TestNewRedisBaselineStoreUnreachable(t *testing.T) {
	ctx := context.Background()
	_, err := NewRedisBaselineStore(ctx, RedisConfig{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected ping error for unreachable server")
	}
}
