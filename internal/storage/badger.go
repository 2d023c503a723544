// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/riskguard/internal/alerting"
	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/pipeline"
)

// Key prefixes for BadgerDB storage
const (
	baselineKeyPrefix  = "baseline:"
	alertKeyPrefix     = "alert:"
	alertIndexPrefix   = "alert_ts:"
	eventKeyPrefix     = "event:"
	defaultBaselineTTL = 180 * 24 * time.Hour
	defaultEventTTL    = 30 * 24 * time.Hour
)

// BadgerConfig configures the embedded database.
type BadgerConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	// BaselineTTL expires baselines that have not been saved for this long.
	BaselineTTL time.Duration
	// EventTTL expires processed-event records.
	EventTTL time.Duration
	// GCRatio is the value-log rewrite threshold used by Sweep.
	GCRatio float64
}

// BadgerStore implements detection.BaselineStore, alerting.AlertStore and
// pipeline.EventLog on one BadgerDB.
type BadgerStore struct {
	db  *badger.DB
	cfg BadgerConfig

	// alertMu serializes read-modify-write alert updates.
	alertMu sync.Mutex
	closed  bool
	mu      sync.RWMutex
}

// OpenBadger opens (or creates) the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if cfg.BaselineTTL <= 0 {
		cfg.BaselineTTL = defaultBaselineTTL
	}
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = defaultEventTTL
	}
	if cfg.GCRatio <= 0 || cfg.GCRatio >= 1 {
		cfg.GCRatio = 0.5
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required unless in-memory")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("baseline_ttl", cfg.BaselineTTL).
		Msg("Badger store opened")
	return &BadgerStore{db: db, cfg: cfg}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *BadgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// GetPattern implements detection.BaselineStore. Missing or expired keys
// return a new pattern.
func (s *BadgerStore) GetPattern(_ context.Context, key string) (*detection.UserPattern, error) {
	if err := s.checkOpen(); err != nil {
		return nil, fmt.Errorf("%w: %w", detection.ErrBaselineUnavailable, err)
	}

	var pattern *detection.UserPattern
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(baselineKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get baseline: %w", err)
		}
		return item.Value(func(val []byte) error {
			var p detection.UserPattern
			if err := json.Unmarshal(val, &p); err != nil {
				return fmt.Errorf("unmarshal baseline: %w", err)
			}
			pattern = p.Normalize()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if pattern == nil {
		return detection.NewUserPattern(key), nil
	}
	return pattern, nil
}

// SavePattern implements detection.BaselineStore. Every save refreshes the
// baseline TTL.
func (s *BadgerStore) SavePattern(_ context.Context, key string, pattern *detection.UserPattern) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(baselineKeyPrefix+key), data).WithTTL(s.cfg.BaselineTTL)
		return txn.SetEntry(e)
	})
}

func alertIndexKey(a *alerting.SecurityAlert) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", alertIndexPrefix, a.Timestamp.UnixNano(), a.ID))
}

// SaveAlert implements alerting.AlertStore.
func (s *BadgerStore) SaveAlert(_ context.Context, alert *alerting.SecurityAlert) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(alertKeyPrefix + alert.ID)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("alert %q: %w", alert.ID, alerting.ErrConflict)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check alert: %w", err)
		}
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set alert: %w", err)
		}
		if err := txn.Set(alertIndexKey(alert), []byte(alert.ID)); err != nil {
			return fmt.Errorf("set alert index: %w", err)
		}
		return nil
	})
}

func getAlert(txn *badger.Txn, id string) (*alerting.SecurityAlert, error) {
	item, err := txn.Get([]byte(alertKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("alert %q: %w", id, alerting.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	var alert alerting.SecurityAlert
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &alert)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal alert: %w", err)
	}
	if alert.NotificationsSent == nil {
		alert.NotificationsSent = []string{}
	}
	return &alert, nil
}

// GetAlert implements alerting.AlertStore.
func (s *BadgerStore) GetAlert(_ context.Context, id string) (*alerting.SecurityAlert, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var alert *alerting.SecurityAlert
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		alert, err = getAlert(txn, id)
		return err
	})
	return alert, err
}

// ListAlerts implements alerting.AlertStore by walking the time index
// newest first.
func (s *BadgerStore) ListAlerts(_ context.Context, filter alerting.AlertFilter) ([]*alerting.SecurityAlert, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = alerting.DefaultListLimit
	}

	out := make([]*alerting.SecurityAlert, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(alertIndexPrefix)
		seek := append([]byte(alertIndexPrefix), 0xFF)
		skipped := 0
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var id string
			if err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}
			alert, err := getAlert(txn, id)
			if errors.Is(err, alerting.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !filter.Matches(alert) {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			out = append(out, alert)
			if len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return out, nil
}

// updateAlert applies fn to the stored alert inside one transaction.
func (s *BadgerStore) updateAlert(id string, fn func(*alerting.SecurityAlert) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.alertMu.Lock()
	defer s.alertMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		alert, err := getAlert(txn, id)
		if err != nil {
			return err
		}
		if err := fn(alert); err != nil {
			return err
		}
		data, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("marshal alert: %w", err)
		}
		return txn.Set([]byte(alertKeyPrefix+id), data)
	})
}

// AcknowledgeAlert implements alerting.AlertStore.
func (s *BadgerStore) AcknowledgeAlert(_ context.Context, id, by, notes string, at time.Time) error {
	return s.updateAlert(id, func(a *alerting.SecurityAlert) error {
		return alerting.Acknowledge(a, by, notes, at)
	})
}

// ResolveAlert implements alerting.AlertStore.
func (s *BadgerStore) ResolveAlert(_ context.Context, id string, at time.Time) error {
	return s.updateAlert(id, func(a *alerting.SecurityAlert) error {
		return alerting.Resolve(a, at)
	})
}

// RecordNotification implements alerting.AlertStore.
func (s *BadgerStore) RecordNotification(_ context.Context, id, channel string) error {
	return s.updateAlert(id, func(a *alerting.SecurityAlert) error {
		alerting.MarkNotified(a, channel)
		return nil
	})
}

// RecordSuppression implements alerting.AlertStore.
func (s *BadgerStore) RecordSuppression(_ context.Context, id string, ev *detection.SecurityEvent, maxEvents int) error {
	return s.updateAlert(id, func(a *alerting.SecurityAlert) error {
		alerting.MarkSuppressed(a, ev, maxEvents)
		return nil
	})
}

// RecordEvent implements pipeline.EventLog.
func (s *BadgerStore) RecordEvent(_ context.Context, rec *pipeline.ProcessedEvent) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}
	id := ""
	if rec.Event != nil {
		id = rec.Event.ID
	}
	key := []byte(fmt.Sprintf("%s%020d:%s", eventKeyPrefix, rec.ProcessedAt.UnixNano(), id))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(s.cfg.EventTTL))
	})
}

// RecentEvents returns up to n processed-event records, newest first.
func (s *BadgerStore) RecentEvents(n int) ([]*pipeline.ProcessedEvent, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]*pipeline.ProcessedEvent, 0, n)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(append([]byte(eventKeyPrefix), 0xFF)); it.ValidForPrefix(prefix) && len(out) < n; it.Next() {
			var rec pipeline.ProcessedEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("unmarshal event record: %w", err)
			}
			out = append(out, &rec)
		}
		return nil
	})
	return out, err
}

// Sweep runs value-log garbage collection until nothing is rewritten.
// Expired TTL entries are reclaimed by badger itself; this returns the
// number of rewritten value-log files.
func (s *BadgerStore) Sweep() int {
	if s.checkOpen() != nil || s.cfg.InMemory {
		return 0
	}
	rewritten := 0
	for {
		err := s.db.RunValueLogGC(s.cfg.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			metrics.RecordBaselineError("gc")
			logging.Warn().Err(err).Msg("Badger value log GC failed")
			break
		}
		rewritten++
	}
	return rewritten
}

var (
	_ detection.BaselineStore = (*BadgerStore)(nil)
	_ alerting.AlertStore     = (*BadgerStore)(nil)
	_ pipeline.EventLog       = (*BadgerStore)(nil)
)
