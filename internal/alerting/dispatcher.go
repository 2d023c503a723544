// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package alerting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/resilience"
)

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Channel delivers alerts to one destination.
type Channel interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, alert *SecurityAlert) error
}

// DeliveryRecorder persists which channels received an alert.
// AlertStore implementations satisfy it.
type DeliveryRecorder interface {
	RecordNotification(ctx context.Context, alertID, channel string) error
}

// DispatcherConfig configures retries, timeouts and per-channel throttling.
type DispatcherConfig struct {
	RetryCount   int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	Timeout      time.Duration
	// RateLimitPerMinute is the per-channel send budget for non-critical
	// alerts. Zero disables the limiter.
	RateLimitPerMinute int
	RateBurst          int
	Breaker            resilience.BreakerConfig
}

// DefaultDispatcherConfig returns 3 retries from 1s up to 30s, a 10s call
// timeout and 60 sends per minute per channel.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		RetryCount:         3,
		RetryBackoff:       time.Second,
		MaxBackoff:         30 * time.Second,
		Timeout:            10 * time.Second,
		RateLimitPerMinute: 60,
		RateBurst:          10,
		Breaker:            resilience.DefaultBreakerConfig("notify"),
	}
}

// DispatchStats counts delivery outcomes since start.
type DispatchStats struct {
	Sent        int64 `json:"sent"`
	Failed      int64 `json:"failed"`
	RateLimited int64 `json:"rate_limited"`
	Retries     int64 `json:"retries"`
	InFlight    int64 `json:"in_flight"`
}

type channelState struct {
	channel Channel
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[interface{}]
}

// Dispatcher fans alerts out to registered channels. Delivery failures are
// logged and counted, never returned to the caller.
type Dispatcher struct {
	cfg      DispatcherConfig
	recorder DeliveryRecorder
	sleep    func(ctx context.Context, d time.Duration) error

	mu       sync.RWMutex
	channels map[string]*channelState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	sent        atomic.Int64
	failed      atomic.Int64
	rateLimited atomic.Int64
	retries     atomic.Int64
	inFlight    atomic.Int64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSleep replaces the backoff sleep. Tests use it to skip real waits.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// NewDispatcher creates a dispatcher. recorder may be nil.
func NewDispatcher(cfg DispatcherConfig, recorder DeliveryRecorder, opts ...DispatcherOption) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = def.RateBurst
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = def.Breaker
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:      cfg,
		recorder: recorder,
		sleep:    sleepContext,
		channels: make(map[string]*channelState),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterChannel adds a channel. Names must be unique.
func (d *Dispatcher) RegisterChannel(ch Channel) error {
	if ch == nil {
		return errors.New("register channel: nil channel")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	name := ch.Name()
	if _, exists := d.channels[name]; exists {
		return fmt.Errorf("channel %q: %w", name, ErrConflict)
	}

	st := &channelState{channel: ch}
	if d.cfg.RateLimitPerMinute > 0 {
		st.limiter = rate.NewLimiter(rate.Limit(float64(d.cfg.RateLimitPerMinute)/60.0), d.cfg.RateBurst)
	}
	breakerCfg := d.cfg.Breaker
	breakerCfg.Name = d.cfg.Breaker.Name + ":" + name
	st.breaker = resilience.NewCircuitBreaker(breakerCfg)
	d.channels[name] = st

	logging.Info().Str("channel", name).Bool("enabled", ch.Enabled()).Msg("registered notification channel")
	return nil
}

// Channels returns registered channel names in order.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch delivers alert in the background. The alert is copied, so the
// caller may keep using it.
func (d *Dispatcher) Dispatch(alert *SecurityAlert) error {
	d.mu.RLock()
	if d.closed.Load() {
		d.mu.RUnlock()
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	d.mu.RUnlock()

	snapshot := alert.Clone()
	d.inFlight.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inFlight.Add(-1)
		d.DispatchSync(d.ctx, snapshot)
	}()
	return nil
}

// DispatchSync delivers alert to its targets concurrently and returns the
// names of the channels that accepted it. Successful channels are appended
// to alert.NotificationsSent and reported to the recorder.
func (d *Dispatcher) DispatchSync(ctx context.Context, alert *SecurityAlert) []string {
	targets := d.targets(alert)
	if len(targets) == 0 {
		logging.Debug().Str("alert_id", alert.ID).Msg("no enabled channels for alert")
		return nil
	}

	ok := make([]bool, len(targets))
	var wg sync.WaitGroup
	for i, st := range targets {
		wg.Add(1)
		go func(i int, st *channelState) {
			defer wg.Done()
			ok[i] = d.deliver(ctx, st, alert)
		}(i, st)
	}
	wg.Wait()

	var delivered []string
	for i, st := range targets {
		if !ok[i] {
			continue
		}
		name := st.channel.Name()
		delivered = append(delivered, name)
		if !alert.HasNotified(name) {
			alert.NotificationsSent = append(alert.NotificationsSent, name)
		}
		if d.recorder != nil {
			if err := d.recorder.RecordNotification(ctx, alert.ID, name); err != nil {
				logging.Warn().Err(err).
					Str("alert_id", alert.ID).
					Str("channel", name).
					Msg("failed to record notification")
			}
		}
	}
	return delivered
}

// targets resolves the channels for alert. Critical alerts and alerts
// without an explicit list go to every enabled channel.
func (d *Dispatcher) targets(alert *SecurityAlert) []*channelState {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*channelState
	if alert.IsCritical() || len(alert.Channels) == 0 {
		for _, st := range d.channels {
			if st.channel.Enabled() {
				out = append(out, st)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].channel.Name() < out[j].channel.Name() })
		return out
	}
	for _, name := range alert.Channels {
		st, ok := d.channels[name]
		if !ok {
			logging.Warn().Str("alert_id", alert.ID).Str("channel", name).Msg("alert targets unknown channel")
			continue
		}
		if st.channel.Enabled() {
			out = append(out, st)
		}
	}
	return out
}

// deliver sends to one channel with throttling, breaker, timeout and retries.
func (d *Dispatcher) deliver(ctx context.Context, st *channelState, alert *SecurityAlert) bool {
	name := st.channel.Name()

	if st.limiter != nil && !alert.IsCritical() && !st.limiter.Allow() {
		d.rateLimited.Add(1)
		metrics.RecordNotification(name, "rate_limited", 0)
		logging.Debug().Str("alert_id", alert.ID).Str("channel", name).Msg("notification rate limited")
		return false
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= d.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			d.retries.Add(1)
			if err := d.sleep(ctx, d.backoff(attempt)); err != nil {
				lastErr = err
				break
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		_, err := st.breaker.Execute(func() (interface{}, error) {
			return nil, st.channel.Send(callCtx, alert)
		})
		cancel()

		if err == nil {
			d.sent.Add(1)
			metrics.RecordNotification(name, "sent", time.Since(start))
			return true
		}
		lastErr = err
		if resilience.IsOpen(err) || ctx.Err() != nil {
			break
		}
		logging.Debug().Err(err).
			Str("alert_id", alert.ID).
			Str("channel", name).
			Int("attempt", attempt+1).
			Msg("notification attempt failed")
	}

	d.failed.Add(1)
	metrics.RecordNotification(name, "failed", time.Since(start))
	logging.Error().Err(lastErr).
		Str("alert_id", alert.ID).
		Str("channel", name).
		Str("severity", string(alert.Severity)).
		Msg("failed to send alert")
	return false
}

// backoff returns the wait before retry attempt n (n >= 1):
// RetryBackoff * 2^(n-1), capped at MaxBackoff.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	wait := d.cfg.RetryBackoff
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	if wait > d.cfg.MaxBackoff {
		return d.cfg.MaxBackoff
	}
	return wait
}

// Wait blocks until every background dispatch finishes or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting alerts and waits for outstanding dispatches until
// ctx is done, then cancels whatever is still in flight.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed.Store(true)
	d.mu.Unlock()

	err := d.Wait(ctx)
	d.cancel()
	if err != nil {
		logging.Warn().Int64("in_flight", d.inFlight.Load()).Msg("notification dispatch cancelled at shutdown")
	}
	return err
}

// Stats returns delivery counters.
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Sent:        d.sent.Load(),
		Failed:      d.failed.Load(),
		RateLimited: d.rateLimited.Load(),
		Retries:     d.retries.Load(),
		InFlight:    d.inFlight.Load(),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
