// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/tomtom215/riskguard/internal/alerting"
	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
)

// Sweeper is state that periodically drops expired entries.
type Sweeper interface {
	Sweep() int
}

// Components are the collaborators an Engine drives. Detector, Rules,
// Governor and Dispatcher are required.
type Components struct {
	Detector   *detection.Detector
	Rules      *alerting.RuleEngine
	Governor   *alerting.Governor
	Dispatcher *alerting.Dispatcher
	// Alerts defaults to an in-memory store.
	Alerts alerting.AlertStore
	// Events defaults to an in-memory ring.
	Events EventLog
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the processing clock used for rule windows and
// admin timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSweepers registers extra state cleared on every sweep tick.
func WithSweepers(s ...Sweeper) Option {
	return func(e *Engine) {
		e.sweepers = append(e.sweepers, s...)
	}
}

// Engine is the event pipeline: a sharded bounded queue drained by one
// worker per shard. Each event runs detection, rule evaluation, governance,
// storage and asynchronous dispatch.
//
// Lifecycle:
//
//	engine, _ := pipeline.NewEngine(cfg, components)
//	_ = engine.Start(ctx)
//	_ = engine.Enqueue(event)
//	_ = engine.Stop(shutdownCtx)
//
// Serve wraps Start and Stop for the supervisor tree.
type Engine struct {
	cfg        Config
	detector   *detection.Detector
	rules      *alerting.RuleEngine
	governor   *alerting.Governor
	dispatcher *alerting.Dispatcher
	alerts     alerting.AlertStore
	events     EventLog
	sweepers   []Sweeper
	now        func() time.Time

	// mu guards the queues against Enqueue racing Stop's close.
	mu      sync.RWMutex
	running bool
	queues  []chan *detection.SecurityEvent

	runCtx    context.Context
	runCancel context.CancelFunc
	workers   sync.WaitGroup
	sweepDone chan struct{}

	received         atomic.Int64
	processed        atomic.Int64
	dropped          atomic.Int64
	alertsGenerated  atomic.Int64
	alertsSuppressed atomic.Int64
	escalations      atomic.Int64
	processingNanos  atomic.Int64

	errMu  sync.Mutex
	errors map[string]int64
}

// NewEngine validates the components and builds an engine. The engine does
// not accept events until Start.
func NewEngine(cfg Config, c Components, opts ...Option) (*Engine, error) {
	if c.Detector == nil || c.Rules == nil || c.Governor == nil || c.Dispatcher == nil {
		return nil, errors.New("pipeline: detector, rules, governor and dispatcher are required")
	}
	if c.Alerts == nil {
		c.Alerts = alerting.NewMemoryAlertStore(0)
	}
	if c.Events == nil {
		c.Events = NewMemoryEventLog(0)
	}

	e := &Engine{
		cfg:        cfg.withDefaults(),
		detector:   c.Detector,
		rules:      c.Rules,
		governor:   c.Governor,
		dispatcher: c.Dispatcher,
		alerts:     c.Alerts,
		events:     c.Events,
		now:        time.Now,
		errors:     make(map[string]int64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start provisions the shard queues and workers and the sweeper.
func (e *Engine) Start(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}

	perShard := e.cfg.QueueSize / e.cfg.Shards
	e.queues = make([]chan *detection.SecurityEvent, e.cfg.Shards)
	for i := range e.queues {
		e.queues[i] = make(chan *detection.SecurityEvent, perShard)
	}
	e.runCtx, e.runCancel = context.WithCancel(context.Background())
	e.sweepDone = make(chan struct{})

	for i, q := range e.queues {
		e.workers.Add(1)
		go e.worker(e.runCtx, i, q)
	}
	go e.sweepLoop(e.runCtx, e.sweepDone)

	e.running = true
	logging.Info().
		Int("shards", e.cfg.Shards).
		Int("queue_per_shard", perShard).
		Int("batch_size", e.cfg.BatchSize).
		Dur("batch_timeout", e.cfg.BatchTimeout).
		Msg("Event pipeline started")
	return nil
}

// Stop closes intake, drains queued events and waits for workers and
// outstanding dispatches until ctx is done (or DrainTimeout when ctx has no
// deadline). Work still pending at that point is cancelled.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	for _, q := range e.queues {
		close(q)
	}
	e.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.DrainTimeout)
		defer cancel()
	}

	drained := make(chan struct{})
	go func() {
		e.workers.Wait()
		close(drained)
	}()

	var stopErr error
	select {
	case <-drained:
	case <-ctx.Done():
		stopErr = fmt.Errorf("drain queue: %w", ctx.Err())
		logging.Warn().Int("queued", e.QueueDepth()).Msg("Drain timeout reached, cancelling workers")
		e.runCancel()
		<-drained
	}

	if err := e.dispatcher.Wait(ctx); err != nil {
		if stopErr == nil {
			stopErr = fmt.Errorf("wait for dispatch: %w", err)
		}
		// Cancels the remaining in-flight deliveries.
		_ = e.dispatcher.Close(ctx)
	}

	e.runCancel()
	<-e.sweepDone

	logging.Info().
		Int64("processed", e.processed.Load()).
		Int64("dropped", e.dropped.Load()).
		Msg("Event pipeline stopped")
	return stopErr
}

// Serve implements suture.Service: it starts the engine, blocks until ctx
// is cancelled, then stops with the drain timeout.
func (e *Engine) Serve(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), e.cfg.DrainTimeout)
	defer cancel()
	if err := e.Stop(stopCtx); err != nil {
		logging.Warn().Err(err).Msg("Event pipeline stopped with pending work")
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (e *Engine) String() string {
	return "event-pipeline"
}

// IsRunning reports whether the engine accepts events.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Enqueue hands ev to its shard without blocking. It returns ErrQueueFull
// when the shard queue is full and ErrNotRunning when the engine is stopped.
// Processing errors are never reported here.
func (e *Engine) Enqueue(ev *detection.SecurityEvent) error {
	if ev == nil {
		return ErrNilEvent
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.running {
		e.countDrop("not_running")
		return ErrNotRunning
	}
	e.received.Add(1)

	select {
	case e.queues[e.shardFor(ev)] <- ev:
		return nil
	default:
		e.countDrop(ErrorKindQueueFull)
		e.countError(ErrorKindQueueFull)
		return ErrQueueFull
	}
}

// QueueDepth returns the number of queued events across all shards.
func (e *Engine) QueueDepth() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	depth := 0
	for _, q := range e.queues {
		depth += len(q)
	}
	return depth
}

// shardFor maps the event's entity to a shard so one worker owns each
// baseline. Events without an entity share shard 0.
func (e *Engine) shardFor(ev *detection.SecurityEvent) int {
	key := ev.EntityKey()
	if key == "" || len(e.queues) == 1 {
		return 0
	}
	return int(murmur3.Sum32([]byte(key)) % uint32(len(e.queues)))
}

func (e *Engine) countDrop(reason string) {
	e.dropped.Add(1)
	metrics.RecordEventDropped(reason)
}

func (e *Engine) countError(kind string) {
	e.errMu.Lock()
	e.errors[kind]++
	e.errMu.Unlock()
}

// worker drains one shard in batches until the queue is closed or ctx is
// cancelled.
func (e *Engine) worker(ctx context.Context, shard int, queue <-chan *detection.SecurityEvent) {
	defer e.workers.Done()

	log := logging.WithShard("pipeline", shard)
	batch := make([]*detection.SecurityEvent, 0, e.cfg.BatchSize)
	timer := time.NewTimer(e.cfg.BatchTimeout)
	defer timer.Stop()

	for {
		batch = batch[:0]

		// Block for the first event of the batch.
		select {
		case ev, ok := <-queue:
			if !ok {
				return
			}
			batch = append(batch, ev)
		case <-ctx.Done():
			return
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(e.cfg.BatchTimeout)

		closed := false
	fill:
		for len(batch) < e.cfg.BatchSize {
			select {
			case ev, ok := <-queue:
				if !ok {
					closed = true
					break fill
				}
				batch = append(batch, ev)
			case <-timer.C:
				break fill
			case <-ctx.Done():
				break fill
			}
		}

		for _, ev := range batch {
			if ctx.Err() != nil {
				log.Warn().Int("abandoned", len(batch)).Msg("Worker cancelled with events in batch")
				return
			}
			e.processSafe(ctx, ev)
		}
		metrics.SetQueueDepth(e.QueueDepth())

		if closed {
			return
		}
	}
}

// processSafe isolates a panicking event from the rest of the batch.
func (e *Engine) processSafe(ctx context.Context, ev *detection.SecurityEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.countError(ErrorKindPanic)
			metrics.RecordEventProcessed("panic", 0)
			logging.Error().
				Str("event_id", ev.ID).
				Interface("panic", r).
				Msg("Recovered from panic while processing event")
		}
	}()
	e.process(ctx, ev)
}

// process runs one event through the full pipeline.
func (e *Engine) process(ctx context.Context, ev *detection.SecurityEvent) {
	start := time.Now()
	ctx = logging.ContextWithEventID(ctx, ev.ID)
	rec := &ProcessedEvent{Event: ev, AlertIDs: []string{}}

	result, err := e.detector.Analyze(ctx, ev)
	if err != nil {
		e.countError(ErrorKindAnalyze)
		rec.Error = err.Error()
		logging.Warn().Err(err).Str("event_id", ev.ID).Msg("Event analysis failed")
	} else {
		rec.Result = result
		rec.AlertIDs, rec.Suppressed = e.generate(ctx, ev, result)
	}

	elapsed := time.Since(start)
	rec.ProcessedAt = e.now()
	rec.DurationMs = float64(elapsed.Microseconds()) / 1000
	if err := e.events.RecordEvent(ctx, rec); err != nil {
		e.countError(ErrorKindEventLog)
		logging.Warn().Err(err).Str("event_id", ev.ID).Msg("Failed to record processed event")
	}

	e.processed.Add(1)
	e.processingNanos.Add(int64(elapsed))
	status := "ok"
	if rec.Error != "" {
		status = "error"
	}
	metrics.RecordEventProcessed(status, elapsed)
}

// generate evaluates rules and admits, stores and dispatches the resulting
// alerts. It returns the IDs of stored alerts and the suppression count.
func (e *Engine) generate(ctx context.Context, ev *detection.SecurityEvent, result *detection.AnalysisResult) ([]string, int) {
	now := e.now()
	ids := []string{}
	suppressed := 0

	for _, candidate := range e.rules.Evaluate(ev, result, now) {
		cooldown := e.cfg.DefaultCooldown
		if rule, err := e.rules.Rule(candidate.RuleID); err == nil {
			cooldown = rule.Cooldown
		}

		verdict := e.governor.Admit(candidate, cooldown)
		switch verdict.Decision {
		case alerting.DecisionSuppressCooldown:
			suppressed++
			e.alertsSuppressed.Add(1)
			if err := e.alerts.RecordSuppression(ctx, verdict.ExistingAlertID, ev, e.cfg.MaxTriggeringEvents); err != nil {
				e.countError(ErrorKindSuppression)
				logging.Debug().Err(err).
					Str("event_id", ev.ID).
					Str("alert_id", verdict.ExistingAlertID).
					Msg("Could not record suppression on stored alert")
			}
			continue
		case alerting.DecisionSuppressRateLimit:
			suppressed++
			e.alertsSuppressed.Add(1)
			continue
		}

		if e.emit(ctx, ev, candidate) {
			ids = append(ids, candidate.ID)
		} else {
			e.governor.Release(candidate)
		}
		if verdict.Escalation != nil {
			e.escalations.Add(1)
			if e.emit(ctx, ev, verdict.Escalation) {
				ids = append(ids, verdict.Escalation.ID)
			}
		}
	}
	return ids, suppressed
}

// emit stores an admitted alert and schedules its delivery.
func (e *Engine) emit(ctx context.Context, ev *detection.SecurityEvent, alert *alerting.SecurityAlert) bool {
	if err := e.alerts.SaveAlert(ctx, alert); err != nil {
		e.countError(ErrorKindAlertStore)
		logging.Error().Err(err).
			Str("event_id", ev.ID).
			Str("alert_id", alert.ID).
			Str("rule_id", alert.RuleID).
			Msg("Failed to store alert")
		return false
	}
	e.alertsGenerated.Add(1)
	metrics.RecordAlertGenerated(alert.AlertType, string(alert.Severity))

	logging.Info().
		Str("event_id", ev.ID).
		Str("alert_id", alert.ID).
		Str("rule_id", alert.RuleID).
		Str("severity", string(alert.Severity)).
		Float64("risk_score", alert.RiskScore).
		Msg("Alert generated")

	if err := e.dispatcher.Dispatch(alert); err != nil {
		e.countError(ErrorKindDispatch)
		logging.Warn().Err(err).Str("alert_id", alert.ID).Msg("Alert not dispatched")
	}
	return true
}

// sweepLoop clears expired state on every SweepInterval tick.
func (e *Engine) sweepLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep()
		}
	}
}

// Sweep clears expired detector, rule, governor and registered state and
// returns the number of entries removed.
func (e *Engine) Sweep() int {
	removed := e.detector.Sweep()
	removed += e.rules.Sweep(e.now())
	removed += e.governor.Sweep()
	for _, s := range e.sweepers {
		removed += s.Sweep()
	}
	if removed > 0 {
		logging.Debug().Int("removed", removed).Msg("Swept expired pipeline state")
	}
	return removed
}
