// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultService is the service field stamped on every line.
const DefaultService = "riskguard"

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error, fatal,
	// panic or disabled. Default: info
	Level string

	// Format is json or console. Default: json
	Format string

	// Caller adds file:line to each line.
	Caller bool

	// Service and Instance identify the emitting process so lines from several
	// riskguard replicas sharing a Redis baseline store can be told apart.
	// Instance defaults to the hostname.
	Service  string
	Instance string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "json",
		Service: DefaultService,
		Output:  os.Stderr,
	}
}

var levelNames = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"panic":    zerolog.PanicLevel,
	"disabled": zerolog.Disabled,
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

//nolint:gochecknoinits // lines logged while the config loads need a logger
func init() {
	cfg := DefaultConfig()
	// LOG_LEVEL is honored this early so .env and config load warnings
	// respect it before Init runs.
	if lvl := os.Getenv("LOG_LEVEL"); ValidLevel(lvl) {
		cfg.Level = lvl
	}
	log = build(cfg)
}

// Init reconfigures the global logger. It may be called more than once.
func Init(cfg Config) {
	l := build(cfg)
	mu.Lock()
	log = l
	mu.Unlock()
}

func build(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.Service == "" {
		cfg.Service = DefaultService
	}
	if cfg.Instance == "" {
		cfg.Instance, _ = os.Hostname()
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	lc := zerolog.New(out).With().Timestamp().Str("service", cfg.Service)
	if cfg.Instance != "" {
		lc = lc.Str("instance", cfg.Instance)
	}
	if cfg.Caller {
		lc = lc.Caller()
	}
	return lc.Logger()
}

// ParseLevel maps a level name to its zerolog level. Unknown or empty names
// fall back to info.
func ParseLevel(level string) zerolog.Level {
	if lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// ValidLevel reports whether level is a recognized level name.
func ValidLevel(level string) bool {
	_, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]
	return ok
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func current() *zerolog.Logger {
	l := Logger()
	return &l
}

// With starts a child logger context from the global logger.
func With() zerolog.Context {
	return current().With()
}

// WithComponent returns a child logger tagged with component, for example
// "pipeline", "dispatcher" or "nats-ingester".
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}

// WithShard tags a pipeline worker's logger with its shard index.
func WithShard(component string, shard int) zerolog.Logger {
	return With().Str("component", component).Int("shard", shard).Logger()
}

func Debug() *zerolog.Event { return current().Debug() }

func Info() *zerolog.Event { return current().Info() }

func Warn() *zerolog.Event { return current().Warn() }

// Error starts an error level line.
//
//	logging.Error().Err(err).Str("channel", name).Msg("Notification failed")
func Error() *zerolog.Event { return current().Error() }

// Fatal starts a fatal line. os.Exit(1) runs after the line is written.
func Fatal() *zerolog.Event { return current().Fatal() }

// Err starts an error level line carrying err, or an info line when err is nil.
func Err(err error) *zerolog.Event { return current().Err(err) }

// NewTestLogger returns a timestamped logger writing to w, for tests that
// assert on log output.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
