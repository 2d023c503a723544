// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package ingest

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/riskguard/internal/detection"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/pipeline"
	"github.com/tomtom215/riskguard/internal/validation"
)

// ErrEmptyPayload is returned by Decode for blank payloads.
var ErrEmptyPayload = errors.New("empty payload")

// Sink accepts decoded events. *pipeline.Engine implements it.
type Sink interface {
	Enqueue(ev *detection.SecurityEvent) error
}

// Decode parses a payload holding one event object or an array of events.
// Events without an ID are assigned one.
func Decode(payload []byte) ([]*detection.SecurityEvent, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}

	var events []*detection.SecurityEvent
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("decode event batch: %w", err)
		}
	} else {
		var ev detection.SecurityEvent
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = []*detection.SecurityEvent{&ev}
	}

	out := events[:0]
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		out = append(out, ev)
	}
	return out, nil
}

// Outcome summarizes one delivered payload.
type Outcome struct {
	Accepted int
	Dropped  int
	// Full counts events dropped because the queue was full.
	Full int
	// Invalid counts events dropped for failing field validation.
	Invalid int
	Err  error
}

// Retry reports whether the payload should be redelivered: the queue was
// full before any of its events were accepted.
func (o Outcome) Retry() bool {
	return o.Accepted == 0 && o.Full > 0
}

// Deliver decodes payload and enqueues every event into sink, recording
// metrics under transport.
func Deliver(sink Sink, transport string, payload []byte) Outcome {
	events, err := Decode(payload)
	if err != nil {
		metrics.RecordIngestMessage(transport, "decode_error")
		return Outcome{Err: err}
	}
	return EnqueueAll(sink, transport, events)
}

// EnqueueAll validates and enqueues already decoded events. Invalid events
// are dropped; the rest of the batch still goes through.
func EnqueueAll(sink Sink, transport string, events []*detection.SecurityEvent) Outcome {
	var out Outcome
	for _, ev := range events {
		if verr := validation.ValidateStruct(ev); verr != nil {
			out.Dropped++
			out.Invalid++
			out.Err = verr
			continue
		}
		if err := sink.Enqueue(ev); err != nil {
			out.Dropped++
			if errors.Is(err, pipeline.ErrQueueFull) {
				out.Full++
			} else {
				out.Err = err
			}
			continue
		}
		out.Accepted++
	}

	switch {
	case out.Dropped == 0:
		metrics.RecordIngestMessage(transport, "accepted")
	case out.Accepted == 0:
		metrics.RecordIngestMessage(transport, "rejected")
	default:
		metrics.RecordIngestMessage(transport, "partial")
	}
	return out
}
