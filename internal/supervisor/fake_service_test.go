// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeService stands in for a riskguard component. Each Serve call consumes
// the next scripted error; once the script is exhausted it runs until
// canceled, like the pipeline or an ingester with a healthy broker.
type fakeService struct {
	name    string
	started chan struct{}

	mu     sync.Mutex
	script []error
	starts int
	stops  int
}

func newFakeService(name string, failures ...error) *fakeService {
	return &fakeService{
		name:    name,
		started: make(chan struct{}, 16),
		script:  failures,
	}
}

func (f *fakeService) Serve(ctx context.Context) error {
	f.mu.Lock()
	f.starts++
	var err error
	if len(f.script) > 0 {
		err, f.script = f.script[0], f.script[1:]
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.stops++
		f.mu.Unlock()
	}()

	select {
	case f.started <- struct{}{}:
	default:
	}
	if err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeService) String() string { return f.name }

func (f *fakeService) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

// waitStarted blocks until f has been started n more times.
func waitStarted(t *testing.T, f *fakeService, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.started:
		case <-time.After(2 * time.Second):
			starts, _ := f.counts()
			t.Fatalf("%s: waited for start %d of %d, saw %d", f.name, i+1, n, starts)
		}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTree(t *testing.T) *SupervisorTree {
	t.Helper()
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	return tree
}
