// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package cache

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestLRU_BasicOperations(t *testing.T) {
	c := NewLRU[int](3, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	for key, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		got, found := c.Get(key)
		if !found {
			t.Errorf("Expected to find key %q", key)
			continue
		}
		if got != want {
			t.Errorf("Get(%q) = %d, want %d", key, got, want)
		}
	}

	if c.Len() != 3 {
		t.Errorf("Expected len 3, got %d", c.Len())
	}
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[string](3, time.Minute)

	c.Add("a", "A")
	c.Add("b", "B")
	c.Add("c", "C")

	// Access 'a' to make it most recently used
	c.Get("a")

	// Add new item, should evict 'b' (least recently used)
	c.Add("d", "D")

	if _, found := c.Get("b"); found {
		t.Error("Expected 'b' to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, found := c.Get(key); !found {
			t.Errorf("Expected %q to be present", key)
		}
	}

	_, _, evictions, size := c.Stats()
	if evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", evictions)
	}
	if size != 3 {
		t.Errorf("Expected size 3, got %d", size)
	}
}

func TestLRU_TTLExpiration(t *testing.T) {
	clock := newFakeClock()
	c := NewLRU[int](10, time.Minute, WithClock(clock.Now))

	c.Add("a", 1)
	if _, found := c.Get("a"); !found {
		t.Fatal("Expected to find key 'a' immediately")
	}

	clock.Advance(61 * time.Second)

	if _, found := c.Get("a"); found {
		t.Error("Expected key 'a' to be expired")
	}
	if c.Len() != 0 {
		t.Errorf("Expired entry should be removed on access, len=%d", c.Len())
	}
}

func TestLRU_AddWithTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewLRU[int](10, time.Hour, WithClock(clock.Now))

	c.AddWithTTL("short", 1, 10*time.Second)
	c.Add("long", 2)

	clock.Advance(11 * time.Second)

	if c.Contains("short") {
		t.Error("Expected per-entry TTL to expire 'short'")
	}
	if !c.Contains("long") {
		t.Error("Expected 'long' to use the default TTL")
	}
}

func TestLRU_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	c := NewLRU[int](10, time.Minute, WithClock(clock.Now))

	c.Add("a", 1)
	c.Add("b", 2)
	clock.Advance(30 * time.Second)
	c.Add("c", 3)
	clock.Advance(31 * time.Second)

	removed := c.CleanupExpired()
	if removed != 2 {
		t.Errorf("Expected 2 expired entries removed, got %d", removed)
	}
	if keys := c.Keys(); len(keys) != 1 || keys[0] != "c" {
		t.Errorf("Expected only 'c' to remain, got %v", keys)
	}
}

func TestLRU_PeekDoesNotPromote(t *testing.T) {
	c := NewLRU[int](2, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)

	if v, ok := c.Peek("a"); !ok || v != 1 {
		t.Fatalf("Peek(a) = %d, %v", v, ok)
	}

	// 'a' is still least recently used and gets evicted
	c.Add("c", 3)
	if c.Contains("a") {
		t.Error("Peek should not update recency")
	}

	hits, misses, _, _ := c.Stats()
	if hits != 0 || misses != 0 {
		t.Errorf("Peek should not count stats, hits=%d misses=%d", hits, misses)
	}
}

func TestLRU_RemoveAndClear(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)

	if !c.Remove("a") {
		t.Error("Remove should report an existing key")
	}
	if c.Remove("a") {
		t.Error("Remove should report a missing key")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", c.Len())
	}
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU[int](100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + (id+j)%26))
				c.Add(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Cache exceeded capacity: %d", c.Len())
	}
}
