package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUCache_SetIfAbsent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	c := NewLRUCache[struct{}](10, time.Hour).WithClock(clock.now)

	if !c.SetIfAbsent("warn:1:balance:2024-01-01", struct{}{}) {
		t.Fatalf("first insert should succeed")
	}
	if c.SetIfAbsent("warn:1:balance:2024-01-01", struct{}{}) {
		t.Fatalf("second insert should be rejected")
	}

	clock.t = clock.t.Add(2 * time.Hour)
	if !c.SetIfAbsent("warn:1:balance:2024-01-01", struct{}{}) {
		t.Fatalf("expired entry should be replaced")
	}
}

func TestLRUCache_EvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a should survive, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestManager_CleanExpired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c1 := NewLRUCache[int](10, time.Minute).WithClock(clock.now)
	c2 := NewLRUCache[int](10, time.Hour).WithClock(clock.now)
	c1.Set("x", 1)
	c1.Set("y", 2)
	c2.Set("z", 3)

	m := NewManager()
	m.Register(c1)
	m.Register(c2)

	clock.t = clock.t.Add(10 * time.Minute)
	if n := m.CleanExpired(); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if c2.Size() != 1 {
		t.Fatalf("long-lived entry should remain")
	}
	if err := m.CleanupJob(context.Background(), clock.t); err != nil {
		t.Fatalf("cleanup job: %v", err)
	}
}
