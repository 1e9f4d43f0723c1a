package cache

import (
	"testing"
	"time"
)

func TestGetMiss(t *testing.T) {
	c := New[string](time.Hour)
	if _, ok := c.Get("absent"); ok {
		t.Fatal("expected miss for absent key")
	}
}

func TestSetGet(t *testing.T) {
	c := New[string](time.Hour)
	c.Set("k", "v")
	v, ok := c.Get("k")
	if !ok || v != "v" {
		t.Fatalf("expected hit with %q, got %q ok=%v", "v", v, ok)
	}
}

func TestExpiry(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	c := New[int](time.Hour).WithNow(func() time.Time { return now })
	c.Set("k", 42)

	// One nanosecond before expiry the entry is still visible.
	now = now.Add(time.Hour - time.Nanosecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired early")
	}

	// At exactly now == expiresAt the entry is absent.
	now = now.Add(time.Nanosecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry visible at expiry instant")
	}

	// The expired entry stays in place for GetStale.
	if c.Len() != 1 {
		t.Fatalf("expected expired entry to remain stored, len=%d", c.Len())
	}
}

func TestSetResetsExpiry(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	c := New[int](time.Hour).WithNow(func() time.Time { return now })
	c.Set("k", 1)

	now = now.Add(50 * time.Minute)
	c.Set("k", 2)

	// 50m + 59m is past the original deadline but inside the refreshed one.
	now = now.Add(59 * time.Minute)
	v, ok := c.Get("k")
	if !ok || v != 2 {
		t.Fatalf("expected refreshed entry 2, got %d ok=%v", v, ok)
	}
}

func TestSetTTLOverride(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	c := New[int](time.Hour).WithNow(func() time.Time { return now })
	c.SetTTL("k", 1, time.Minute)

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("per-entry TTL not honored")
	}
}

func TestGetStaleSeesExpired(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	c := New[string](time.Hour).WithNow(func() time.Time { return now })
	c.Set("k", "old")

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry visible through Get")
	}

	e, ok := c.GetStale("k")
	if !ok || e.Value != "old" {
		t.Fatalf("expected stale entry, got %+v ok=%v", e, ok)
	}
	if !e.ExpiresAt.Before(now) {
		t.Fatal("stale entry should be past its expiry")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New[int](time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("deleted key still present")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, len=%d", c.Len())
	}
}
