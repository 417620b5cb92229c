package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New(time.Minute)

	c.Set("report", "payload")
	v, ok := c.Get("report")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if v.(string) != "payload" {
		t.Errorf("got %v, want payload", v)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("k", 1)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be deleted on access, len=%d", c.Len())
	}
}

func TestSetRefreshesTTL(t *testing.T) {
	c := New(time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("k", 1)
	current = current.Add(45 * time.Second)
	c.Set("k", 2)
	current = current.Add(45 * time.Second)

	v, ok := c.Get("k")
	if !ok {
		t.Fatal("re-set entry should still be live")
	}
	if v.(int) != 2 {
		t.Errorf("got %v, want 2", v)
	}
}

func TestSweep(t *testing.T) {
	c := New(time.Minute)
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("a", 1)
	c.Set("b", 2)
	current = current.Add(2 * time.Minute)
	c.Set("c", 3)

	if removed := c.Sweep(); removed != 2 {
		t.Fatalf("expected 2 swept, got %d", removed)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry after sweep, got %d", c.Len())
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("fresh entry should survive sweep")
	}
}

func TestDelete(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", 1)
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("deleted key should miss")
	}
}
