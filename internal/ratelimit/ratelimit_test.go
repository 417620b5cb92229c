package ratelimit

import (
	"testing"
	"time"
)

func TestAllowEnforcesBurst(t *testing.T) {
	l := New(1, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("client-a") {
			t.Fatalf("request %d within burst should pass", i+1)
		}
	}
	if l.Allow("client-a") {
		t.Error("request beyond burst should be limited")
	}
}

func TestClientsAreIndependent(t *testing.T) {
	l := New(1, 1, time.Minute)

	if !l.Allow("a") {
		t.Fatal("first request for a should pass")
	}
	if l.Allow("a") {
		t.Error("second request for a should be limited")
	}
	if !l.Allow("b") {
		t.Error("b should have its own bucket")
	}
}

func TestSweepEvictsIdle(t *testing.T) {
	l := New(1, 1, time.Minute)

	current := time.Now()
	l.now = func() time.Time { return current }

	l.Allow("old")
	current = current.Add(2 * time.Minute)
	l.Allow("fresh")

	if evicted := l.Sweep(); evicted != 1 {
		t.Fatalf("expected 1 evicted, got %d", evicted)
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 tracked client, got %d", l.Len())
	}
}

func TestTokensRefillOverTime(t *testing.T) {
	l := New(100, 1, time.Minute)

	if !l.Allow("a") {
		t.Fatal("first request should pass")
	}
	if l.Allow("a") {
		t.Fatal("bucket should be empty")
	}
	time.Sleep(15 * time.Millisecond) // 100/s refills within a few ms
	if !l.Allow("a") {
		t.Error("bucket should have refilled")
	}
}
