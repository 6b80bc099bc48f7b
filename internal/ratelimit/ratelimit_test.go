package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurst(t *testing.T) {
	l := NewLimiter(1, 5)

	for i := 0; i < 5; i++ {
		if !l.Allow() {
			t.Fatalf("Call %d within burst should be allowed", i)
		}
	}
	if l.Allow() {
		t.Error("Call past the burst should be denied")
	}
}

func TestLimiterRefill(t *testing.T) {
	l := NewLimiter(100, 1)

	if !l.Allow() {
		t.Fatal("First call should be allowed")
	}
	if l.Allow() {
		t.Fatal("Second immediate call should be denied")
	}

	time.Sleep(50 * time.Millisecond)

	if !l.Allow() {
		t.Error("Call after refill window should be allowed")
	}
}
