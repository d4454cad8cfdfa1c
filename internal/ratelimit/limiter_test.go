package ratelimit

import (
	"testing"
	"time"
)

func TestNewLimiter_panicsOnNonMonotonicRates(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected NewLimiter to panic on a non-monotonic rate table")
		}
	}()
	NewLimiter(map[time.Duration]int{time.Second: 10, time.Minute: 5})
}

func TestLimiter_nilIsAlwaysAllowed(t *testing.T) {
	var limiter *Limiter
	if _, ok := limiter.Allow("task-a"); !ok {
		t.Fatal("expected a nil Limiter to never rate-limit")
	}
}

// mirrors internal/monitor's reallocation cap: 3 events per minute, keyed by
// task id.
func TestLimiter_Allow_enforcesWindowPerCategory(t *testing.T) {
	limiter := NewLimiter(map[time.Duration]int{time.Minute: 3})

	for i := 0; i < 3; i++ {
		if _, ok := limiter.Allow("task-a"); !ok {
			t.Fatalf("expected event %d to be allowed within the window", i)
		}
	}
	if _, ok := limiter.Allow("task-a"); ok {
		t.Fatal("expected the 4th event within the window to be rate-limited")
	}

	if _, ok := limiter.Allow("task-b"); !ok {
		t.Fatal("expected a distinct category to have its own budget")
	}
}
