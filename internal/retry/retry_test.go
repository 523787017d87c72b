package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func fastConfig(attempts int) Config {
	return Config{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Jitter: time.Millisecond}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoWrapsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected wrapped transient error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	cfg := fastConfig(5)
	cfg.ShouldRetry = func(err error) bool { return !errors.Is(err, permanent) }
	err := Do(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	if err != permanent {
		t.Fatalf("expected permanent error returned as-is, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{Attempts: 3, BaseDelay: time.Second, MaxDelay: time.Second, Jitter: time.Millisecond}
	err := Do(ctx, cfg, func() error { return errTransient })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	cfg := Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Jitter: time.Nanosecond}.withDefaults()
	if got := cfg.backoff(0); got != 100*time.Millisecond {
		t.Fatalf("backoff(0)=%v", got)
	}
	if got := cfg.backoff(1); got != 200*time.Millisecond {
		t.Fatalf("backoff(1)=%v", got)
	}
	if got := cfg.backoff(10); got != 300*time.Millisecond {
		t.Fatalf("backoff(10)=%v, want the cap", got)
	}
}
