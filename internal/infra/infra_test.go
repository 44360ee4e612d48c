package infra

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// ── Cache Tests ──

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("key", 42)

	v, ok := c.Get("key")
	if !ok {
		t.Fatal("expected hit")
	}
	if v.(int) != 42 {
		t.Errorf("value = %v", v)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	c.SetWithTTL("key", "value", -time.Second) // already expired

	if _, ok := c.Get("key"); ok {
		t.Error("expired entry should miss")
	}
}

func TestCacheInvalidateAndFlush(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Error("invalidated entry should miss")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("other entry should survive Invalidate")
	}

	c.Flush()
	if _, ok := c.Get("b"); ok {
		t.Error("flushed cache should be empty")
	}
}

func TestCacheCleanup(t *testing.T) {
	c := NewCache(time.Minute)
	c.SetWithTTL("stale", 1, -time.Second)
	c.Set("fresh", 2)

	c.Cleanup()

	c.mu.RLock()
	_, staleKept := c.entries["stale"]
	_, freshKept := c.entries["fresh"]
	c.mu.RUnlock()

	if staleKept {
		t.Error("Cleanup should drop expired entries")
	}
	if !freshKept {
		t.Error("Cleanup should keep live entries")
	}
}

// ── RateLimiter Tests ──

func TestRateLimiterAllowsUpToBurst(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("token %d: %v", i, err)
		}
	}

	// Fourth token is unavailable for an hour; cancelled context must
	// abort the wait rather than block.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("expected context error when tokens exhausted")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)
	ctx := context.Background()

	if err := rl.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := rl.Wait(ctx); err != nil {
		t.Errorf("expected refill after interval: %v", err)
	}
}

// ── Retry Tests ──

func TestRetrySucceedsAfterFailures(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffFactor: 2, MaxDelay: 10 * time.Millisecond}

	attempts := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryExhaustsAndReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffFactor: 2, MaxDelay: 10 * time.Millisecond}

	attempts := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		attempts++
		return errors.New("permanent")
	})
	if err == nil || err.Error() != "permanent" {
		t.Errorf("err = %v", err)
	}
	if attempts != 3 { // initial attempt + 2 retries
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 10, InitialDelay: time.Hour, BackoffFactor: 2, MaxDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, cfg, func() error { return errors.New("fail") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// ── ErrHTTP Tests ──

func TestErrHTTPMessage(t *testing.T) {
	err := &ErrHTTP{StatusCode: 429, Status: "429 Too Many Requests", Body: "rate limited"}
	msg := err.Error()
	if !strings.Contains(msg, "429") || !strings.Contains(msg, "rate limited") {
		t.Errorf("message = %q", msg)
	}
}
