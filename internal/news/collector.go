package news

import (
	"context"
	"sync"
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// FetchParams carries the request window and cap for a collector fetch.
type FetchParams struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Collector fetches news articles for a symbol from one provider.
// Implementations normalize provider payloads into models.Article and
// track their own quota locally (response headers are not trusted).
type Collector interface {
	// Name returns the provider name (e.g., "Finnhub").
	Name() string

	// FetchNews returns articles for the symbol within the window.
	FetchNews(ctx context.Context, symbol string, params FetchParams) ([]models.Article, error)

	// APIUsage reports local quota tracking state.
	APIUsage() models.APIUsage
}

// --- Local rate tracking ---

// minuteTracker counts calls against a per-minute quota. The counter
// resets once 60 seconds have passed since the last reset, mirroring
// how the providers meter their free tiers.
type minuteTracker struct {
	mu        sync.Mutex
	limit     int
	calls     int
	lastReset time.Time
}

func newMinuteTracker(limit int) *minuteTracker {
	return &minuteTracker{limit: limit}
}

// Record counts one call, resetting the window first if it has elapsed.
func (t *minuteTracker) Record(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastReset.IsZero() {
		t.lastReset = now
	} else if now.Sub(t.lastReset) >= time.Minute {
		t.calls = 0
		t.lastReset = now
	}
	t.calls++
}

// Snapshot returns calls made in the current window, remaining quota,
// and when the window resets.
func (t *minuteTracker) Snapshot(now time.Time) (calls, remaining int, resetAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	calls = t.calls
	if !t.lastReset.IsZero() && now.Sub(t.lastReset) >= time.Minute {
		calls = 0
	}
	remaining = t.limit - calls
	if remaining < 0 {
		remaining = 0
	}
	resetAt = t.lastReset.Add(time.Minute)
	if t.lastReset.IsZero() {
		resetAt = now.Add(time.Minute)
	}
	return calls, remaining, resetAt
}

// dayTracker counts calls against a daily quota that resets at UTC
// midnight, the reset model NewsAPI documents for its free tier.
type dayTracker struct {
	mu    sync.Mutex
	limit int
	calls int
	day   time.Time // midnight UTC of the counted day
}

func newDayTracker(limit int) *dayTracker {
	return &dayTracker{limit: limit}
}

func utcMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Record counts one call against today's UTC quota.
func (t *dayTracker) Record(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	today := utcMidnight(now)
	if !t.day.Equal(today) {
		t.calls = 0
		t.day = today
	}
	t.calls++
}

// Snapshot returns today's calls, remaining quota, and the next UTC
// midnight reset.
func (t *dayTracker) Snapshot(now time.Time) (calls, remaining int, resetAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	today := utcMidnight(now)
	calls = t.calls
	if !t.day.Equal(today) {
		calls = 0
	}
	remaining = t.limit - calls
	if remaining < 0 {
		remaining = 0
	}
	return calls, remaining, today.Add(24 * time.Hour)
}
