package news

import (
	"testing"
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

func TestWindowFor(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		horizon models.TimeHorizon
		want    time.Duration
	}{
		{models.Horizon1Sec, 5 * time.Minute},
		{models.Horizon1Min, 15 * time.Minute},
		{models.Horizon1Hour, 6 * time.Hour},
		{models.Horizon1Day, 3 * 24 * time.Hour},
		{models.Horizon1Week, 7 * 24 * time.Hour},
		{models.Horizon1Month, 30 * 24 * time.Hour},
		{models.Horizon1Year, 365 * 24 * time.Hour},
		{models.TimeHorizon("bogus"), 3 * 24 * time.Hour}, // falls back to 1d
	}

	for _, tt := range tests {
		t.Run(string(tt.horizon), func(t *testing.T) {
			r := WindowFor(tt.horizon, now)
			if !r.To.Equal(now) {
				t.Errorf("window end = %v, want %v", r.To, now)
			}
			if got := r.To.Sub(r.From); got != tt.want {
				t.Errorf("window width = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	r := DateRange{From: now.Add(-6 * time.Hour), To: now}

	expanded := ExpandWindow(r)
	if !expanded.To.Equal(now) {
		t.Errorf("expansion moved window end: %v", expanded.To)
	}
	if got, want := expanded.To.Sub(expanded.From), 9*time.Hour; got != want {
		t.Errorf("expanded width = %v, want %v", got, want)
	}

	// A second expansion compounds.
	expanded = ExpandWindow(expanded)
	if got, want := expanded.To.Sub(expanded.From), time.Duration(13.5*float64(time.Hour)); got != want {
		t.Errorf("second expansion width = %v, want %v", got, want)
	}
}
