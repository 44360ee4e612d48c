package levels

import (
	"testing"
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

var testStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// barsFromCloses builds daily bars whose highs and lows track the close
// with a small spread, so extrema on the closes are extrema on the
// highs/lows too.
func barsFromCloses(closes []float64) []models.OHLCV {
	bars := make([]models.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = models.OHLCV{
			Timestamp: testStart.Add(time.Duration(i) * 24 * time.Hour),
			Open:      c,
			High:      c * 1.002,
			Low:       c * 0.998,
			Close:     c,
			Volume:    10_000,
		}
	}
	return bars
}

func TestDetectPeaksFindsLocalMaximum(t *testing.T) {
	bars := barsFromCloses([]float64{10, 11, 12, 13, 14, 13, 12, 11, 10})
	d := &ExtremaDetector{WindowSize: 2, MinDistance: 1}

	peaks := d.DetectPeaks(bars)
	if len(peaks) != 1 {
		t.Fatalf("peaks = %d, want 1", len(peaks))
	}
	if peaks[0].Index != 4 {
		t.Errorf("peak index = %d, want 4", peaks[0].Index)
	}
	if peaks[0].Type != models.ExtremaPeak {
		t.Errorf("type = %s, want %s", peaks[0].Type, models.ExtremaPeak)
	}
	if peaks[0].Price != bars[4].High {
		t.Errorf("peak price = %v, want bar high %v", peaks[0].Price, bars[4].High)
	}
}

func TestDetectValleysFindsLocalMinimum(t *testing.T) {
	bars := barsFromCloses([]float64{14, 13, 12, 11, 10, 11, 12, 13, 14})
	d := &ExtremaDetector{WindowSize: 2, MinDistance: 1}

	valleys := d.DetectValleys(bars)
	if len(valleys) != 1 {
		t.Fatalf("valleys = %d, want 1", len(valleys))
	}
	if valleys[0].Index != 4 || valleys[0].Type != models.ExtremaValley {
		t.Errorf("got %+v, want valley at index 4", valleys[0])
	}
}

func TestDetectTooFewBars(t *testing.T) {
	d := &ExtremaDetector{WindowSize: 5, MinDistance: 10}
	if got := d.DetectPeaks(barsFromCloses([]float64{1, 2, 3})); got != nil {
		t.Errorf("expected nil for short series, got %v", got)
	}
}

func TestEnforceMinDistanceKeepsEarlier(t *testing.T) {
	bars := barsFromCloses([]float64{10, 13, 10, 14, 11, 10, 11, 15, 10})
	d := &ExtremaDetector{WindowSize: 1, MinDistance: 4}

	peaks := d.DetectPeaks(bars)
	// Raw peaks at 1, 3, 7; distance 4 drops index 3 and keeps 1 and 7.
	if len(peaks) != 2 {
		t.Fatalf("peaks = %v, want 2 after min-distance", peaks)
	}
	if peaks[0].Index != 1 || peaks[1].Index != 7 {
		t.Errorf("indices = %d, %d, want 1, 7", peaks[0].Index, peaks[1].Index)
	}
}

func TestFilterNoiseDropsTinyChanges(t *testing.T) {
	points := []models.ExtremaPoint{
		{Price: 100, Index: 0},
		{Price: 100.1, Index: 1}, // 0.1% from 100: noise
		{Price: 105, Index: 2},
		{Price: 110, Index: 3},
	}
	d := NewExtremaDetector()

	kept := d.FilterNoise(points, 0.005)
	if len(kept) != 3 {
		t.Fatalf("kept = %d, want 3", len(kept))
	}
	for _, p := range kept {
		if p.Price == 100.1 {
			t.Error("noise point 100.1 survived")
		}
	}
}

func TestFilterNoiseKeepsEndpoints(t *testing.T) {
	points := []models.ExtremaPoint{
		{Price: 100}, {Price: 100.05}, {Price: 100.1},
	}
	kept := NewExtremaDetector().FilterNoise(points, 0.005)
	if len(kept) != 2 {
		t.Fatalf("kept = %d, want both endpoints", len(kept))
	}
	if kept[0].Price != 100 || kept[1].Price != 100.1 {
		t.Errorf("endpoints = %v, %v", kept[0].Price, kept[1].Price)
	}
}
