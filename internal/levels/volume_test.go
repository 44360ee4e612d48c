package levels

import (
	"testing"
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// volumeBars builds bars at explicit price ranges with explicit volume.
func volumeBars(entries []struct {
	low, high float64
	volume    int64
}) []models.OHLCV {
	bars := make([]models.OHLCV, len(entries))
	for i, e := range entries {
		mid := (e.low + e.high) / 2
		bars[i] = models.OHLCV{
			Timestamp: testStart.Add(time.Duration(i) * 24 * time.Hour),
			Open:      mid,
			High:      e.high,
			Low:       e.low,
			Close:     mid,
			Volume:    e.volume,
		}
	}
	return bars
}

func TestDetectVolumeLevelsFindsHighVolumeNode(t *testing.T) {
	entries := []struct {
		low, high float64
		volume    int64
	}{
		// Heavy trading near 100.
		{99.5, 100.5, 1_000_000},
		{99.6, 100.4, 1_000_000},
		{99.4, 100.6, 1_000_000},
		{99.5, 100.5, 1_000_000},
		// Light trading near 110; the close ends here.
		{109.5, 110.5, 10_000},
		{109.5, 110.5, 10_000},
	}
	bars := volumeBars(entries)

	nodes := NewVolumeProfileAnalyzer().DetectVolumeLevels(bars, 2)
	if len(nodes) == 0 {
		t.Fatal("expected volume nodes")
	}

	// Highest-volume node sits in the heavy zone and reads as support
	// because price closed above it.
	top := nodes[0]
	if top.Price < 99 || top.Price > 101 {
		t.Errorf("top node price = %v, want near 100", top.Price)
	}
	if top.Type != string(models.ExtremaValley) {
		t.Errorf("top node type = %s, want support", top.Type)
	}
	if top.Touches < 2 {
		t.Errorf("touches = %d, want >= 2", top.Touches)
	}

	// Volume-descending order.
	for i := 1; i < len(nodes); i++ {
		if nodes[i].Volume > nodes[i-1].Volume {
			t.Fatal("nodes not sorted by volume desc")
		}
	}
}

func TestDetectVolumeLevelsEmpty(t *testing.T) {
	if got := NewVolumeProfileAnalyzer().DetectVolumeLevels(nil, 1); got != nil {
		t.Errorf("expected nil for empty bars, got %v", got)
	}
}

func TestMergeWithPriceLevelsAnnotatesAndAppends(t *testing.T) {
	levels := []models.PriceLevel{
		{Price: 100, Type: string(models.ExtremaValley), Touches: 3},
	}
	nodes := []VolumeNode{
		{Price: 100.5, Volume: 500_000, Percentile: 90, Touches: 4, Type: string(models.ExtremaValley)},
		{Price: 120, Volume: 300_000, Percentile: 75, Touches: 2, Type: string(models.ExtremaPeak)},
	}

	merged := NewVolumeProfileAnalyzer().MergeWithPriceLevels(levels, nodes)
	if len(merged) != 2 {
		t.Fatalf("merged = %d, want 2", len(merged))
	}

	// The nearby node annotates the cluster level instead of standing alone.
	if !merged[0].HasVolumeConfirm || merged[0].Volume != 500_000 {
		t.Errorf("cluster level not annotated: %+v", merged[0])
	}
	if merged[0].Price != 100 || merged[0].Touches != 3 {
		t.Errorf("annotation must not change the level identity: %+v", merged[0])
	}

	// The far node becomes a standalone volume level.
	standalone := merged[1]
	if standalone.Price != 120 || !standalone.HasVolumeConfirm || standalone.Touches != 2 {
		t.Errorf("standalone node wrong: %+v", standalone)
	}
}

func TestMergeWithPriceLevelsNoNodes(t *testing.T) {
	levels := []models.PriceLevel{{Price: 100}}
	merged := NewVolumeProfileAnalyzer().MergeWithPriceLevels(levels, nil)
	if len(merged) != 1 || merged[0].HasVolumeConfirm {
		t.Errorf("got %+v, want passthrough", merged)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(values, 0); got != 1 {
		t.Errorf("p0 = %v, want 1", got)
	}
	if got := percentile(values, 100); got != 10 {
		t.Errorf("p100 = %v, want 10", got)
	}
	mid := percentile(values, 50)
	if mid < 5 || mid > 6 {
		t.Errorf("p50 = %v, want 5..6", mid)
	}
}

func TestOverlapLen(t *testing.T) {
	if got := overlapLen(0, 10, 5, 15); got != 5 {
		t.Errorf("overlap = %v, want 5", got)
	}
	if got := overlapLen(0, 10, 20, 30); got >= 0 {
		t.Errorf("disjoint ranges should give negative overlap, got %v", got)
	}
	if got := overlapLen(0, 10, 2, 8); got != 6 {
		t.Errorf("contained range = %v, want 6", got)
	}
}
