package levels

import (
	"testing"
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

func TestClusterLevelsGroupsNearbyExtrema(t *testing.T) {
	t0 := testStart
	t1 := t0.Add(24 * time.Hour)
	t2 := t0.Add(48 * time.Hour)

	points := []models.ExtremaPoint{
		{Price: 99.5, Timestamp: t1, Type: models.ExtremaValley},
		{Price: 100, Timestamp: t0, Type: models.ExtremaValley},
		{Price: 100.5, Timestamp: t2, Type: models.ExtremaValley},
		// Far from everything: noise with minSamples 2.
		{Price: 150, Timestamp: t1, Type: models.ExtremaPeak},
	}

	levels := NewDBSCANClusterer().ClusterLevels(points)
	if len(levels) != 1 {
		t.Fatalf("levels = %d, want 1 (noise discarded)", len(levels))
	}

	l := levels[0]
	if l.Price != 100 {
		t.Errorf("price = %v, want mean 100", l.Price)
	}
	if l.Touches != 3 {
		t.Errorf("touches = %d, want 3", l.Touches)
	}
	if l.FirstTouch == nil || !l.FirstTouch.Equal(t0) {
		t.Errorf("first touch = %v, want %v", l.FirstTouch, t0)
	}
	if l.LastTouch == nil || !l.LastTouch.Equal(t2) {
		t.Errorf("last touch = %v, want %v", l.LastTouch, t2)
	}
	if l.Type != string(models.ExtremaValley) {
		t.Errorf("type = %s, want support", l.Type)
	}
}

func TestClusterLevelsChainsThroughNeighbors(t *testing.T) {
	// 100 and 103.8 are further apart than eps, but 101.9 bridges them:
	// density expansion puts all three in one cluster.
	points := []models.ExtremaPoint{
		{Price: 100, Timestamp: testStart, Type: models.ExtremaValley},
		{Price: 101.9, Timestamp: testStart, Type: models.ExtremaValley},
		{Price: 103.8, Timestamp: testStart, Type: models.ExtremaValley},
	}

	levels := NewDBSCANClusterer().ClusterLevels(points)
	if len(levels) != 1 || levels[0].Touches != 3 {
		t.Fatalf("got %+v, want one cluster of 3", levels)
	}
}

func TestClusterLevelsSeparatesDistantGroups(t *testing.T) {
	points := []models.ExtremaPoint{
		{Price: 100, Timestamp: testStart, Type: models.ExtremaValley},
		{Price: 100.5, Timestamp: testStart, Type: models.ExtremaValley},
		{Price: 120, Timestamp: testStart, Type: models.ExtremaPeak},
		{Price: 120.5, Timestamp: testStart, Type: models.ExtremaPeak},
	}

	levels := NewDBSCANClusterer().ClusterLevels(points)
	if len(levels) != 2 {
		t.Fatalf("levels = %d, want 2", len(levels))
	}
	// Output is price-sorted.
	if levels[0].Price >= levels[1].Price {
		t.Errorf("levels not price-sorted: %v, %v", levels[0].Price, levels[1].Price)
	}
	if levels[0].Type != string(models.ExtremaValley) || levels[1].Type != string(models.ExtremaPeak) {
		t.Errorf("types = %s, %s", levels[0].Type, levels[1].Type)
	}
}

func TestClusterLevelsEmpty(t *testing.T) {
	if got := NewDBSCANClusterer().ClusterLevels(nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestFilterClusters(t *testing.T) {
	levels := []models.PriceLevel{
		{Price: 100, Touches: 1},
		{Price: 110, Touches: 3},
		{Price: 120, Touches: 5},
	}
	kept := NewDBSCANClusterer().FilterClusters(levels, 3)
	if len(kept) != 2 {
		t.Fatalf("kept = %d, want 2", len(kept))
	}
	for _, l := range kept {
		if l.Touches < 3 {
			t.Errorf("level with %d touches survived", l.Touches)
		}
	}
}
