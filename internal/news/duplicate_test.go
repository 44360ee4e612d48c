package news

import (
	"testing"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		wantMin float64
		wantMax float64
	}{
		{"identical", "apple earnings beat", "apple earnings beat", 1.0, 1.0},
		{"case insensitive", "Apple Earnings", "apple earnings", 1.0, 1.0},
		{"near identical", "Apple Reports Earnings", "Apple Report Earnings", 0.9, 1.0},
		{"different", "oil prices surge", "netflix subscriber growth", 0.0, 0.5},
		{"one empty", "", "apple", 0.0, 0.0},
		{"both empty", "", "", 1.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := similarityRatio(tt.a, tt.b)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("similarityRatio(%q, %q) = %.3f, want in [%.2f, %.2f]",
					tt.a, tt.b, got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestRemoveDuplicatesByURL(t *testing.T) {
	f := NewDuplicateFilter()
	articles := []models.Article{
		{ID: "1", Title: "Apple Earnings", URL: "https://example.com/a", Source: "Reuters"},
		{ID: "2", Title: "Completely different headline", URL: "https://example.com/a", Source: "Bloomberg"},
		{ID: "3", Title: "Tech Rally Continues", URL: "https://example.com/b", Source: "Reuters"},
	}

	unique := f.RemoveDuplicates(articles)
	if len(unique) != 2 {
		t.Fatalf("expected 2 unique articles, got %d", len(unique))
	}
	// First-seen wins.
	if unique[0].ID != "1" {
		t.Errorf("expected first occurrence kept, got %s", unique[0].ID)
	}
}

func TestRemoveDuplicatesByTitle(t *testing.T) {
	f := NewDuplicateFilter()
	articles := []models.Article{
		{ID: "1", Title: "Apple Reports Q3 Earnings Beat", URL: "https://a.example.com/1"},
		{ID: "2", Title: "Apple Reports Q3 Earnings Beats", URL: "https://b.example.com/2"},
	}

	unique := f.RemoveDuplicates(articles)
	if len(unique) != 1 {
		t.Fatalf("expected title-similar articles merged, got %d", len(unique))
	}
}

func TestRemoveDuplicatesPreferSource(t *testing.T) {
	f := NewDuplicateFilter()
	f.PreferSource = "Reuters"
	articles := []models.Article{
		{ID: "1", Title: "Apple Earnings", URL: "https://example.com/a", Source: "Bloomberg"},
		{ID: "2", Title: "Apple Earnings", URL: "https://example.com/a", Source: "Reuters"},
	}

	unique := f.RemoveDuplicates(articles)
	if len(unique) != 1 {
		t.Fatalf("expected 1 unique article, got %d", len(unique))
	}
	if unique[0].Source != "Reuters" {
		t.Errorf("expected preferred source kept, got %s", unique[0].Source)
	}
}

func TestRemoveDuplicatesEmpty(t *testing.T) {
	f := NewDuplicateFilter()
	if got := f.RemoveDuplicates(nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestFindDuplicates(t *testing.T) {
	f := NewDuplicateFilter()
	articles := []models.Article{
		{ID: "1", Title: "Apple Earnings Beat", URL: "https://example.com/a"},
		{ID: "2", Title: "Netflix Adds Subscribers", URL: "https://example.com/b"},
		{ID: "3", Title: "Apple Earnings Beat", URL: "https://example.com/a"},
	}

	groups := f.FindDuplicates(articles)
	if len(groups) != 1 {
		t.Fatalf("expected 1 duplicate group, got %d", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0] != 0 || groups[0][1] != 2 {
		t.Errorf("unexpected group: %v", groups[0])
	}
}
