package news

import (
	"strings"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// DuplicateFilter removes near-identical articles that arrive from
// multiple providers. Two articles are duplicates when their URLs
// match exactly, their titles are ≥90% similar, or their bodies are
// ≥85% similar.
type DuplicateFilter struct {
	TitleThreshold   float64
	ContentThreshold float64
	PreferSource     string
}

// NewDuplicateFilter creates a duplicate filter with the default
// similarity thresholds.
func NewDuplicateFilter() *DuplicateFilter {
	return &DuplicateFilter{
		TitleThreshold:   0.9,
		ContentThreshold: 0.85,
	}
}

// similarityRatio computes a normalized longest-common-subsequence
// ratio over lowercased strings: 2·LCS / (len(a)+len(b)).
func similarityRatio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	ra := []rune(a)
	rb := []rune(b)

	// Rolling two-row LCS to keep memory at O(len(b)).
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// isDuplicate reports whether two articles describe the same story.
func (f *DuplicateFilter) isDuplicate(a, b models.Article) bool {
	if a.URL != "" && b.URL != "" && a.URL == b.URL {
		return true
	}
	if a.Title != "" && b.Title != "" && similarityRatio(a.Title, b.Title) >= f.TitleThreshold {
		return true
	}
	bodyA := a.Text()
	bodyB := b.Text()
	if bodyA != "" && bodyB != "" && similarityRatio(bodyA, bodyB) >= f.ContentThreshold {
		return true
	}
	return false
}

// RemoveDuplicates keeps one copy of each story. First-seen wins
// unless PreferSource is set, in which case a duplicate from the
// preferred source replaces the kept entry.
func (f *DuplicateFilter) RemoveDuplicates(articles []models.Article) []models.Article {
	if len(articles) == 0 {
		return nil
	}

	unique := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		dup := false
		for j := range unique {
			if f.isDuplicate(a, unique[j]) {
				dup = true
				if f.PreferSource != "" && a.Source == f.PreferSource {
					unique[j] = a
				}
				break
			}
		}
		if !dup {
			unique = append(unique, a)
		}
	}
	return unique
}

// FindDuplicates returns groups of duplicate article indices, for
// diagnostics. Singleton groups are omitted.
func (f *DuplicateFilter) FindDuplicates(articles []models.Article) [][]int {
	var groups [][]int
	processed := make(map[int]bool)

	for i := range articles {
		if processed[i] {
			continue
		}
		group := []int{i}
		for j := i + 1; j < len(articles); j++ {
			if processed[j] {
				continue
			}
			if f.isDuplicate(articles[i], articles[j]) {
				group = append(group, j)
				processed[j] = true
			}
		}
		if len(group) > 1 {
			groups = append(groups, group)
		}
	}
	return groups
}
