package news

import (
	"sort"
	"strings"

	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

// CompanyNames maps a ticker to its company name and product aliases.
// The first entry is the primary company name.
var CompanyNames = map[string][]string{
	"AAPL":  {"Apple", "Apple Inc", "Apple Inc.", "iPhone", "iPad", "MacBook", "iMac", "iOS", "macOS"},
	"MSFT":  {"Microsoft", "Microsoft Corp", "Windows", "Azure", "Office", "Xbox", "Surface"},
	"GOOGL": {"Google", "Alphabet", "Alphabet Inc", "YouTube", "Android", "Chrome", "Gmail", "Google Cloud"},
	"GOOG":  {"Google", "Alphabet", "Alphabet Inc", "YouTube", "Android", "Chrome", "Gmail", "Google Cloud"},
	"AMZN":  {"Amazon", "Amazon.com", "AWS", "Alexa", "Prime"},
	"META":  {"Meta", "Facebook", "Instagram", "WhatsApp", "Oculus", "VR"},
	"NVDA":  {"NVIDIA", "Nvidia", "GeForce", "RTX", "CUDA"},
	"TSLA":  {"Tesla", "Tesla Inc", "Model S", "Model 3", "Model X", "Model Y", "Cybertruck"},
	"NFLX":  {"Netflix", "Netflix Inc", "streaming"},
	"INTC":  {"Intel", "Intel Corp", "Core i7", "Core i9", "Xeon"},
	"XOM":   {"Exxon Mobil", "Exxon", "ExxonMobil", "Mobil"},
	"CVX":   {"Chevron", "Chevron Corp", "Chevron Corporation"},
	"SLB":   {"Schlumberger", "Schlumberger Limited"},
	"COP":   {"ConocoPhillips", "Conoco Phillips"},
	"EOG":   {"EOG Resources", "EOG"},
	"JNJ":   {"Johnson & Johnson", "J&J", "Johnson and Johnson"},
	"PFE":   {"Pfizer", "Pfizer Inc", "Comirnaty"},
	"UNH":   {"UnitedHealth", "UnitedHealth Group", "United Healthcare"},
	"ABBV":  {"AbbVie", "Abbvie"},
	"TMO":   {"Thermo Fisher", "Thermo Fisher Scientific"},
	"JPM":   {"JPMorgan", "JPMorgan Chase", "JP Morgan", "Chase Bank"},
	"BAC":   {"Bank of America", "BofA", "Merrill Lynch"},
	"GS":    {"Goldman Sachs", "Goldman"},
	"MS":    {"Morgan Stanley"},
	"WFC":   {"Wells Fargo", "Wells Fargo Bank"},
	"WMT":   {"Walmart", "Walmart Inc"},
	"PG":    {"Procter & Gamble", "P&G", "Procter and Gamble"},
	"KO":    {"Coca-Cola", "Coke"},
	"PEP":   {"PepsiCo", "Pepsi"},
	"MCD":   {"McDonald's", "McDonalds"},
}

// RelevanceFilter scores articles by how relevant they are to a
// symbol, using weighted keyword matching over title, content, and
// summary.
type RelevanceFilter struct {
	MinScore float64
}

// NewRelevanceFilter creates a relevance filter with the given minimum
// score threshold.
func NewRelevanceFilter(minScore float64) *RelevanceFilter {
	return &RelevanceFilter{MinScore: minScore}
}

// keywords returns the search terms for a symbol: the ticker itself
// followed by company names and aliases.
func keywords(symbol string) []string {
	symbol = utils.NormalizeSymbol(symbol)
	kw := []string{symbol}
	return append(kw, CompanyNames[symbol]...)
}

// countMatches scores keyword presence in a text field. Primary
// keywords (ticker + company name) carry 0.7 of the weight, aliases
// the remaining 0.3, with multiplicative boosts for multiple hits.
func countMatches(text string, kw []string) float64 {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)

	primary := kw
	var secondary []string
	if len(kw) > 2 {
		primary = kw[:2]
		secondary = kw[2:]
	}

	var primaryScore float64
	primaryMatches := 0
	for _, k := range primary {
		if strings.Contains(lower, strings.ToLower(k)) {
			primaryMatches++
			primaryScore += 0.6
		}
	}
	if len(primary) > 0 {
		primaryScore = min1(primaryScore / float64(len(primary)))
		if primaryMatches >= 2 {
			primaryScore = min1(primaryScore * 1.4)
		}
	}

	var secondaryScore float64
	if len(secondary) > 0 {
		matches := 0
		for _, k := range secondary {
			if strings.Contains(lower, strings.ToLower(k)) {
				matches++
			}
		}
		secondaryScore = float64(matches) / float64(len(secondary)) * 0.5
		if secondaryScore > 0.5 {
			secondaryScore = 0.5
		}
	}

	total := primaryScore*0.7 + secondaryScore*0.3

	unique := 0
	for _, k := range kw {
		if strings.Contains(lower, strings.ToLower(k)) {
			unique++
		}
	}
	switch {
	case unique >= 2:
		total = min1(total * 1.5)
	case unique >= 1:
		total = min1(total * 1.2)
	}
	if unique > 0 && total < 0.3 {
		total = 0.3
	}
	return min1(total)
}

// CalculateRelevance scores one article against a symbol, returning a
// value in [0, 1].
func (f *RelevanceFilter) CalculateRelevance(a models.Article, symbol string) float64 {
	kw := keywords(symbol)
	if len(kw) == 0 {
		return 0
	}

	titleScore := countMatches(a.Title, kw)
	contentScore := countMatches(a.Content, kw)
	summaryScore := countMatches(a.Summary, kw)

	var score float64
	if a.Summary != "" {
		score = titleScore*0.5 + contentScore*0.3 + summaryScore*0.2
	} else {
		score = titleScore*0.6 + contentScore*0.4
	}

	titleLower := strings.ToLower(a.Title)
	if strings.Contains(strings.ToUpper(a.Title), utils.NormalizeSymbol(symbol)) {
		score = min1(score * 1.8)
	} else if anyContains(titleLower, topN(kw, 3)) {
		score = min1(score * 1.5)
	}

	if anyContains(strings.ToLower(a.Content), topN(kw, 2)) {
		score = min1(score * 1.2)
	}

	all := strings.ToLower(a.Title + a.Content + a.Summary)
	if anyContains(all, kw) && score < 0.35 {
		score = 0.35
	}

	if score < 0 {
		score = 0
	}
	return min1(score)
}

// ScoreArticles attaches a relevance score to every article.
func (f *RelevanceFilter) ScoreArticles(articles []models.Article, symbol string) []models.Article {
	for i := range articles {
		articles[i].RelevanceScore = f.CalculateRelevance(articles[i], symbol)
	}
	return articles
}

// FilterByThreshold drops articles below minScore. A negative minScore
// uses the filter's configured threshold.
func (f *RelevanceFilter) FilterByThreshold(articles []models.Article, minScore float64) []models.Article {
	if minScore < 0 {
		minScore = f.MinScore
	}
	kept := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if a.RelevanceScore >= minScore {
			kept = append(kept, a)
		}
	}
	return kept
}

// SortByRelevance sorts articles by relevance score, highest first
// when desc is true.
func (f *RelevanceFilter) SortByRelevance(articles []models.Article, desc bool) []models.Article {
	sort.SliceStable(articles, func(i, j int) bool {
		if desc {
			return articles[i].RelevanceScore > articles[j].RelevanceScore
		}
		return articles[i].RelevanceScore < articles[j].RelevanceScore
	})
	return articles
}

func anyContains(lower string, kw []string) bool {
	for _, k := range kw {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func topN(kw []string, n int) []string {
	if len(kw) > n {
		return kw[:n]
	}
	return kw
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
