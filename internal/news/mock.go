package news

import (
	"context"
	"fmt"
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

// mockTemplate is one synthetic article, described relative to fetch
// time so the time-weighted aggregation downstream sees a realistic
// age spread.
type mockTemplate struct {
	title   string
	content string
	source  string
	ageMin  int // minutes before now
}

var mockTemplates = []mockTemplate{
	{
		title:   "%s Reports Strong Quarterly Earnings, Beats Estimates",
		content: "%s posted record revenue this quarter, with profit surging past analyst expectations. The strong growth was driven by robust demand and an upgraded full-year outlook.",
		source:  "Reuters",
		ageMin:  35,
	},
	{
		title:   "Analysts Upgrade %s on Bullish Growth Outlook",
		content: "Several analysts raised their price targets for %s, citing excellent momentum and a breakthrough product pipeline. The stock rallied on the upgrade.",
		source:  "Bloomberg",
		ageMin:  150,
	},
	{
		title:   "%s Shares Steady as Market Awaits Fed Decision",
		content: "%s traded in a narrow range on Tuesday as investors held positions ahead of the Federal Reserve's rate announcement. Volume was in line with recent averages.",
		source:  "MarketWatch",
		ageMin:  420,
	},
	{
		title:   "%s Faces Regulatory Probe Over Business Practices",
		content: "Regulators opened an investigation into %s, raising concern about potential penalties. Shares declined in after-hours trading following the disclosure.",
		source:  "Financial Times",
		ageMin:  900,
	},
	{
		title:   "%s Announces Expanded Share Buyback Program",
		content: "The board of %s approved an expanded buyback, signalling confidence in long-term growth. Investors welcomed the positive capital-return news.",
		source:  "CNBC",
		ageMin:  1600,
	},
	{
		title:   "Supply Concerns Weigh on %s Despite Solid Demand",
		content: "%s warned that supply constraints could miss near-term targets even as demand stays strong. Management said the weak spot should resolve within two quarters.",
		source:  "Reuters",
		ageMin:  2500,
	},
	{
		title:   "%s Partners With Industry Leaders on New Initiative",
		content: "%s unveiled a partnership aimed at accelerating product development. Details on revenue impact were not disclosed.",
		source:  "Business Wire",
		ageMin:  4000,
	},
	{
		title:   "Institutional Investors Increase Stakes in %s",
		content: "Recent filings show large funds added to their %s positions last quarter, a gain viewed as a vote of confidence in the company's strategy.",
		source:  "Seeking Alpha",
		ageMin:  7000,
	},
}

// MockCollector serves deterministic synthetic articles so the whole
// pipeline runs without API keys or network access.
type MockCollector struct{}

// NewMockCollector creates a mock collector.
func NewMockCollector() *MockCollector { return &MockCollector{} }

// Name returns the provider name.
func (c *MockCollector) Name() string { return "Mock" }

// FetchNews returns synthetic articles for the symbol within the
// requested window.
func (c *MockCollector) FetchNews(_ context.Context, symbol string, params FetchParams) ([]models.Article, error) {
	symbol = utils.NormalizeSymbol(symbol)

	display := symbol
	if names := CompanyNames[symbol]; len(names) > 0 {
		display = names[0]
	}

	now := time.Now().UTC()
	articles := make([]models.Article, 0, len(mockTemplates))
	for i, tmpl := range mockTemplates {
		published := now.Add(-time.Duration(tmpl.ageMin) * time.Minute)
		if !params.From.IsZero() && published.Before(params.From) {
			continue
		}
		if !params.To.IsZero() && published.After(params.To) {
			continue
		}
		a := models.Article{
			ID:          fmt.Sprintf("mock_%s_%d", symbol, i),
			Title:       fmt.Sprintf(tmpl.title, display),
			Source:      tmpl.source,
			PublishedAt: published,
			URL:         fmt.Sprintf("https://news.example.com/%s/%d", symbol, i),
			Content:     fmt.Sprintf(tmpl.content, display),
			Symbol:      symbol,
		}
		a.Summary = a.Content
		articles = append(articles, a)
	}

	if params.Limit > 0 && len(articles) > params.Limit {
		articles = articles[:params.Limit]
	}
	return articles, nil
}

// APIUsage reports that this collector serves mock data with no quota.
func (c *MockCollector) APIUsage() models.APIUsage {
	return models.APIUsage{
		Source:    "Mock",
		IsMock:    true,
		RateLimit: "Unlimited (mock data)",
		Plan:      "Mock data - no API calls",
	}
}
