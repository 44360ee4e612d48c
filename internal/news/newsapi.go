package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/copilot-trader/marketpulse/internal/infra"
	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

const newsAPIBaseURL = "https://newsapi.org/v2"

// NewsAPICollector fetches articles from NewsAPI /v2/everything. The
// free tier allows 1000 calls per day, resetting at UTC midnight.
type NewsAPICollector struct {
	apiKey  string
	baseURL string
	tracker *dayTracker
	retry   infra.RetryConfig
	logger  Logger
}

// NewNewsAPICollector creates a NewsAPI collector.
func NewNewsAPICollector(apiKey string, logger Logger) (*NewsAPICollector, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("newsapi: %w", ErrMissingAPIKey)
	}
	return &NewsAPICollector{
		apiKey:  apiKey,
		baseURL: newsAPIBaseURL,
		tracker: newDayTracker(1000),
		retry:   infra.DefaultRetryConfig(),
		logger:  logger,
	}, nil
}

// Name returns the provider name.
func (c *NewsAPICollector) Name() string { return "NewsAPI" }

// FetchNews queries /v2/everything for the symbol. The query includes
// the company name when known so generic tickers still match articles.
func (c *NewsAPICollector) FetchNews(ctx context.Context, symbol string, params FetchParams) ([]models.Article, error) {
	symbol = utils.NormalizeSymbol(symbol)

	pageSize := 100
	if params.Limit > 0 && params.Limit < pageSize {
		pageSize = params.Limit
	}

	q := url.Values{}
	q.Set("q", buildNewsAPIQuery(symbol))
	q.Set("language", "en")
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", strconv.Itoa(pageSize))
	if !params.From.IsZero() {
		q.Set("from", utils.FormatDate(params.From))
	}
	if !params.To.IsZero() {
		q.Set("to", utils.FormatDate(params.To))
	}
	reqURL := c.baseURL + "/everything?" + q.Encode()

	c.tracker.Record(time.Now())

	var resp newsAPIResponse
	err := infra.RetryWithBackoff(ctx, c.retry, func() error {
		body, _, err := infra.DoGet(ctx, reqURL, map[string]string{"X-Api-Key": c.apiKey})
		if err != nil {
			return err
		}
		defer body.Close()
		resp = newsAPIResponse{}
		return json.NewDecoder(body).Decode(&resp)
	})
	if err != nil {
		return nil, fmt.Errorf("newsapi fetch %s: %w", symbol, err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi fetch %s: %s (%s)", symbol, resp.Message, resp.Code)
	}

	articles := make([]models.Article, 0, len(resp.Articles))
	for _, item := range resp.Articles {
		a, ok := NormalizeNewsAPI(item, symbol)
		if !ok {
			c.logger.Printf("newsapi: skipping malformed article for %s", symbol)
			continue
		}
		articles = append(articles, a)
	}

	if params.Limit > 0 && len(articles) > params.Limit {
		articles = articles[:params.Limit]
	}
	return articles, nil
}

// buildNewsAPIQuery combines the symbol with its primary company name.
func buildNewsAPIQuery(symbol string) string {
	if names := CompanyNames[symbol]; len(names) > 0 {
		return symbol + " OR " + `"` + names[0] + `"`
	}
	return symbol
}

// APIUsage reports local quota tracking state.
func (c *NewsAPICollector) APIUsage() models.APIUsage {
	now := time.Now()
	calls, remaining, resetAt := c.tracker.Snapshot(now)
	return models.APIUsage{
		Source:         "NewsAPI",
		IsMock:         false,
		CallsMade:      calls,
		CallsRemaining: remaining,
		RateLimit:      "1000 calls/day",
		ResetTime:      utils.FormatISO(resetAt),
		Plan:           "Developer (free)",
	}
}
