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

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageCollector fetches articles from the NEWS_SENTIMENT
// endpoint. The free tier meters both 5 calls/minute and 500
// calls/day; remaining quota reports the tighter of the two. The
// endpoint takes no date range, so the window is applied post-hoc.
type AlphaVantageCollector struct {
	apiKey    string
	baseURL   string
	minuteTrk *minuteTracker
	dayTrk    *dayTracker
	retry     infra.RetryConfig
	logger    Logger
}

// NewAlphaVantageCollector creates an Alpha Vantage collector.
func NewAlphaVantageCollector(apiKey string, logger Logger) (*AlphaVantageCollector, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("alphavantage: %w", ErrMissingAPIKey)
	}
	return &AlphaVantageCollector{
		apiKey:    apiKey,
		baseURL:   alphaVantageBaseURL,
		minuteTrk: newMinuteTracker(5),
		dayTrk:    newDayTracker(500),
		retry:     infra.DefaultRetryConfig(),
		logger:    logger,
	}, nil
}

// Name returns the provider name.
func (c *AlphaVantageCollector) Name() string { return "AlphaVantage" }

// FetchNews fetches NEWS_SENTIMENT articles for the symbol, filtering
// by the requested window after the fact.
func (c *AlphaVantageCollector) FetchNews(ctx context.Context, symbol string, params FetchParams) ([]models.Article, error) {
	symbol = utils.NormalizeSymbol(symbol)

	limit := params.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	q := url.Values{}
	q.Set("function", "NEWS_SENTIMENT")
	q.Set("tickers", symbol)
	q.Set("apikey", c.apiKey)
	q.Set("limit", strconv.Itoa(limit))
	reqURL := c.baseURL + "?" + q.Encode()

	now := time.Now()
	c.minuteTrk.Record(now)
	c.dayTrk.Record(now)

	var resp alphaVantageResponse
	err := infra.RetryWithBackoff(ctx, c.retry, func() error {
		body, _, err := infra.DoGet(ctx, reqURL, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		resp = alphaVantageResponse{}
		return json.NewDecoder(body).Decode(&resp)
	})
	if err != nil {
		return nil, fmt.Errorf("alphavantage fetch %s: %w", symbol, err)
	}
	if resp.Note != "" {
		return nil, fmt.Errorf("alphavantage fetch %s: rate limited: %s", symbol, resp.Note)
	}
	if len(resp.Feed) == 0 && resp.Information != "" {
		return nil, fmt.Errorf("alphavantage fetch %s: %s", symbol, resp.Information)
	}

	articles := make([]models.Article, 0, len(resp.Feed))
	for _, item := range resp.Feed {
		a, ok := NormalizeAlphaVantage(item, symbol)
		if !ok {
			c.logger.Printf("alphavantage: skipping malformed article for %s", symbol)
			continue
		}
		if !params.From.IsZero() && a.PublishedAt.Before(params.From) {
			continue
		}
		if !params.To.IsZero() && a.PublishedAt.After(params.To) {
			continue
		}
		articles = append(articles, a)
	}

	if params.Limit > 0 && len(articles) > params.Limit {
		articles = articles[:params.Limit]
	}
	return articles, nil
}

// APIUsage reports the tighter of the minute and day quotas.
func (c *AlphaVantageCollector) APIUsage() models.APIUsage {
	now := time.Now()
	minCalls, minRemaining, minReset := c.minuteTrk.Snapshot(now)
	dayCalls, dayRemaining, dayReset := c.dayTrk.Snapshot(now)

	remaining := minRemaining
	if dayRemaining < remaining {
		remaining = dayRemaining
	}
	calls := dayCalls
	if minCalls > calls {
		calls = minCalls
	}

	return models.APIUsage{
		Source:         "AlphaVantage",
		IsMock:         false,
		CallsMade:      calls,
		CallsRemaining: remaining,
		RateLimit:      "5 calls/minute, 500 calls/day",
		ResetTime:      utils.FormatISO(minReset),
		ResetTimeDay:   utils.FormatISO(dayReset),
		Plan:           "Free tier",
	}
}
