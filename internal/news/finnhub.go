package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/copilot-trader/marketpulse/internal/infra"
	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

// ErrMissingAPIKey is returned when a collector is constructed without
// its required API key.
var ErrMissingAPIKey = errors.New("API key is required")

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubCollector fetches company news from Finnhub. The free tier
// allows 60 calls per minute.
type FinnhubCollector struct {
	apiKey  string
	baseURL string
	tracker *minuteTracker
	retry   infra.RetryConfig
	logger  Logger
}

// NewFinnhubCollector creates a Finnhub collector.
func NewFinnhubCollector(apiKey string, logger Logger) (*FinnhubCollector, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("finnhub: %w", ErrMissingAPIKey)
	}
	return &FinnhubCollector{
		apiKey:  apiKey,
		baseURL: finnhubBaseURL,
		tracker: newMinuteTracker(60),
		retry:   infra.DefaultRetryConfig(),
		logger:  logger,
	}, nil
}

// Name returns the provider name.
func (c *FinnhubCollector) Name() string { return "Finnhub" }

// FetchNews fetches company news for the symbol within the window.
// Finnhub takes dates as YYYY-MM-DD.
func (c *FinnhubCollector) FetchNews(ctx context.Context, symbol string, params FetchParams) ([]models.Article, error) {
	symbol = utils.NormalizeSymbol(symbol)

	from := params.From
	if from.IsZero() {
		from = time.Now().AddDate(0, 0, -7)
	}
	to := params.To
	if to.IsZero() {
		to = time.Now()
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("from", utils.FormatDate(from))
	q.Set("to", utils.FormatDate(to))
	q.Set("token", c.apiKey)
	reqURL := c.baseURL + "/company-news?" + q.Encode()

	c.tracker.Record(time.Now())

	var raw []finnhubArticle
	err := infra.RetryWithBackoff(ctx, c.retry, func() error {
		body, _, err := infra.DoGet(ctx, reqURL, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		raw = raw[:0]
		return json.NewDecoder(body).Decode(&raw)
	})
	if err != nil {
		return nil, fmt.Errorf("finnhub fetch %s: %w", symbol, err)
	}

	articles := make([]models.Article, 0, len(raw))
	for _, item := range raw {
		a, ok := NormalizeFinnhub(item, symbol)
		if !ok {
			c.logger.Printf("finnhub: skipping malformed article for %s", symbol)
			continue
		}
		articles = append(articles, a)
	}

	if params.Limit > 0 && len(articles) > params.Limit {
		articles = articles[:params.Limit]
	}
	return articles, nil
}

// APIUsage reports local quota tracking state.
func (c *FinnhubCollector) APIUsage() models.APIUsage {
	now := time.Now()
	calls, remaining, resetAt := c.tracker.Snapshot(now)
	return models.APIUsage{
		Source:         "Finnhub",
		IsMock:         false,
		CallsMade:      calls,
		CallsRemaining: remaining,
		RateLimit:      "60 calls/minute",
		ResetTime:      utils.FormatISO(resetAt),
		Plan:           "Free tier",
	}
}

// Logger is the minimal logging surface the collectors need. *log.Logger
// satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// nopLogger discards all output. Used in tests.
type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
