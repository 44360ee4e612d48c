package news

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/copilot-trader/marketpulse/internal/infra"
	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

// RSSFeed is one RSS source. The URL may contain %s, substituted with
// the symbol at fetch time.
type RSSFeed struct {
	Name string
	URL  string
}

// DefaultRSSFeeds lists the symbol-aware feeds polled by the RSS
// collector.
var DefaultRSSFeeds = []RSSFeed{
	{
		Name: "Yahoo Finance",
		URL:  "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US",
	},
	{
		Name: "Nasdaq",
		URL:  "https://www.nasdaq.com/feed/rssoutbound?symbol=%s",
	},
}

// RSSCollector fetches headlines from public RSS feeds. Feeds carry no
// quota; a conservative limiter keeps us polite.
type RSSCollector struct {
	feeds   []RSSFeed
	parser  *gofeed.Parser
	limiter *infra.RateLimiter
	logger  Logger

	mu    sync.Mutex
	calls int
}

// NewRSSCollector creates an RSS collector over the default feeds.
func NewRSSCollector(logger Logger) *RSSCollector {
	return NewRSSCollectorWithFeeds(DefaultRSSFeeds, logger)
}

// NewRSSCollectorWithFeeds creates an RSS collector with custom feeds.
func NewRSSCollectorWithFeeds(feeds []RSSFeed, logger Logger) *RSSCollector {
	return &RSSCollector{
		feeds:   feeds,
		parser:  gofeed.NewParser(),
		limiter: infra.NewRateLimiter(2, time.Second),
		logger:  logger,
	}
}

// Name returns the provider name.
func (c *RSSCollector) Name() string { return "RSS" }

// FetchNews polls all feeds for the symbol and filters items to the
// requested window. Failed feeds are skipped.
func (c *RSSCollector) FetchNews(ctx context.Context, symbol string, params FetchParams) ([]models.Article, error) {
	symbol = utils.NormalizeSymbol(symbol)

	var articles []models.Article
	for _, feed := range c.feeds {
		items, err := c.fetchFeed(ctx, feed, symbol)
		if err != nil {
			c.logger.Printf("rss: feed %s failed for %s: %v", feed.Name, symbol, err)
			continue
		}
		articles = append(articles, items...)
	}

	filtered := articles[:0]
	for _, a := range articles {
		if !params.From.IsZero() && a.PublishedAt.Before(params.From) {
			continue
		}
		if !params.To.IsZero() && a.PublishedAt.After(params.To) {
			continue
		}
		filtered = append(filtered, a)
	}

	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}
	return filtered, nil
}

func (c *RSSCollector) fetchFeed(ctx context.Context, feed RSSFeed, symbol string) ([]models.Article, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	feedURL := fmt.Sprintf(feed.URL, symbol)
	parsed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", feed.Name, err)
	}

	articles := make([]models.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		published := time.Now().UTC()
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		}
		a := models.Article{
			Title:       item.Title,
			Source:      feed.Name,
			PublishedAt: published,
			URL:         item.Link,
			Summary:     cleanHTML(item.Description),
			Symbol:      symbol,
		}
		a.Content = a.Summary
		a.ID = articleID(a.URL, a.Title, published)
		articles = append(articles, a)
	}
	return articles, nil
}

// APIUsage reports feed polling counts; RSS has no quota.
func (c *RSSCollector) APIUsage() models.APIUsage {
	c.mu.Lock()
	calls := c.calls
	c.mu.Unlock()
	return models.APIUsage{
		Source:    "RSS",
		IsMock:    false,
		CallsMade: calls,
		RateLimit: "Unlimited (public feeds)",
		Plan:      "Public RSS",
	}
}
