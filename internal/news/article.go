// Package news implements the news collection side of the pipeline:
// provider collectors with local rate tracking, relevance scoring,
// duplicate removal, and the fetch orchestrator.
package news

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// --- Provider wire formats ---

// finnhubArticle is the company-news item shape returned by Finnhub.
type finnhubArticle struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"` // unix seconds
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// newsAPIResponse is the envelope returned by NewsAPI /v2/everything.
type newsAPIResponse struct {
	Status       string           `json:"status"`
	TotalResults int              `json:"totalResults"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	Articles     []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// alphaVantageResponse is the NEWS_SENTIMENT envelope. Alpha Vantage
// reports quota errors inside a 200 body, hence Note/Information.
type alphaVantageResponse struct {
	Items       string                `json:"items"`
	Note        string                `json:"Note"`
	Information string                `json:"Information"`
	Feed        []alphaVantageArticle `json:"feed"`
}

type alphaVantageArticle struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	TimePublished string `json:"time_published"` // 20240115T100000
	Summary       string `json:"summary"`
	Source        string `json:"source"`
}

// --- Normalizers ---

// NormalizeFinnhub converts a Finnhub article into the standard shape.
// Returns false when the article lacks both headline and URL.
func NormalizeFinnhub(raw finnhubArticle, symbol string) (models.Article, bool) {
	if raw.Headline == "" && raw.URL == "" {
		return models.Article{}, false
	}
	published := time.Now().UTC()
	if raw.Datetime > 0 {
		published = time.Unix(raw.Datetime, 0).UTC()
	}
	a := models.Article{
		Title:       raw.Headline,
		Source:      orUnknown(raw.Source),
		PublishedAt: published,
		URL:         raw.URL,
		Summary:     raw.Summary,
		Content:     raw.Summary,
		Symbol:      symbol,
	}
	a.ID = articleID(raw.URL, raw.Headline, published)
	return a, true
}

// NormalizeNewsAPI converts a NewsAPI article into the standard shape.
func NormalizeNewsAPI(raw newsAPIArticle, symbol string) (models.Article, bool) {
	if raw.Title == "" && raw.URL == "" {
		return models.Article{}, false
	}
	published := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, raw.PublishedAt); err == nil {
		published = t.UTC()
	}
	content := raw.Content
	if content == "" {
		content = raw.Description
	}
	a := models.Article{
		Title:       raw.Title,
		Source:      orUnknown(raw.Source.Name),
		PublishedAt: published,
		URL:         raw.URL,
		Summary:     raw.Description,
		Content:     content,
		Symbol:      symbol,
	}
	a.ID = articleID(raw.URL, raw.Title, published)
	return a, true
}

// NormalizeAlphaVantage converts an Alpha Vantage feed entry into the
// standard shape. time_published uses a compact layout without zone.
func NormalizeAlphaVantage(raw alphaVantageArticle, symbol string) (models.Article, bool) {
	if raw.Title == "" && raw.URL == "" {
		return models.Article{}, false
	}
	published := time.Now().UTC()
	if t, err := time.Parse("20060102T150405", raw.TimePublished); err == nil {
		published = t.UTC()
	}
	a := models.Article{
		Title:       raw.Title,
		Source:      orUnknown(raw.Source),
		PublishedAt: published,
		URL:         raw.URL,
		Summary:     raw.Summary,
		Content:     raw.Summary,
		Symbol:      symbol,
	}
	a.ID = articleID(raw.URL, raw.Title, published)
	return a, true
}

// articleID derives a stable article identifier. The URL is preferred;
// otherwise a digest of title and timestamp keeps IDs deterministic.
func articleID(url, title string, published time.Time) string {
	if url != "" {
		return url
	}
	h := sha1.Sum([]byte(title + "|" + published.UTC().Format(time.RFC3339)))
	return "article_" + hex.EncodeToString(h[:8])
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// cleanHTML strips HTML tags from a string using goquery. RSS feeds in
// particular embed markup in item descriptions.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
