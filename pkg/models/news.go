// Package models defines the core data structures used throughout MarketPulse.
package models

import "time"

// Article represents a single news article in the standard normalized shape.
// Collectors produce Articles; the relevance filter annotates RelevanceScore.
type Article struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Source         string    `json:"source"`
	PublishedAt    time.Time `json:"published_at"`
	URL            string    `json:"url,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	Content        string    `json:"content,omitempty"`
	Symbol         string    `json:"symbol"`
	RelevanceScore float64   `json:"relevance_score"`
}

// Text returns the best available body text for an article: content if
// present, else summary.
func (a *Article) Text() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Summary
}

// SentimentScore is the per-article output of the LLM sentiment agent.
type SentimentScore struct {
	ArticleID   string    `json:"article_id"`
	Symbol      string    `json:"symbol"`
	Score       float64   `json:"sentiment_score"` // in [-1, 1]
	Label       string    `json:"sentiment_label"` // "positive", "neutral", "negative"
	Confidence  float64   `json:"confidence"`      // in [0, 1]
	Reasoning   string    `json:"reasoning"`
	Cached      bool      `json:"cached"`
	ProcessedAt time.Time `json:"processed_at"`
}

// SentimentLabel maps a score to its label using the +-0.3 thresholds.
func SentimentLabel(score float64) string {
	switch {
	case score > 0.3:
		return "positive"
	case score < -0.3:
		return "negative"
	default:
		return "neutral"
	}
}

// AggregatedSentiment is the single time-weighted signal produced per request.
type AggregatedSentiment struct {
	Symbol       string    `json:"symbol"`
	Score        float64   `json:"aggregated_sentiment"`
	Label        string    `json:"sentiment_label"`
	Confidence   float64   `json:"confidence"`
	Impact       string    `json:"impact"` // "High", "Medium", "Low"
	NewsCount    int       `json:"news_count"`
	TimeWeighted bool      `json:"time_weighted"`
	TimeHorizon  string    `json:"time_horizon"`
	AggregatedAt time.Time `json:"aggregated_at"`
}

// APIUsage reports a collector's locally tracked rate-limit state.
type APIUsage struct {
	Source         string `json:"source"`
	IsMock         bool   `json:"is_mock"`
	CallsMade      int    `json:"calls_made"`
	CallsRemaining int    `json:"calls_remaining"`
	RateLimit      string `json:"rate_limit"`
	ResetTime      string `json:"reset_time,omitempty"`
	ResetTimeDay   string `json:"reset_time_day,omitempty"`
	Plan           string `json:"plan,omitempty"`
}

// TimeHorizon is the prediction target interval that tunes the news window,
// confidence floors, and decay half-life.
type TimeHorizon string

const (
	Horizon1Sec   TimeHorizon = "1s"
	Horizon1Min   TimeHorizon = "1m"
	Horizon1Hour  TimeHorizon = "1h"
	Horizon1Day   TimeHorizon = "1d"
	Horizon1Week  TimeHorizon = "1w"
	Horizon1Month TimeHorizon = "1mo"
	Horizon1Year  TimeHorizon = "1y"
)

// ValidHorizon reports whether h is a recognized time horizon.
func ValidHorizon(h TimeHorizon) bool {
	switch h {
	case Horizon1Sec, Horizon1Min, Horizon1Hour, Horizon1Day,
		Horizon1Week, Horizon1Month, Horizon1Year:
		return true
	}
	return false
}
