// Package sentiment implements per-article LLM sentiment scoring with
// a semantic embedding cache, plus time-weighted aggregation of the
// resulting scores into a single signal.
package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// Common errors returned by the sentiment clients.
var (
	ErrNoAPIKey     = errors.New("sentiment: API key not configured")
	ErrRateLimit    = errors.New("sentiment: rate limit exceeded")
	ErrProviderDown = errors.New("sentiment: provider unavailable")
	ErrParse        = errors.New("sentiment: cannot parse LLM reply")
)

// Result is one article's sentiment analysis.
type Result struct {
	Score      float64 `json:"sentiment_score"` // in [-1, 1]
	Label      string  `json:"sentiment_label"`
	Confidence float64 `json:"confidence"` // in [0, 1]
	Reasoning  string  `json:"reasoning"`
}

// LLMClient analyzes the sentiment of one article for a symbol.
type LLMClient interface {
	// Name returns the client identifier (e.g., "openai", "mock").
	Name() string

	// AnalyzeSentiment scores one article. The returned score is in
	// [-1, 1] with the label consistent with the +-0.3 thresholds.
	AnalyzeSentiment(ctx context.Context, article models.Article, symbol string) (*Result, error)
}

// Embedder turns text into a fixed-dimension vector for the semantic
// cache.
type Embedder interface {
	// Embed returns the embedding vector for a text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Dimension returns the vector dimension.
	Dimension() int
}

// maxPromptContentLen caps how much article body goes into the prompt.
const maxPromptContentLen = 2000

// BuildSentimentPrompt formats the financial-sentiment prompt sent to
// the LLM. The reply is expected to contain a JSON object with
// sentiment_score, sentiment_label, confidence, and reasoning.
func BuildSentimentPrompt(article models.Article, symbol string) string {
	content := article.Text()
	if len(content) > maxPromptContentLen {
		content = content[:maxPromptContentLen]
	}

	var b strings.Builder
	b.WriteString("You are a financial sentiment analyst. Analyze the following news article about ")
	b.WriteString(symbol)
	b.WriteString(" and assess its likely impact on the stock price.\n\n")
	b.WriteString("Title: ")
	b.WriteString(article.Title)
	b.WriteString("\nSource: ")
	b.WriteString(article.Source)
	b.WriteString("\nContent: ")
	b.WriteString(content)
	b.WriteString("\n\nRespond with a JSON object only, in this exact shape:\n")
	b.WriteString(`{"sentiment_score": <float -1.0 to 1.0>, "sentiment_label": "positive|neutral|negative", "confidence": <float 0.0 to 1.0>, "reasoning": "<one short sentence>"}`)
	return b.String()
}

var scorePattern = regexp.MustCompile(`sentiment_score"?\s*[:=]\s*(-?\d+(?:\.\d+)?)`)
var confidencePattern = regexp.MustCompile(`confidence"?\s*[:=]\s*(\d+(?:\.\d+)?)`)

// ParseSentimentResult extracts a Result from free-form LLM output.
// It first tries the outermost JSON object in the text, then falls
// back to regex extraction of the numeric fields.
func ParseSentimentResult(content string) (*Result, error) {
	if r, ok := parseJSONBlock(content); ok {
		return r, nil
	}

	// Regex fallback for replies where the JSON is mangled.
	m := scorePattern.FindStringSubmatch(content)
	if m == nil {
		return nil, fmt.Errorf("%w: no sentiment_score in reply", ErrParse)
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad score %q", ErrParse, m[1])
	}
	score = ClampScore(score)

	confidence := 0.5
	if cm := confidencePattern.FindStringSubmatch(content); cm != nil {
		if c, err := strconv.ParseFloat(cm[1], 64); err == nil && c >= 0 && c <= 1 {
			confidence = c
		}
	}

	return &Result{
		Score:      score,
		Label:      models.SentimentLabel(score),
		Confidence: confidence,
		Reasoning:  "extracted from unstructured reply",
	}, nil
}

// parseJSONBlock extracts the outermost {...} block and unmarshals it.
func parseJSONBlock(content string) (*Result, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var r Result
	if err := json.Unmarshal([]byte(content[start:end+1]), &r); err != nil {
		return nil, false
	}
	r.Score = ClampScore(r.Score)
	if r.Label == "" {
		r.Label = models.SentimentLabel(r.Score)
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	return &r, true
}

// ClampScore bounds a sentiment score to [-1, 1].
func ClampScore(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
