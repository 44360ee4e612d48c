package sentiment

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// Keyword lists for the deterministic mock scorer. Strong words move
// the score by 0.15 each, moderate words by 0.08.
var (
	strongPositive = []string{
		"surge", "soar", "record", "breakthrough", "beats", "beat estimates",
		"upgrade", "upgraded", "rally", "all-time high", "blowout",
	}
	moderatePositive = []string{
		"gain", "rise", "rose", "growth", "strong", "positive", "profit",
		"bullish", "buyback", "dividend", "partnership", "expands", "confidence",
		"welcomed", "excellent", "momentum",
	}
	strongNegative = []string{
		"plunge", "crash", "collapse", "bankruptcy", "fraud", "lawsuit",
		"downgrade", "downgraded", "recall", "investigation", "probe",
	}
	moderateNegative = []string{
		"fall", "fell", "decline", "declined", "drop", "loss", "weak", "miss",
		"concern", "warning", "warned", "bearish", "penalties", "cut",
	}
)

// MockLLMClient scores sentiment from keyword counts so the pipeline
// runs deterministically without an LLM backend.
type MockLLMClient struct{}

// NewMockLLMClient creates a mock sentiment client.
func NewMockLLMClient() *MockLLMClient { return &MockLLMClient{} }

// Name returns the client identifier.
func (c *MockLLMClient) Name() string { return "mock" }

// AnalyzeSentiment derives pseudo-sentiment from keyword matches over
// the article's title and body.
func (c *MockLLMClient) AnalyzeSentiment(_ context.Context, article models.Article, symbol string) (*Result, error) {
	text := strings.ToLower(article.Title + " " + article.Text())

	sp := countOccurrences(text, strongPositive)
	mp := countOccurrences(text, moderatePositive)
	sn := countOccurrences(text, strongNegative)
	mn := countOccurrences(text, moderateNegative)

	score := (0.15*float64(sp) + 0.08*float64(mp)) - (0.15*float64(sn) + 0.08*float64(mn))
	if score > 0.9 {
		score = 0.9
	}
	if score < -0.9 {
		score = -0.9
	}

	matches := sp + mp + sn + mn
	confidence := 0.5
	if matches > 0 {
		confidence = 0.65 + 0.04*float64(matches)
		if confidence > 0.85 {
			confidence = 0.85
		}
	}

	label := models.SentimentLabel(score)
	return &Result{
		Score:      score,
		Label:      label,
		Confidence: confidence,
		Reasoning: fmt.Sprintf("Keyword analysis for %s found %d positive and %d negative signals, suggesting %s sentiment.",
			symbol, sp+mp, sn+mn, label),
	}, nil
}

func countOccurrences(text string, words []string) int {
	n := 0
	for _, w := range words {
		n += strings.Count(text, w)
	}
	return n
}

// localEmbedderDim is the vector size of the hashing embedder. Small
// enough to stay cheap, large enough for usable cosine separation.
const localEmbedderDim = 128

// LocalEmbedder produces deterministic embeddings by hashing token
// trigrams into a fixed-size vector. It keeps the semantic cache
// functional when no embedding API is configured: near-identical texts
// land on near-identical vectors.
type LocalEmbedder struct{}

// NewLocalEmbedder creates a hashing embedder.
func NewLocalEmbedder() *LocalEmbedder { return &LocalEmbedder{} }

// Dimension returns the vector dimension.
func (e *LocalEmbedder) Dimension() int { return localEmbedderDim }

// Embed hashes word unigrams and bigrams into buckets and returns the
// L2-normalized bucket counts.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, localEmbedderDim)
	tokens := strings.Fields(strings.ToLower(text))

	add := func(feature string) {
		h := sha256.Sum256([]byte(feature))
		bucket := binary.BigEndian.Uint32(h[:4]) % localEmbedderDim
		sign := 1.0
		if h[4]%2 == 1 {
			sign = -1.0
		}
		vec[bucket] += sign
	}

	for i, tok := range tokens {
		add(tok)
		if i+1 < len(tokens) {
			add(tok + " " + tokens[i+1])
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
