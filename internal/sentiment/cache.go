package sentiment

import (
	"context"
	"sync"
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// maxEmbeddingTextLen caps the text used to build cache embeddings.
const maxEmbeddingTextLen = 500

// CacheStats reports semantic cache effectiveness.
type CacheStats struct {
	Enabled   bool    `json:"enabled"`
	Hits      int     `json:"hits"`
	Misses    int     `json:"misses"`
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
	Threshold float64 `json:"similarity_threshold"`
}

// SemanticCache caches sentiment results keyed by article embedding.
// A lookup is a hit when the nearest stored embedding's cosine
// similarity clears the threshold, so re-worded syndications of the
// same story skip the LLM call. If the embedder fails the cache
// disables itself rather than surfacing the error.
type SemanticCache struct {
	embedder  Embedder
	store     *VectorStore
	threshold float64
	ttl       time.Duration

	mu      sync.Mutex
	enabled bool
	hits    int
	misses  int
}

// NewSemanticCache creates a semantic cache. ttl of zero means entries
// never expire.
func NewSemanticCache(embedder Embedder, threshold float64, ttl time.Duration) *SemanticCache {
	if threshold <= 0 {
		threshold = 0.85
	}
	return &SemanticCache{
		embedder:  embedder,
		store:     NewVectorStore(),
		threshold: threshold,
		ttl:       ttl,
		enabled:   embedder != nil,
	}
}

// embeddingText builds the text that represents an article in the
// cache: "{title}. {body}" truncated.
func embeddingText(article models.Article) string {
	text := article.Title + ". " + article.Text()
	if len(text) > maxEmbeddingTextLen {
		text = text[:maxEmbeddingTextLen]
	}
	return text
}

// GetSimilar returns the cached result for the nearest similar
// article, if any clears the similarity threshold.
func (c *SemanticCache) GetSimilar(ctx context.Context, article models.Article, symbol string) (*Result, bool) {
	if !c.isEnabled() {
		return nil, false
	}

	vec, err := c.embedder.Embed(ctx, embeddingText(article))
	if err != nil {
		c.disable()
		return nil, false
	}

	entry, sim, found := c.store.Nearest(vec, c.ttl, time.Now())
	if !found || sim < c.threshold {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()

	r := entry.Result
	return &r, true
}

// Store saves an article's sentiment result under its embedding.
func (c *SemanticCache) Store(ctx context.Context, article models.Article, result Result, symbol string) {
	if !c.isEnabled() {
		return
	}

	vec, err := c.embedder.Embed(ctx, embeddingText(article))
	if err != nil {
		c.disable()
		return
	}

	c.store.Add(VectorEntry{
		ArticleID: article.ID,
		Vector:    vec,
		Result:    result,
		Symbol:    symbol,
		Title:     article.Title,
		AddedAt:   time.Now(),
	})
}

// Clear wipes all entries and stats.
func (c *SemanticCache) Clear() {
	c.store.Clear()
	c.mu.Lock()
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()
}

// Stats reports cache effectiveness counters.
func (c *SemanticCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Enabled:   c.enabled,
		Hits:      c.hits,
		Misses:    c.misses,
		Entries:   c.store.Len(),
		HitRate:   rate,
		Threshold: c.threshold,
	}
}

func (c *SemanticCache) isEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// disable turns the cache off after an embedder failure. The pipeline
// keeps working, just without caching.
func (c *SemanticCache) disable() {
	c.mu.Lock()
	c.enabled = false
	c.mu.Unlock()
}
