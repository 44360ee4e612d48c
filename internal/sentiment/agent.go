package sentiment

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/copilot-trader/marketpulse/internal/agent"
	"github.com/copilot-trader/marketpulse/internal/config"
	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

// confidenceThresholds maps a horizon to the minimum confidence a
// score must carry to count. Short horizons demand more certainty.
var confidenceThresholds = map[models.TimeHorizon]float64{
	models.Horizon1Sec:   0.8,
	models.Horizon1Min:   0.75,
	models.Horizon1Hour:  0.7,
	models.Horizon1Day:   0.65,
	models.Horizon1Week:  0.6,
	models.Horizon1Month: 0.55,
	models.Horizon1Year:  0.5,
}

// ConfidenceThresholdFor returns the per-horizon confidence floor,
// defaulting to the 1d value for unknown horizons.
func ConfidenceThresholdFor(horizon models.TimeHorizon) float64 {
	if t, ok := confidenceThresholds[horizon]; ok {
		return t
	}
	return confidenceThresholds[models.Horizon1Day]
}

// AnalyzeRequest holds the parameters of a sentiment analysis pass.
type AnalyzeRequest struct {
	Articles    []models.Article
	UseCache    bool
	TimeHorizon models.TimeHorizon
}

// AnalyzeResult is the outcome of one sentiment analysis pass.
type AnalyzeResult struct {
	Symbol               string                  `json:"symbol"`
	SentimentScores      []models.SentimentScore `json:"sentiment_scores"`
	CacheStats           CacheStats              `json:"cache_stats"`
	TotalArticles        int                     `json:"total_articles"`
	TotalAnalyzed        int                     `json:"total_analyzed"`
	FilteredByConfidence int                     `json:"filtered_by_confidence"`
	ConfidenceThreshold  float64                 `json:"confidence_threshold"`
	TimeHorizon          string                  `json:"time_horizon"`
	Status               string                  `json:"status"`
}

// Agent scores articles with the configured LLM client, consulting the
// semantic cache first.
type Agent struct {
	cfg    *config.Config
	logger *log.Logger

	mu          sync.Mutex
	client      LLMClient
	cache       *SemanticCache
	initialized bool
}

// NewAgent creates the sentiment agent from configuration.
func NewAgent(cfg *config.Config, logger *log.Logger) *Agent {
	return &Agent{cfg: cfg, logger: logger}
}

// Name returns the agent identifier.
func (a *Agent) Name() string { return "llm_sentiment_agent" }

// Init wires the LLM client and semantic cache. Without an OpenAI key
// the mock scorer and the local hashing embedder are used, so the
// pipeline and its cache stay fully functional offline.
func (a *Agent) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var embedder Embedder
	if key := a.cfg.LLM.OpenAIKey; key != "" {
		client, err := NewOpenAIClient(key,
			WithOpenAIModel(a.cfg.LLM.Model),
			WithOpenAIEmbeddingModel(a.cfg.LLM.EmbeddingModel),
			WithOpenAITemperature(a.cfg.LLM.Temperature),
			WithOpenAIMaxTokens(a.cfg.LLM.MaxTokens),
		)
		if err != nil {
			return err
		}
		a.client = client
		embedder = client
	} else {
		a.logger.Printf("sentiment: no OpenAI key, using mock scorer")
		a.client = NewMockLLMClient()
		embedder = NewLocalEmbedder()
	}

	if a.cfg.Cache.EnableCache {
		ttl := time.Duration(a.cfg.Cache.CacheTTLSec) * time.Second
		a.cache = NewSemanticCache(embedder, a.cfg.Cache.SimilarityThreshold, ttl)
	} else {
		a.cache = NewSemanticCache(nil, a.cfg.Cache.SimilarityThreshold, 0)
	}

	a.initialized = true
	return nil
}

// HealthCheck reports agent health.
func (a *Agent) HealthCheck() agent.Health {
	a.mu.Lock()
	defer a.mu.Unlock()

	clientName := ""
	if a.client != nil {
		clientName = a.client.Name()
	}
	return agent.Health{
		Status:  agent.StatusFor(a.initialized),
		Agent:   a.Name(),
		Version: "1.0.0",
		Components: map[string]bool{
			"llm_client":     a.client != nil,
			"semantic_cache": a.cache != nil,
		},
		Extra: map[string]any{"llm_client": clientName},
	}
}

// CacheStats returns semantic cache counters.
func (a *Agent) CacheStats() CacheStats {
	a.mu.Lock()
	cache := a.cache
	a.mu.Unlock()
	if cache == nil {
		return CacheStats{}
	}
	return cache.Stats()
}

// ClearCache wipes the semantic cache.
func (a *Agent) ClearCache() {
	a.mu.Lock()
	cache := a.cache
	a.mu.Unlock()
	if cache != nil {
		cache.Clear()
	}
}

// Process scores every article, then drops scores below the horizon's
// confidence threshold. An LLM failure on one article aborts the pass
// with status=error but keeps the scores produced so far.
func (a *Agent) Process(ctx context.Context, symbol string, req AnalyzeRequest) (*AnalyzeResult, error) {
	if err := a.ensureInit(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	client, cache := a.client, a.cache
	a.mu.Unlock()

	symbol = utils.NormalizeSymbol(symbol)
	horizon := req.TimeHorizon
	if horizon == "" {
		horizon = models.Horizon1Day
	}
	threshold := ConfidenceThresholdFor(horizon)

	res := &AnalyzeResult{
		Symbol:              symbol,
		TotalArticles:       len(req.Articles),
		ConfidenceThreshold: threshold,
		TimeHorizon:         string(horizon),
		Status:              "success",
	}

	var scores []models.SentimentScore
	for _, article := range req.Articles {
		var (
			result *Result
			cached bool
		)
		if req.UseCache {
			result, cached = cache.GetSimilar(ctx, article, symbol)
		}
		if result == nil {
			r, err := client.AnalyzeSentiment(ctx, article, symbol)
			if err != nil {
				a.logger.Printf("sentiment: LLM failed on article %s: %v", article.ID, err)
				res.Status = "error"
				break
			}
			result = r
			if req.UseCache {
				cache.Store(ctx, article, *result, symbol)
			}
		}

		scores = append(scores, models.SentimentScore{
			ArticleID:   article.ID,
			Symbol:      symbol,
			Score:       result.Score,
			Label:       result.Label,
			Confidence:  result.Confidence,
			Reasoning:   result.Reasoning,
			Cached:      cached,
			ProcessedAt: time.Now().UTC(),
		})
	}
	res.TotalAnalyzed = len(scores)

	kept := make([]models.SentimentScore, 0, len(scores))
	for _, s := range scores {
		if s.Confidence >= threshold {
			kept = append(kept, s)
		}
	}
	res.FilteredByConfidence = len(scores) - len(kept)
	res.SentimentScores = kept
	res.CacheStats = cache.Stats()

	return res, nil
}

func (a *Agent) ensureInit() error {
	a.mu.Lock()
	initialized := a.initialized
	a.mu.Unlock()
	if initialized {
		return nil
	}
	return a.Init()
}
