package sentiment

import (
	"log"
	"sync"
	"time"

	"github.com/copilot-trader/marketpulse/internal/agent"
	"github.com/copilot-trader/marketpulse/internal/config"
	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

// horizonFloors pairs the hard confidence floor with the advisory
// minimum article count for each horizon.
type horizonFloor struct {
	Confidence  float64
	MinArticles int
}

var horizonFloors = map[models.TimeHorizon]horizonFloor{
	models.Horizon1Sec:   {0.8, 3},
	models.Horizon1Min:   {0.75, 5},
	models.Horizon1Hour:  {0.7, 8},
	models.Horizon1Day:   {0.65, 10},
	models.Horizon1Week:  {0.6, 15},
	models.Horizon1Month: {0.55, 20},
	models.Horizon1Year:  {0.5, 25},
}

// AggregateRequest holds the inputs of one aggregation.
type AggregateRequest struct {
	SentimentScores []models.SentimentScore
	TimeWeighted    bool
	TimeHorizon     models.TimeHorizon
}

// AggregateResult is the final pipeline output for a symbol.
type AggregateResult struct {
	models.AggregatedSentiment
	Status  string `json:"status"`
	Warning string `json:"warning,omitempty"`
}

// Aggregator combines per-article scores into one signal per request.
type Aggregator struct {
	cfg    *config.Config
	impact *ImpactScorer
	logger *log.Logger

	mu          sync.Mutex
	initialized bool
}

// NewAggregator creates the sentiment aggregator agent.
func NewAggregator(cfg *config.Config, logger *log.Logger) *Aggregator {
	return &Aggregator{cfg: cfg, logger: logger}
}

// Name returns the agent identifier.
func (a *Aggregator) Name() string { return "sentiment_aggregator" }

// Init prepares the aggregator.
func (a *Aggregator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.impact = NewImpactScorer()
	a.initialized = true
	return nil
}

// HealthCheck reports agent health.
func (a *Aggregator) HealthCheck() agent.Health {
	a.mu.Lock()
	defer a.mu.Unlock()
	return agent.Health{
		Status:  agent.StatusFor(a.initialized),
		Agent:   a.Name(),
		Version: "1.0.0",
		Components: map[string]bool{
			"time_weighted_aggregator": true,
			"impact_scorer":            a.impact != nil,
		},
	}
}

// Process aggregates scores for a symbol. The horizon's confidence
// floor filters hard; the minimum-article floor only produces a
// warning. Empty input yields a neutral success, never an error.
func (a *Aggregator) Process(symbol string, req AggregateRequest) (*AggregateResult, error) {
	if err := a.ensureInit(); err != nil {
		return nil, err
	}

	symbol = utils.NormalizeSymbol(symbol)
	horizon := req.TimeHorizon
	if horizon == "" {
		horizon = models.Horizon1Day
	}
	floor, ok := horizonFloors[horizon]
	if !ok {
		floor = horizonFloors[models.Horizon1Day]
	}

	kept := make([]models.SentimentScore, 0, len(req.SentimentScores))
	for _, s := range req.SentimentScores {
		if s.Confidence >= floor.Confidence {
			kept = append(kept, s)
		}
	}

	now := time.Now().UTC()
	res := &AggregateResult{
		AggregatedSentiment: models.AggregatedSentiment{
			Symbol:       symbol,
			Label:        "neutral",
			Impact:       "Low",
			NewsCount:    len(kept),
			TimeWeighted: req.TimeWeighted,
			TimeHorizon:  string(horizon),
			AggregatedAt: now,
		},
		Status: "success",
	}

	if len(kept) == 0 {
		return res, nil
	}
	if len(kept) < floor.MinArticles {
		res.Warning = "article count below recommended minimum for horizon"
		a.logger.Printf("aggregate: %s has %d articles, recommended minimum for %s is %d",
			symbol, len(kept), horizon, floor.MinArticles)
	}

	var out AggregateOutput
	if req.TimeWeighted && a.cfg.Aggregate.UseTimeWeighting {
		out = NewTimeWeightedAggregator(horizon).Aggregate(kept, now)
	} else {
		out = plainMean(kept)
	}

	res.Score = out.Score
	res.Label = out.Label
	res.Confidence = out.Confidence

	if a.cfg.Aggregate.CalculateImpact {
		recency := a.impact.CalculateRecencyScore(out.WeightsApplied)
		res.Impact = a.impact.CalculateImpact(out.Score, len(kept), recency, out.Confidence)
	}

	return res, nil
}

// plainMean is the unweighted aggregation path.
func plainMean(scores []models.SentimentScore) AggregateOutput {
	var score, conf float64
	for _, s := range scores {
		score += s.Score
		conf += s.Confidence
	}
	score /= float64(len(scores))
	conf /= float64(len(scores))
	return AggregateOutput{
		Score:      score,
		Label:      models.SentimentLabel(score),
		Confidence: conf,
	}
}

func (a *Aggregator) ensureInit() error {
	a.mu.Lock()
	initialized := a.initialized
	a.mu.Unlock()
	if initialized {
		return nil
	}
	return a.Init()
}
