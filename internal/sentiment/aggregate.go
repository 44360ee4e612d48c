package sentiment

import (
	"math"
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// DecayParams tunes exponential time weighting for one horizon.
type DecayParams struct {
	HalfLife time.Duration // weight halves every HalfLife
	MaxAge   time.Duration // articles older than this get zero weight
}

// decayByHorizon maps each horizon to its decay parameters. Short
// horizons forget fast; long horizons keep old news relevant.
var decayByHorizon = map[models.TimeHorizon]DecayParams{
	models.Horizon1Sec:   {HalfLife: 6 * time.Minute, MaxAge: 30 * time.Minute},
	models.Horizon1Min:   {HalfLife: 6 * time.Minute, MaxAge: 30 * time.Minute},
	models.Horizon1Hour:  {HalfLife: 2 * time.Hour, MaxAge: 6 * time.Hour},
	models.Horizon1Day:   {HalfLife: 24 * time.Hour, MaxAge: 72 * time.Hour},
	models.Horizon1Week:  {HalfLife: 72 * time.Hour, MaxAge: 168 * time.Hour},
	models.Horizon1Month: {HalfLife: 168 * time.Hour, MaxAge: 720 * time.Hour},
	models.Horizon1Year:  {HalfLife: 720 * time.Hour, MaxAge: 8760 * time.Hour},
}

// DecayParamsFor returns the decay parameters for a horizon, falling
// back to the 1d values.
func DecayParamsFor(horizon models.TimeHorizon) DecayParams {
	if p, ok := decayByHorizon[horizon]; ok {
		return p
	}
	return decayByHorizon[models.Horizon1Day]
}

// AggregateOutput is the weighted combination of a batch of scores.
type AggregateOutput struct {
	Score          float64
	Label          string
	Confidence     float64
	WeightsApplied []float64
	TotalWeight    float64
}

// TimeWeightedAggregator combines per-article scores with exponential
// recency decay.
type TimeWeightedAggregator struct {
	params DecayParams
}

// NewTimeWeightedAggregator creates an aggregator for a horizon.
func NewTimeWeightedAggregator(horizon models.TimeHorizon) *TimeWeightedAggregator {
	return &TimeWeightedAggregator{params: DecayParamsFor(horizon)}
}

// weight returns the decay weight of a score with the given age.
func (a *TimeWeightedAggregator) weight(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	if age > a.params.MaxAge {
		return 0
	}
	return math.Pow(0.5, float64(age)/float64(a.params.HalfLife))
}

// Aggregate computes the time-weighted score and confidence. When all
// weights decay to zero (every article is too old), it falls back to a
// plain mean so the batch still produces a signal.
func (a *TimeWeightedAggregator) Aggregate(scores []models.SentimentScore, now time.Time) AggregateOutput {
	if len(scores) == 0 {
		return AggregateOutput{Label: "neutral"}
	}

	weights := make([]float64, len(scores))
	var weightedScore, weightedConf, totalWeight float64
	for i, s := range scores {
		w := a.weight(now.Sub(s.ProcessedAt))
		weights[i] = w
		weightedScore += s.Score * w
		weightedConf += s.Confidence * w
		totalWeight += w
	}

	var score, conf float64
	if totalWeight > 0 {
		score = weightedScore / totalWeight
		conf = weightedConf / totalWeight
	} else {
		// All articles aged out; plain mean fallback.
		for _, s := range scores {
			score += s.Score
			conf += s.Confidence
		}
		score /= float64(len(scores))
		conf /= float64(len(scores))
	}

	return AggregateOutput{
		Score:          score,
		Label:          models.SentimentLabel(score),
		Confidence:     conf,
		WeightsApplied: weights,
		TotalWeight:    totalWeight,
	}
}

// ── Impact scoring ──

// ImpactScorer classifies how much a sentiment batch should move the
// market, from the signal's magnitude, volume, recency, and certainty.
type ImpactScorer struct{}

// NewImpactScorer creates an impact scorer.
func NewImpactScorer() *ImpactScorer { return &ImpactScorer{} }

// CalculateRecencyScore is the mean of the aggregation weights: near 1
// when the batch is fresh, near 0 when it is stale.
func (s *ImpactScorer) CalculateRecencyScore(weights []float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	return sum / float64(len(weights))
}

// CalculateImpact returns the impact label for an aggregated score.
// recency and confidence may be negative to use their defaults.
func (s *ImpactScorer) CalculateImpact(aggregated float64, count int, recency, confidence float64) string {
	if recency < 0 {
		recency = 0.15
	}
	if confidence < 0 {
		confidence = 0.05
	}

	volume := float64(count) / 20
	if volume > 1 {
		volume = 1
	}

	impact := 0.4*math.Abs(aggregated) + 0.3*volume + 0.2*recency + 0.1*confidence

	switch {
	case impact >= 0.7 && count >= 10:
		return "High"
	case impact >= 0.4 && count >= 5:
		return "Medium"
	default:
		return "Low"
	}
}
