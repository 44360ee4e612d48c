package levels

import (
	"math"
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// StrengthCalculator scores a level 0..100 from its touch count, the
// recency of its last touch and its validation rate.
type StrengthCalculator struct {
	TouchWeight    float64
	TimeWeight     float64
	ReactionWeight float64
}

// NewStrengthCalculator creates a calculator with the default weights.
func NewStrengthCalculator() *StrengthCalculator {
	return &StrengthCalculator{TouchWeight: 0.4, TimeWeight: 0.3, ReactionWeight: 0.3}
}

// CalculateStrength scores one level. Weights are normalized so callers
// can tune them without keeping the sum at 1.
func (s *StrengthCalculator) CalculateStrength(level models.PriceLevel, now time.Time) int {
	tw, mw, rw := s.TouchWeight, s.TimeWeight, s.ReactionWeight
	total := tw + mw + rw
	if total <= 0 {
		tw, mw, rw = 0.4, 0.3, 0.3
		total = 1
	}

	score := (tw*touchScore(level.Touches) +
		mw*timeScore(level.LastTouch, now) +
		rw*reactionScore(level.ValidationRate)) / total

	strength := int(math.Round(score * 100))
	if strength < 0 {
		strength = 0
	}
	if strength > 100 {
		strength = 100
	}
	return strength
}

// ScoreLevels fills Strength on every level in place.
func (s *StrengthCalculator) ScoreLevels(levels []models.PriceLevel, now time.Time) {
	for i := range levels {
		levels[i].Strength = s.CalculateStrength(levels[i], now)
	}
}

func touchScore(touches int) float64 {
	switch {
	case touches >= 5:
		return 1.0
	case touches == 4:
		return 0.75
	case touches == 3:
		return 0.6
	case touches == 2:
		return 0.4
	case touches == 1:
		return 0.2
	default:
		return 0
	}
}

func timeScore(lastTouch *time.Time, now time.Time) float64 {
	if lastTouch == nil {
		return 0.2
	}
	age := now.Sub(*lastTouch)
	switch {
	case age <= 30*24*time.Hour:
		return 1.0
	case age <= 90*24*time.Hour:
		return 0.8
	case age <= 180*24*time.Hour:
		return 0.6
	case age <= 365*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

func reactionScore(rate float64) float64 {
	switch {
	case rate >= 0.8:
		return 1.0
	case rate >= 0.6:
		return 0.8
	case rate >= 0.4:
		return 0.6
	case rate >= 0.2:
		return 0.4
	default:
		return 0.2
	}
}

// CalculateBreakoutProbability estimates 0..100 how likely price is to
// break through the level rather than respect it. Closer price, weaker
// level and approach from the "breaking" side all raise it.
func CalculateBreakoutProbability(level models.PriceLevel, currentPrice float64) float64 {
	if level.Price <= 0 {
		return 0
	}

	dist := math.Abs(currentPrice-level.Price) / level.Price
	distanceFactor := 1 - 10*dist
	if distanceFactor < 0 {
		distanceFactor = 0
	}
	if distanceFactor > 1 {
		distanceFactor = 1
	}

	strengthFactor := 1 - float64(level.Strength)/100

	var directionFactor float64
	switch level.Type {
	case string(models.ExtremaValley):
		if currentPrice < level.Price {
			directionFactor = 1.0 // already below support: break in progress
		} else {
			directionFactor = 0.2
		}
	case string(models.ExtremaPeak):
		if currentPrice > level.Price {
			directionFactor = 1.0
		} else {
			directionFactor = 0.3
		}
	default:
		directionFactor = 0.5
	}

	return 100 * (0.4*distanceFactor + 0.3*strengthFactor + 0.3*directionFactor)
}

// ScoreBreakouts fills BreakoutProb on every level in place.
func ScoreBreakouts(levels []models.PriceLevel, currentPrice float64) {
	for i := range levels {
		levels[i].BreakoutProb = CalculateBreakoutProbability(levels[i], currentPrice)
	}
}
