package levels

import (
	"math"
	"sort"
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// LevelProjector estimates how long existing levels stay valid and
// predicts where new levels are likely to form.
type LevelProjector struct{}

// NewLevelProjector creates a projector.
func NewLevelProjector() *LevelProjector { return &LevelProjector{} }

// baseLifespanDays is how long a fresh level of the given strength band
// tends to hold before the market forgets it.
func baseLifespanDays(strength int) float64 {
	switch {
	case strength >= 80:
		return 120
	case strength >= 60:
		return 60
	default:
		return 30
	}
}

// monthlyStrengthDecay is how many strength points the level loses per
// month without a touch.
func monthlyStrengthDecay(strength int) float64 {
	switch {
	case strength >= 80:
		return 5
	case strength >= 60:
		return 8
	default:
		return 10
	}
}

// ProjectLevelValidity fills the projection fields on each level:
// how long it likely remains valid, the probability it is still valid
// at horizonDays, and its decayed strength at that point.
func (p *LevelProjector) ProjectLevelValidity(levels []models.PriceLevel, now time.Time, horizonDays int) {
	if horizonDays <= 0 {
		horizonDays = 30
	}
	for i := range levels {
		level := &levels[i]

		lifespan := baseLifespanDays(level.Strength)

		// Age since the last touch eats into the remaining lifespan.
		var ageDays float64
		if level.LastTouch != nil {
			ageDays = now.Sub(*level.LastTouch).Hours() / 24
			if ageDays < 0 {
				ageDays = 0
			}
		}
		remaining := lifespan - ageDays
		if remaining < 0 {
			remaining = 0
		}

		validUntil := now.Add(time.Duration(remaining*24) * time.Hour)
		level.ProjectedValidUntil = &validUntil

		// Linear decay of validity over the remaining lifespan.
		if remaining <= 0 {
			level.ProjectedValidityProb = 0
		} else if float64(horizonDays) >= remaining {
			level.ProjectedValidityProb = 0
		} else {
			level.ProjectedValidityProb = 1 - float64(horizonDays)/remaining
		}

		months := float64(horizonDays) / 30
		projected := float64(level.Strength) - months*monthlyStrengthDecay(level.Strength)
		if projected < 0 {
			projected = 0
		}
		level.ProjectedStrength = int(math.Round(projected))
	}
}

var fibRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

// PredictFutureLevels derives likely future support/resistance from
// Fibonacci retracements of the recent swing, psychologically round
// prices and the spacing pattern of existing levels. Predictions within
// 1% of each other collapse to the higher-confidence one.
func (p *LevelProjector) PredictFutureLevels(bars []models.OHLCV, existing []models.PriceLevel, horizonDays int) []models.PredictedLevel {
	if len(bars) == 0 {
		return nil
	}
	currentPrice := bars[len(bars)-1].Close
	if currentPrice <= 0 {
		return nil
	}

	var predictions []models.PredictedLevel
	predictions = append(predictions, fibLevels(bars, currentPrice, horizonDays)...)
	predictions = append(predictions, roundNumberLevels(currentPrice, horizonDays)...)
	predictions = append(predictions, spacingLevels(existing, currentPrice, horizonDays)...)

	predictions = dedupePredictions(predictions, 0.01)
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})
	return predictions
}

// fibLevels projects retracements of the last-50-bar swing. Only levels
// within 10% of the current price are worth watching.
func fibLevels(bars []models.OHLCV, currentPrice float64, horizonDays int) []models.PredictedLevel {
	window := bars
	if len(window) > 50 {
		window = window[len(window)-50:]
	}
	swingLow := window[0].Low
	swingHigh := window[0].High
	for _, b := range window[1:] {
		if b.Low < swingLow {
			swingLow = b.Low
		}
		if b.High > swingHigh {
			swingHigh = b.High
		}
	}
	span := swingHigh - swingLow
	if span <= 0 {
		return nil
	}

	var out []models.PredictedLevel
	for _, ratio := range fibRatios {
		price := swingHigh - ratio*span
		distPct := math.Abs(price-currentPrice) / currentPrice * 100
		if distPct > 10 {
			continue
		}
		out = append(out, models.PredictedLevel{
			Price:              roundPrice(price),
			Type:               typeRelativeTo(price, currentPrice),
			Source:             "fibonacci",
			Confidence:         60 - distPct,
			ProjectedTimeframe: horizonDays,
			IsPredicted:        true,
		})
	}
	return out
}

// roundNumberLevels finds psychologically round prices near the current
// price. The increments scale with the price band.
func roundNumberLevels(currentPrice float64, horizonDays int) []models.PredictedLevel {
	var increments []float64
	switch {
	case currentPrice < 10:
		increments = []float64{1, 2, 5}
	case currentPrice < 100:
		increments = []float64{5, 10, 25}
	case currentPrice < 1000:
		increments = []float64{10, 25, 50, 100}
	default:
		increments = []float64{50, 100, 250, 500}
	}

	seen := make(map[float64]bool)
	var out []models.PredictedLevel
	for _, inc := range increments {
		below := math.Floor(currentPrice/inc) * inc
		for _, price := range []float64{below, below + inc} {
			if price <= 0 || seen[price] {
				continue
			}
			if math.Abs(price-currentPrice)/currentPrice > 0.10 {
				continue
			}
			seen[price] = true
			out = append(out, models.PredictedLevel{
				Price:              price,
				Type:               typeRelativeTo(price, currentPrice),
				Source:             "round_number",
				Confidence:         50,
				ProjectedTimeframe: horizonDays,
				IsPredicted:        true,
			})
		}
	}
	return out
}

// spacingLevels extends the average gap between existing levels one
// step beyond the outermost ones.
func spacingLevels(existing []models.PriceLevel, currentPrice float64, horizonDays int) []models.PredictedLevel {
	if len(existing) < 3 {
		return nil
	}

	prices := make([]float64, len(existing))
	for i, l := range existing {
		prices[i] = l.Price
	}
	sort.Float64s(prices)

	var gapSum float64
	for i := 1; i < len(prices); i++ {
		gapSum += prices[i] - prices[i-1]
	}
	gap := gapSum / float64(len(prices)-1)
	if gap <= 0 {
		return nil
	}

	var out []models.PredictedLevel
	for _, price := range []float64{prices[0] - gap, prices[len(prices)-1] + gap} {
		if price <= 0 {
			continue
		}
		if math.Abs(price-currentPrice)/currentPrice > 0.10 {
			continue
		}
		out = append(out, models.PredictedLevel{
			Price:              roundPrice(price),
			Type:               typeRelativeTo(price, currentPrice),
			Source:             "spacing_pattern",
			Confidence:         45,
			ProjectedTimeframe: horizonDays,
			IsPredicted:        true,
		})
	}
	return out
}

// dedupePredictions collapses predictions within tolPct of each other,
// keeping the higher-confidence one.
func dedupePredictions(predictions []models.PredictedLevel, tolPct float64) []models.PredictedLevel {
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})
	var kept []models.PredictedLevel
	for _, p := range predictions {
		dup := false
		for _, k := range kept {
			if k.Price > 0 && math.Abs(p.Price-k.Price)/k.Price <= tolPct {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, p)
		}
	}
	return kept
}

func typeRelativeTo(price, currentPrice float64) string {
	if price < currentPrice {
		return string(models.ExtremaValley)
	}
	return string(models.ExtremaPeak)
}

func roundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}
