package levels

import (
	"math"
	"sort"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// LevelValidator checks detected levels against subsequent price action:
// a level is validated when touches were usually followed by a reaction
// away from it.
type LevelValidator struct {
	TolerancePct float64 // touch tolerance as fraction of the level price
	Lookforward  int     // bars to scan after a touch for a reaction
	MaxSamples   int     // touches sampled per level
	MaxBars      int     // beyond this, validation is skipped entirely
	TopLevels    int     // batch validation restricts to this many levels
}

// NewLevelValidator creates a validator with the default parameters.
func NewLevelValidator() *LevelValidator {
	return &LevelValidator{
		TolerancePct: 0.005,
		Lookforward:  5,
		MaxSamples:   50,
		MaxBars:      200,
		TopLevels:    10,
	}
}

// ValidateLevel fills in ValidationRate, Validated and ReactionCount for
// one level. With very long series the per-touch scan is skipped and the
// level gets a neutral rate.
func (v *LevelValidator) ValidateLevel(level *models.PriceLevel, bars []models.OHLCV) {
	if level == nil || len(bars) == 0 {
		return
	}
	if len(bars) > v.MaxBars {
		level.ValidationRate = 0.5
		level.Validated = false
		level.ReactionCount = level.Touches / 2
		return
	}

	tol := v.TolerancePct * level.Price
	isSupport := level.Type == string(models.ExtremaValley)

	var touchIdx []int
	for i, bar := range bars {
		if isSupport {
			if math.Abs(bar.Low-level.Price) <= tol {
				touchIdx = append(touchIdx, i)
			}
		} else {
			if math.Abs(bar.High-level.Price) <= tol {
				touchIdx = append(touchIdx, i)
			}
		}
	}
	if len(touchIdx) == 0 {
		level.ValidationRate = 0
		level.Validated = false
		level.ReactionCount = 0
		return
	}

	sampled := sampleEvenly(touchIdx, v.MaxSamples)

	reactions := 0
	for _, ti := range sampled {
		if v.reacted(bars, ti, isSupport) {
			reactions++
		}
	}

	rate := float64(reactions) / float64(len(sampled))
	level.ValidationRate = rate
	level.Validated = rate > 0.5
	// Extrapolate the sampled reaction rate to the full touch count.
	level.ReactionCount = int(math.Round(rate * float64(len(touchIdx))))
}

// reacted reports whether price moved away from the level within the
// lookforward window after the touch at index ti.
func (v *LevelValidator) reacted(bars []models.OHLCV, ti int, isSupport bool) bool {
	end := ti + v.Lookforward
	if end >= len(bars) {
		end = len(bars) - 1
	}
	if isSupport {
		touchPrice := bars[ti].Low
		for j := ti + 1; j <= end; j++ {
			if bars[j].High > touchPrice*1.01 {
				return true
			}
		}
	} else {
		touchPrice := bars[ti].High
		for j := ti + 1; j <= end; j++ {
			if bars[j].Low < touchPrice*0.99 {
				return true
			}
		}
	}
	return false
}

// ValidateLevels validates the most-touched levels in place. Levels
// outside the top set keep their zero values.
func (v *LevelValidator) ValidateLevels(levels []models.PriceLevel, bars []models.OHLCV) {
	if len(levels) == 0 {
		return
	}

	order := make([]int, len(levels))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return levels[order[a]].Touches > levels[order[b]].Touches })

	limit := v.TopLevels
	if limit <= 0 || limit > len(order) {
		limit = len(order)
	}
	for _, idx := range order[:limit] {
		v.ValidateLevel(&levels[idx], bars)
	}
}

// sampleEvenly picks up to max indices evenly stepped across idx.
func sampleEvenly(idx []int, max int) []int {
	if max <= 0 || len(idx) <= max {
		return idx
	}
	step := float64(len(idx)) / float64(max)
	out := make([]int, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, idx[int(float64(i)*step)])
	}
	return out
}
