package levels

import (
	"math"
	"sort"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// ExtremaDetector finds local highs and lows in a bar series.
type ExtremaDetector struct {
	WindowSize  int // comparison radius on each side
	MinDistance int // minimum bar distance between kept extrema
}

// NewExtremaDetector creates a detector with the default parameters.
func NewExtremaDetector() *ExtremaDetector {
	return &ExtremaDetector{WindowSize: 5, MinDistance: 10}
}

// DetectPeaks finds local maxima of the highs, tagged resistance.
func (d *ExtremaDetector) DetectPeaks(bars []models.OHLCV) []models.ExtremaPoint {
	return d.detect(bars, true)
}

// DetectValleys finds local minima of the lows, tagged support.
func (d *ExtremaDetector) DetectValleys(bars []models.OHLCV) []models.ExtremaPoint {
	return d.detect(bars, false)
}

func (d *ExtremaDetector) detect(bars []models.OHLCV, peaks bool) []models.ExtremaPoint {
	w := d.WindowSize
	if w < 1 {
		w = 1
	}
	if len(bars) < 2*w+1 {
		return nil
	}

	var points []models.ExtremaPoint
	for i := w; i < len(bars)-w; i++ {
		isExtremum := true
		for j := i - w; j <= i+w && isExtremum; j++ {
			if j == i {
				continue
			}
			if peaks {
				if bars[j].High > bars[i].High {
					isExtremum = false
				}
			} else {
				if bars[j].Low < bars[i].Low {
					isExtremum = false
				}
			}
		}
		if !isExtremum {
			continue
		}

		p := models.ExtremaPoint{
			Index:     i,
			Timestamp: bars[i].Timestamp,
		}
		if peaks {
			p.Price = bars[i].High
			p.Type = models.ExtremaPeak
		} else {
			p.Price = bars[i].Low
			p.Type = models.ExtremaValley
		}
		points = append(points, p)
	}

	return d.enforceMinDistance(points)
}

// enforceMinDistance drops extrema closer than MinDistance bars to the
// previously kept one. Earlier wins.
func (d *ExtremaDetector) enforceMinDistance(points []models.ExtremaPoint) []models.ExtremaPoint {
	if len(points) == 0 || d.MinDistance <= 0 {
		return points
	}
	kept := points[:1]
	for _, p := range points[1:] {
		if p.Index-kept[len(kept)-1].Index >= d.MinDistance {
			kept = append(kept, p)
		}
	}
	return kept
}

// FilterNoise removes extrema whose price barely differs from their
// neighbors. Points are price-sorted; the endpoints always survive,
// interior points survive when their relative change from the previous
// kept point is at least minChangePct.
func (d *ExtremaDetector) FilterNoise(points []models.ExtremaPoint, minChangePct float64) []models.ExtremaPoint {
	if len(points) <= 2 {
		return points
	}
	if minChangePct <= 0 {
		minChangePct = 0.005
	}

	sorted := append([]models.ExtremaPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	kept := []models.ExtremaPoint{sorted[0]}
	for i := 1; i < len(sorted)-1; i++ {
		prev := kept[len(kept)-1].Price
		if prev > 0 && math.Abs(sorted[i].Price-prev)/prev >= minChangePct {
			kept = append(kept, sorted[i])
		}
	}
	return append(kept, sorted[len(sorted)-1])
}
