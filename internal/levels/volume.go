package levels

import (
	"sort"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// VolumeNode is a high-volume price bin from the volume profile.
type VolumeNode struct {
	Price      float64 `json:"price"`
	Volume     float64 `json:"volume"`
	Percentile float64 `json:"percentile"`
	Touches    int     `json:"touches"`
	Type       string  `json:"type"`
}

// VolumeProfileAnalyzer builds a volume-at-price histogram and extracts
// the high-volume nodes that often act as support or resistance.
type VolumeProfileAnalyzer struct {
	Bins           int
	NodePercentile float64 // nodes must reach this volume percentile
	TouchTolerance float64 // bin touch tolerance as fraction of price
	MergeTolerance float64 // price distance for merging with cluster levels
}

// NewVolumeProfileAnalyzer creates an analyzer with the default parameters.
func NewVolumeProfileAnalyzer() *VolumeProfileAnalyzer {
	return &VolumeProfileAnalyzer{
		Bins:           50,
		NodePercentile: 60,
		TouchTolerance: 0.01,
		MergeTolerance: 0.02,
	}
}

type volumeBin struct {
	low, high float64
	volume    float64
}

// buildProfile distributes each bar's volume across the bins its
// low..high range overlaps, proportional to the overlap.
func (a *VolumeProfileAnalyzer) buildProfile(bars []models.OHLCV) []volumeBin {
	if len(bars) == 0 || a.Bins <= 0 {
		return nil
	}

	minLow := bars[0].Low
	maxHigh := bars[0].High
	for _, b := range bars[1:] {
		if b.Low < minLow {
			minLow = b.Low
		}
		if b.High > maxHigh {
			maxHigh = b.High
		}
	}
	if maxHigh <= minLow {
		return nil
	}

	width := (maxHigh - minLow) / float64(a.Bins)
	bins := make([]volumeBin, a.Bins)
	for i := range bins {
		bins[i].low = minLow + float64(i)*width
		bins[i].high = bins[i].low + width
	}

	for _, bar := range bars {
		span := bar.High - bar.Low
		for i := range bins {
			overlap := overlapLen(bar.Low, bar.High, bins[i].low, bins[i].high)
			if overlap <= 0 {
				continue
			}
			frac := 1.0
			if span > 0 {
				frac = overlap / span
			}
			bins[i].volume += float64(bar.Volume) * frac
		}
	}
	return bins
}

// DetectVolumeLevels returns the high-volume nodes with enough touches,
// sorted by volume descending.
func (a *VolumeProfileAnalyzer) DetectVolumeLevels(bars []models.OHLCV, minTouches int) []VolumeNode {
	bins := a.buildProfile(bars)
	if len(bins) == 0 {
		return nil
	}

	volumes := make([]float64, len(bins))
	for i, b := range bins {
		volumes[i] = b.volume
	}
	threshold := percentile(volumes, a.NodePercentile)

	currentClose := bars[len(bars)-1].Close

	var nodes []VolumeNode
	for _, bin := range bins {
		if bin.volume < threshold || bin.volume == 0 {
			continue
		}
		center := (bin.low + bin.high) / 2
		tol := a.TouchTolerance * center

		touches := 0
		for _, bar := range bars {
			if bar.Low <= bin.high+tol && bar.High >= bin.low-tol {
				touches++
			}
		}
		if touches < minTouches {
			continue
		}

		levelType := string(models.ExtremaPeak)
		if center < currentClose {
			levelType = string(models.ExtremaValley)
		}

		nodes = append(nodes, VolumeNode{
			Price:      center,
			Volume:     bin.volume,
			Percentile: volumeRank(volumes, bin.volume),
			Touches:    touches,
			Type:       levelType,
		})
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Volume > nodes[j].Volume })
	return nodes
}

// MergeWithPriceLevels annotates cluster levels that a volume node
// confirms and appends the remaining nodes as standalone levels.
func (a *VolumeProfileAnalyzer) MergeWithPriceLevels(levels []models.PriceLevel, nodes []VolumeNode) []models.PriceLevel {
	merged := append([]models.PriceLevel(nil), levels...)
	consumed := make([]bool, len(nodes))

	for i := range merged {
		for j, node := range nodes {
			if consumed[j] {
				continue
			}
			if merged[i].Price == 0 {
				continue
			}
			dist := absF(node.Price-merged[i].Price) / merged[i].Price
			if dist <= a.MergeTolerance {
				merged[i].Volume = node.Volume
				merged[i].VolumePercentile = node.Percentile
				merged[i].HasVolumeConfirm = true
				consumed[j] = true
				break
			}
		}
	}

	for j, node := range nodes {
		if consumed[j] {
			continue
		}
		merged = append(merged, models.PriceLevel{
			Price:            node.Price,
			Type:             node.Type,
			Touches:          node.Touches,
			Volume:           node.Volume,
			VolumePercentile: node.Percentile,
			HasVolumeConfirm: true,
		})
	}
	return merged
}

func overlapLen(aLow, aHigh, bLow, bHigh float64) float64 {
	low := aLow
	if bLow > low {
		low = bLow
	}
	high := aHigh
	if bHigh < high {
		high = bHigh
	}
	return high - low
}

// percentile returns the p-th percentile of values (nearest-rank).
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	rank := int(p / 100 * float64(len(sorted)-1))
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// volumeRank returns the percentile rank of v within values.
func volumeRank(values []float64, v float64) float64 {
	if len(values) == 0 {
		return 0
	}
	below := 0
	for _, x := range values {
		if x <= v {
			below++
		}
	}
	return float64(below) / float64(len(values)) * 100
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
