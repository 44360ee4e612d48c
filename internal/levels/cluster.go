package levels

import (
	"math"
	"sort"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// DBSCANClusterer groups extrema prices into levels with 1-D DBSCAN.
// eps is expressed as a fraction of the median extrema price so the
// neighborhood scales with the instrument.
type DBSCANClusterer struct {
	EpsFraction float64 // neighborhood radius as fraction of median price
	MinSamples  int
}

// NewDBSCANClusterer creates a clusterer with the default parameters.
func NewDBSCANClusterer() *DBSCANClusterer {
	return &DBSCANClusterer{EpsFraction: 0.02, MinSamples: 2}
}

const noiseLabel = -1

// ClusterLevels groups extrema into PriceLevels. Noise points are
// discarded. Each cluster's price is the mean of its members; its type
// comes from the member closest to that mean.
func (c *DBSCANClusterer) ClusterLevels(points []models.ExtremaPoint) []models.PriceLevel {
	if len(points) == 0 {
		return nil
	}

	prices := make([]float64, len(points))
	for i, p := range points {
		prices[i] = p.Price
	}
	eps := c.EpsFraction * median(prices)
	if eps <= 0 {
		return nil
	}

	labels := dbscan1D(prices, eps, c.MinSamples)

	byCluster := make(map[int][]models.ExtremaPoint)
	for i, label := range labels {
		if label == noiseLabel {
			continue
		}
		byCluster[label] = append(byCluster[label], points[i])
	}

	levels := make([]models.PriceLevel, 0, len(byCluster))
	for _, members := range byCluster {
		levels = append(levels, clusterToLevel(members))
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	return levels
}

// FilterClusters keeps levels with at least minTouches touches.
func (c *DBSCANClusterer) FilterClusters(levels []models.PriceLevel, minTouches int) []models.PriceLevel {
	kept := make([]models.PriceLevel, 0, len(levels))
	for _, l := range levels {
		if l.Touches >= minTouches {
			kept = append(kept, l)
		}
	}
	return kept
}

// dbscan1D labels points on a line. Sorting first makes neighborhood
// queries a linear scan.
func dbscan1D(prices []float64, eps float64, minSamples int) []int {
	n := len(prices)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return prices[order[a]] < prices[order[b]] })

	labels := make([]int, n)
	for i := range labels {
		labels[i] = noiseLabel
	}

	neighbors := func(sortedIdx int) []int {
		var out []int
		p := prices[order[sortedIdx]]
		for j := sortedIdx; j >= 0 && p-prices[order[j]] <= eps; j-- {
			out = append(out, j)
		}
		for j := sortedIdx + 1; j < n && prices[order[j]]-p <= eps; j++ {
			out = append(out, j)
		}
		return out
	}

	visited := make([]bool, n)
	cluster := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		nbrs := neighbors(i)
		if len(nbrs) < minSamples {
			continue // stays noise unless absorbed later
		}

		// Expand a new cluster from this core point.
		labels[order[i]] = cluster
		queue := nbrs
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[order[j]] == noiseLabel {
				labels[order[j]] = cluster
			}
			if visited[j] {
				continue
			}
			visited[j] = true
			jn := neighbors(j)
			if len(jn) >= minSamples {
				queue = append(queue, jn...)
			}
		}
		cluster++
	}
	return labels
}

// clusterToLevel summarizes a cluster's members into a PriceLevel.
func clusterToLevel(members []models.ExtremaPoint) models.PriceLevel {
	var sum float64
	first := members[0].Timestamp
	last := members[0].Timestamp
	for _, m := range members {
		sum += m.Price
		if m.Timestamp.Before(first) {
			first = m.Timestamp
		}
		if m.Timestamp.After(last) {
			last = m.Timestamp
		}
	}
	mean := sum / float64(len(members))

	// Type from the member closest to the cluster mean.
	closest := members[0]
	for _, m := range members[1:] {
		if math.Abs(m.Price-mean) < math.Abs(closest.Price-mean) {
			closest = m
		}
	}

	firstCopy, lastCopy := first, last
	return models.PriceLevel{
		Price:      mean,
		Type:       string(closest.Type),
		Touches:    len(members),
		FirstTouch: &firstCopy,
		LastTouch:  &lastCopy,
	}
}

// median returns the median of values (not in-place; input untouched).
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
