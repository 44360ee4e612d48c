package news

import (
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// horizonWindows maps a time horizon to the initial fetch window. The
// window is wider than the horizon itself so short horizons still have
// articles to work with.
var horizonWindows = map[models.TimeHorizon]time.Duration{
	models.Horizon1Sec:   5 * time.Minute,
	models.Horizon1Min:   15 * time.Minute,
	models.Horizon1Hour:  6 * time.Hour,
	models.Horizon1Day:   3 * 24 * time.Hour,
	models.Horizon1Week:  7 * 24 * time.Hour,
	models.Horizon1Month: 30 * 24 * time.Hour,
	models.Horizon1Year:  365 * 24 * time.Hour,
}

// DateRange is a fetch window.
type DateRange struct {
	From time.Time
	To   time.Time
}

// WindowFor returns the initial fetch window for a horizon, ending at
// now. Unknown horizons fall back to the 1d window.
func WindowFor(horizon models.TimeHorizon, now time.Time) DateRange {
	d, ok := horizonWindows[horizon]
	if !ok {
		d = horizonWindows[models.Horizon1Day]
	}
	return DateRange{From: now.Add(-d), To: now}
}

// MaxWindowExpansions caps how many times a sparse fetch widens its
// window before giving up.
const MaxWindowExpansions = 2

// ExpandWindow widens a window by 1.5x, keeping the end fixed.
func ExpandWindow(r DateRange) DateRange {
	width := r.To.Sub(r.From)
	expanded := time.Duration(float64(width) * 1.5)
	return DateRange{From: r.To.Add(-expanded), To: r.To}
}
