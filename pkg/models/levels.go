package models

import "time"

// OHLCV represents a single candlestick bar of price data.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	AdjClose  float64   `json:"adj_close,omitempty"`
}

// Timeframe represents the chart timeframe for OHLCV data.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1m"
	Timeframe5Min  Timeframe = "5m"
	Timeframe15Min Timeframe = "15m"
	Timeframe30Min Timeframe = "30m"
	Timeframe1Hour Timeframe = "1h"
	Timeframe4Hour Timeframe = "4h"
	Timeframe1Day  Timeframe = "1d"
	Timeframe1Week Timeframe = "1w"
	Timeframe1Mon  Timeframe = "1mo"
	Timeframe1Year Timeframe = "1y"
)

// ValidTimeframes lists every timeframe accepted by the levels API.
var ValidTimeframes = []Timeframe{
	Timeframe1Min, Timeframe5Min, Timeframe15Min, Timeframe30Min,
	Timeframe1Hour, Timeframe4Hour, Timeframe1Day, Timeframe1Week,
	Timeframe1Mon, Timeframe1Year,
}

// ValidTimeframe reports whether tf is a recognized timeframe.
func ValidTimeframe(tf Timeframe) bool {
	for _, v := range ValidTimeframes {
		if tf == v {
			return true
		}
	}
	return false
}

// ExtremaType tags an extremum as a peak (resistance) or valley (support).
type ExtremaType string

const (
	ExtremaPeak   ExtremaType = "resistance"
	ExtremaValley ExtremaType = "support"
)

// ExtremaPoint is a local price extremum detected in a bar series.
type ExtremaPoint struct {
	Index     int         `json:"index"`
	Timestamp time.Time   `json:"timestamp"`
	Price     float64     `json:"price"`
	Type      ExtremaType `json:"type"`
}

// PriceLevel is a detected support or resistance level. It is created by the
// clusterer and mutated in place by the validator, volume analyzer, strength
// calculator and projector.
type PriceLevel struct {
	Price          float64    `json:"price"`
	Type           string     `json:"type"` // "support" or "resistance"
	Touches        int        `json:"touches"`
	FirstTouch     *time.Time `json:"first_touch,omitempty"`
	LastTouch      *time.Time `json:"last_touch,omitempty"`
	ValidationRate float64    `json:"validation_rate"`
	Validated      bool       `json:"validated"`
	ReactionCount  int        `json:"reaction_count,omitempty"`
	Strength       int        `json:"strength"` // 0..100
	BreakoutProb   float64    `json:"breakout_probability"`

	// Volume-profile annotations, set when a volume node confirms the level.
	Volume           float64 `json:"volume,omitempty"`
	VolumePercentile float64 `json:"volume_percentile,omitempty"`
	HasVolumeConfirm bool    `json:"has_volume_confirmation,omitempty"`

	// Forward-projection annotations, set when project_future is requested.
	ProjectedValidUntil   *time.Time `json:"projected_valid_until,omitempty"`
	ProjectedValidityProb float64    `json:"projected_validity_probability,omitempty"`
	ProjectedStrength     int        `json:"projected_strength,omitempty"`
}

// PredictedLevel is a rule-derived (optionally ML-scored) future level. It is
// never merged into the validated PriceLevel set.
type PredictedLevel struct {
	Price              float64 `json:"price"`
	Type               string  `json:"type"`
	Source             string  `json:"source"`     // "fibonacci", "round_number", "spacing_pattern"
	Confidence         float64 `json:"confidence"` // 0..100
	ProjectedTimeframe int     `json:"projected_timeframe"`
	IsPredicted        bool    `json:"is_predicted"`
}

// KeyLevel is the summary entry for a detected level: price + strength +
// direction in one formatted line.
type KeyLevel struct {
	Price               float64 `json:"price"`
	Strength            int     `json:"strength"`
	StrengthScore       string  `json:"strength_score"`
	BreakoutProb        float64 `json:"breakout_probability"`
	BreakoutProbPercent string  `json:"breakout_probability_percent"`
	Direction           string  `json:"direction"` // "SUPPORT" or "RESISTANCE"
	Type                string  `json:"type"`
	Position            string  `json:"position"` // "ABOVE", "BELOW", "AT"
	Formatted           string  `json:"formatted"`
	Touches             int     `json:"touches"`
	Validated           bool    `json:"validated"`
}
