package levels

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// mlFeatureCount is the width of the prediction feature vector.
const mlFeatureCount = 12

// MLScorer rescales predicted-level confidence with a linear model
// loaded from disk. Without a model file it is a no-op.
type MLScorer struct {
	model *mlModel
}

// mlModel is a logistic scorer: sigmoid(bias + w·features) in 0..1.
type mlModel struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// NewMLScorer loads the model at path. An empty path yields a disabled
// scorer; a missing or malformed file is an error.
func NewMLScorer(path string) (*MLScorer, error) {
	if path == "" {
		return &MLScorer{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading ML model: %w", err)
	}
	var m mlModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing ML model: %w", err)
	}
	if len(m.Weights) != mlFeatureCount {
		return nil, fmt.Errorf("ML model has %d weights, want %d", len(m.Weights), mlFeatureCount)
	}
	return &MLScorer{model: &m}, nil
}

// Enabled reports whether a model is loaded.
func (s *MLScorer) Enabled() bool { return s != nil && s.model != nil }

// ScorePredictions blends each prediction's rule confidence with the
// model score: 40% rule, 60% model. Disabled scorers leave the
// predictions untouched.
func (s *MLScorer) ScorePredictions(predictions []models.PredictedLevel, bars []models.OHLCV, existing []models.PriceLevel, tf models.Timeframe) {
	if !s.Enabled() || len(bars) == 0 {
		return
	}
	for i := range predictions {
		features := predictionFeatures(predictions[i], bars, existing, tf)
		mlConf := 100 * s.model.score(features)
		predictions[i].Confidence = 0.4*predictions[i].Confidence + 0.6*mlConf
	}
}

func (m *mlModel) score(features []float64) float64 {
	z := m.Bias
	for i, f := range features {
		if i >= len(m.Weights) {
			break
		}
		z += m.Weights[i] * f
	}
	return 1 / (1 + math.Exp(-z))
}

// predictionFeatures builds the 12-entry feature vector for one
// predicted level.
func predictionFeatures(p models.PredictedLevel, bars []models.OHLCV, existing []models.PriceLevel, tf models.Timeframe) []float64 {
	currentPrice := bars[len(bars)-1].Close
	features := make([]float64, mlFeatureCount)

	// 0: normalized distance from current price
	if currentPrice > 0 {
		features[0] = math.Abs(p.Price-currentPrice) / currentPrice
	}

	// 1..3: one-hot prediction source
	switch p.Source {
	case "fibonacci":
		features[1] = 1
	case "round_number":
		features[2] = 1
	case "spacing_pattern":
		features[3] = 1
	}

	// 4: rule confidence, scaled to 0..1
	features[4] = p.Confidence / 100

	// 5: recent volatility (mean bar range over close, last 20 bars)
	window := bars
	if len(window) > 20 {
		window = window[len(window)-20:]
	}
	var rangeSum float64
	for _, b := range window {
		if b.Close > 0 {
			rangeSum += (b.High - b.Low) / b.Close
		}
	}
	features[5] = rangeSum / float64(len(window))

	// 6: trend sign over the window
	if window[len(window)-1].Close > window[0].Close {
		features[6] = 1
	} else if window[len(window)-1].Close < window[0].Close {
		features[6] = -1
	}

	// 7: share of recent volume traded within 2% of the predicted price
	var nearVol, totalVol float64
	for _, b := range window {
		totalVol += float64(b.Volume)
		mid := (b.High + b.Low) / 2
		if p.Price > 0 && math.Abs(mid-p.Price)/p.Price <= 0.02 {
			nearVol += float64(b.Volume)
		}
	}
	if totalVol > 0 {
		features[7] = nearVol / totalVol
	}

	// 8: density of existing levels within 5% of the prediction
	nearby := 0
	for _, l := range existing {
		if p.Price > 0 && math.Abs(l.Price-p.Price)/p.Price <= 0.05 {
			nearby++
		}
	}
	if len(existing) > 0 {
		features[8] = float64(nearby) / float64(len(existing))
	}

	// 9: type sign (support -1, resistance +1)
	if p.Type == string(models.ExtremaValley) {
		features[9] = -1
	} else {
		features[9] = 1
	}

	// 10: relative position of the prediction in the 50-bar range
	rangeWindow := bars
	if len(rangeWindow) > 50 {
		rangeWindow = rangeWindow[len(rangeWindow)-50:]
	}
	low := rangeWindow[0].Low
	high := rangeWindow[0].High
	for _, b := range rangeWindow[1:] {
		if b.Low < low {
			low = b.Low
		}
		if b.High > high {
			high = b.High
		}
	}
	if high > low {
		features[10] = (p.Price - low) / (high - low)
	}

	// 11: timeframe encoding, intraday 0 -> long-term 1
	features[11] = timeframeWeight(tf)

	return features
}

func timeframeWeight(tf models.Timeframe) float64 {
	switch tf {
	case models.Timeframe1Min, models.Timeframe5Min, models.Timeframe15Min, models.Timeframe30Min:
		return 0.0
	case models.Timeframe1Hour, models.Timeframe4Hour:
		return 0.25
	case models.Timeframe1Day:
		return 0.5
	case models.Timeframe1Week:
		return 0.75
	default:
		return 1.0
	}
}
