package levels

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

func writeModel(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewMLScorerEmptyPathDisabled(t *testing.T) {
	scorer, err := NewMLScorer("")
	if err != nil {
		t.Fatal(err)
	}
	if scorer.Enabled() {
		t.Error("scorer without a model must be disabled")
	}
}

func TestNewMLScorerRejectsWrongWeightCount(t *testing.T) {
	path := writeModel(t, `{"weights":[0.1,0.2],"bias":0}`)
	if _, err := NewMLScorer(path); err == nil {
		t.Error("expected error for wrong weight count")
	}
}

func TestNewMLScorerMissingFile(t *testing.T) {
	if _, err := NewMLScorer("/nonexistent/model.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestScorePredictionsDisabledIsNoOp(t *testing.T) {
	scorer := &MLScorer{}
	predictions := []models.PredictedLevel{{Price: 100, Confidence: 60, Source: "fibonacci"}}
	scorer.ScorePredictions(predictions, barsFromCloses([]float64{99, 100, 101}), nil, models.Timeframe1Day)
	if predictions[0].Confidence != 60 {
		t.Errorf("confidence = %v, want unchanged 60", predictions[0].Confidence)
	}
}

func TestScorePredictionsBlendsConfidence(t *testing.T) {
	// Zero weights and bias give sigmoid(0) = 0.5, i.e. an ML score of
	// 50: final = 0.4·60 + 0.6·50 = 54.
	path := writeModel(t, `{"weights":[0,0,0,0,0,0,0,0,0,0,0,0],"bias":0}`)
	scorer, err := NewMLScorer(path)
	if err != nil {
		t.Fatal(err)
	}
	if !scorer.Enabled() {
		t.Fatal("scorer should be enabled")
	}

	predictions := []models.PredictedLevel{{Price: 100, Confidence: 60, Source: "fibonacci"}}
	bars := barsFromCloses([]float64{98, 99, 100, 101, 100})
	scorer.ScorePredictions(predictions, bars, nil, models.Timeframe1Day)

	if math.Abs(predictions[0].Confidence-54) > 1e-9 {
		t.Errorf("confidence = %v, want 54", predictions[0].Confidence)
	}
}

func TestPredictionFeaturesShapeAndRanges(t *testing.T) {
	bars := barsFromCloses([]float64{98, 99, 100, 101, 102})
	existing := []models.PriceLevel{{Price: 100}, {Price: 110}}
	p := models.PredictedLevel{Price: 100, Confidence: 55, Source: "round_number", Type: string(models.ExtremaValley)}

	features := predictionFeatures(p, bars, existing, models.Timeframe1Day)
	if len(features) != mlFeatureCount {
		t.Fatalf("feature count = %d, want %d", len(features), mlFeatureCount)
	}

	// One-hot source: round_number only.
	if features[1] != 0 || features[2] != 1 || features[3] != 0 {
		t.Errorf("one-hot = %v %v %v, want 0 1 0", features[1], features[2], features[3])
	}
	// Rule confidence scaled.
	if features[4] != 0.55 {
		t.Errorf("rule confidence feature = %v, want 0.55", features[4])
	}
	// Support type sign.
	if features[9] != -1 {
		t.Errorf("type sign = %v, want -1", features[9])
	}
	// Level density: one of two existing levels within 5%.
	if features[8] != 0.5 {
		t.Errorf("level density = %v, want 0.5", features[8])
	}
	// Daily timeframe encoding.
	if features[11] != 0.5 {
		t.Errorf("timeframe encoding = %v, want 0.5", features[11])
	}
}
