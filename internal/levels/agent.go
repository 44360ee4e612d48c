package levels

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/copilot-trader/marketpulse/internal/agent"
	"github.com/copilot-trader/marketpulse/internal/config"
	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

const (
	resultCacheTTL = time.Hour
	resultCacheCap = 100
	maxExtrema     = 500
	batchPoolCap   = 10
)

// DetectParams are the knobs for one level-detection run.
type DetectParams struct {
	MinStrength       int              `json:"min_strength"`
	MaxLevels         int              `json:"max_levels"`
	Timeframe         models.Timeframe `json:"timeframe"`
	ProjectFuture     bool             `json:"project_future"`
	ProjectionPeriods int              `json:"projection_periods"`
	LookbackDays      int              `json:"lookback_days,omitempty"` // 0 = per-timeframe default
}

// DetectResult is the outcome of one level-detection run.
type DetectResult struct {
	Symbol            string                  `json:"symbol"`
	Status            string                  `json:"status"`
	Error             string                  `json:"error,omitempty"`
	CurrentPrice      float64                 `json:"current_price"`
	SupportLevels     []models.PriceLevel     `json:"support_levels"`
	ResistanceLevels  []models.PriceLevel     `json:"resistance_levels"`
	PredictedLevels   []models.PredictedLevel `json:"predicted_levels,omitempty"`
	KeyLevels         []models.KeyLevel       `json:"key_levels"`
	NearestSupport    *float64                `json:"nearest_support,omitempty"`
	NearestResistance *float64                `json:"nearest_resistance,omitempty"`
	Timeframe         models.Timeframe        `json:"timeframe"`
	LookbackDays      int                     `json:"lookback_days"`
	LookbackSource    string                  `json:"lookback_source"` // "explicit" or "default"
	DataSource        string                  `json:"data_source"`
	BarsAnalyzed      int                     `json:"bars_analyzed"`
	TotalDetected     int                     `json:"total_levels_detected"`
	ProcessingSeconds float64                 `json:"processing_time_seconds"`
	Cached            bool                    `json:"cached"`
	GeneratedAt       time.Time               `json:"generated_at"`
}

type cacheEntry struct {
	result  DetectResult
	addedAt time.Time
}

// Agent orchestrates the support/resistance pipeline: load bars, detect
// extrema, cluster, validate, fuse with the volume profile, score, and
// optionally project forward.
type Agent struct {
	cfg       *config.Config
	loader    *DataLoader
	extrema   *ExtremaDetector
	clusterer *DBSCANClusterer
	validator *LevelValidator
	volume    *VolumeProfileAnalyzer
	strength  *StrengthCalculator
	projector *LevelProjector
	mlScorer  *MLScorer
	logger    *log.Logger

	mu          sync.Mutex
	resultCache map[string]cacheEntry
	initialized bool
}

// NewAgent creates an uninitialized support/resistance agent.
func NewAgent(cfg *config.Config, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{
		cfg:         cfg,
		logger:      logger,
		resultCache: make(map[string]cacheEntry),
	}
}

// Name implements agent.Agent.
func (a *Agent) Name() string { return "support_resistance_agent" }

// Init wires the pipeline components.
func (a *Agent) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return nil
	}

	a.loader = NewDataLoader(nil, a.cfg.Levels.UseMockData, true, a.cfg.Levels.MockFixturePath)
	a.extrema = NewExtremaDetector()
	a.clusterer = NewDBSCANClusterer()
	a.validator = NewLevelValidator()
	a.volume = NewVolumeProfileAnalyzer()
	a.strength = NewStrengthCalculator()
	a.projector = NewLevelProjector()

	if a.cfg.Levels.UseMLPredictions {
		scorer, err := NewMLScorer(a.cfg.Levels.MLModelPath)
		if err != nil {
			a.logger.Printf("levels: ML scorer unavailable, using rule-only confidence: %v", err)
			scorer = &MLScorer{}
		}
		a.mlScorer = scorer
	} else {
		a.mlScorer = &MLScorer{}
	}

	a.initialized = true
	return nil
}

// HealthCheck implements agent.Agent.
func (a *Agent) HealthCheck() agent.Health {
	a.mu.Lock()
	defer a.mu.Unlock()
	return agent.Health{
		Status: agent.StatusFor(a.initialized),
		Extra: map[string]any{
			"cache_entries": len(a.resultCache),
			"ml_scoring":    a.mlScorer.Enabled(),
			"mock_data":     a.cfg.Levels.UseMockData,
		},
	}
}

// defaultLookbackDays maps timeframes to their default history windows.
func defaultLookbackDays(tf models.Timeframe) int {
	switch tf {
	case models.Timeframe1Min, models.Timeframe5Min, models.Timeframe15Min, models.Timeframe30Min:
		return 30
	case models.Timeframe1Hour, models.Timeframe4Hour:
		return 90
	case models.Timeframe1Day:
		return 730
	case models.Timeframe1Week:
		return 1095
	case models.Timeframe1Mon:
		return 1825
	case models.Timeframe1Year:
		return 3650
	default:
		return 730
	}
}

// minDataPoints is the minimum bar count worth analyzing.
func minDataPoints(tf models.Timeframe, lookbackDays int) int {
	if tf == models.Timeframe1Day {
		min := int(0.6 * float64(lookbackDays))
		if min < 50 {
			min = 50
		}
		return min
	}
	if lookbackDays < 50 {
		return lookbackDays
	}
	return 50
}

func cacheKey(symbol string, p DetectParams) string {
	return fmt.Sprintf("%s|%d|%d|%s|%t|%d",
		symbol, p.MinStrength, p.MaxLevels, p.Timeframe, p.ProjectFuture, p.LookbackDays)
}

// DetectLevels runs the full pipeline for one symbol.
func (a *Agent) DetectLevels(ctx context.Context, symbol string, params DetectParams) (*DetectResult, error) {
	if err := a.ensureInit(); err != nil {
		return nil, err
	}
	start := time.Now()

	symbol = utils.NormalizeSymbol(symbol)
	a.applyDefaults(&params)

	if !models.ValidTimeframe(params.Timeframe) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, params.Timeframe)
	}

	key := cacheKey(symbol, params)
	if a.cfg.Levels.EnableCache {
		if cached, ok := a.cacheGet(key); ok {
			cached.Cached = true
			return &cached, nil
		}
	}

	lookback := params.LookbackDays
	lookbackSource := "explicit"
	if lookback <= 0 {
		lookback = defaultLookbackDays(params.Timeframe)
		lookbackSource = "default"
	}

	result := &DetectResult{
		Symbol:         symbol,
		Timeframe:      params.Timeframe,
		LookbackDays:   lookback,
		LookbackSource: lookbackSource,
		GeneratedAt:    time.Now().UTC(),
	}

	end := time.Now()
	bars, source, err := a.loader.LoadOHLCV(ctx, symbol, end.AddDate(0, 0, -lookback), end, params.Timeframe)
	if err != nil {
		result.Status = "error"
		result.Error = err.Error()
		result.ProcessingSeconds = time.Since(start).Seconds()
		return result, nil
	}
	result.DataSource = source
	result.BarsAnalyzed = len(bars)

	if minBars := minDataPoints(params.Timeframe, lookback); len(bars) < minBars {
		result.Status = "error"
		result.Error = fmt.Sprintf("%v: got %d bars, need at least %d for %s",
			ErrInsufficientData, len(bars), minBars, params.Timeframe)
		result.ProcessingSeconds = time.Since(start).Seconds()
		return result, nil
	}

	currentPrice := bars[len(bars)-1].Close
	result.CurrentPrice = currentPrice
	now := time.Now()

	// Extrema, with noise filtering and a significance cap.
	peaks := a.extrema.FilterNoise(a.extrema.DetectPeaks(bars), 0.005)
	valleys := a.extrema.FilterNoise(a.extrema.DetectValleys(bars), 0.005)
	peaks = capExtrema(peaks, maxExtrema, true)
	valleys = capExtrema(valleys, maxExtrema, false)

	// Cluster each side separately.
	levels := a.clusterer.FilterClusters(a.clusterer.ClusterLevels(valleys), 1)
	levels = append(levels, a.clusterer.FilterClusters(a.clusterer.ClusterLevels(peaks), 1)...)

	a.validator.ValidateLevels(levels, bars)
	a.strength.ScoreLevels(levels, now)

	// Volume-profile fusion, then re-score so standalone volume levels
	// get strengths too.
	nodes := a.volume.DetectVolumeLevels(bars, 2)
	levels = a.volume.MergeWithPriceLevels(levels, nodes)
	a.strength.ScoreLevels(levels, now)

	ScoreBreakouts(levels, currentPrice)

	if params.ProjectFuture {
		periods := params.ProjectionPeriods
		if periods <= 0 {
			periods = 30
		}
		a.projector.ProjectLevelValidity(levels, now, periods)
		predicted := a.projector.PredictFutureLevels(bars, levels, periods)
		a.mlScorer.ScorePredictions(predicted, bars, levels, params.Timeframe)
		result.PredictedLevels = predicted
	}

	result.TotalDetected = len(levels)

	// Rank and truncate per side.
	var support, resistance []models.PriceLevel
	for _, l := range levels {
		if l.Strength < params.MinStrength {
			continue
		}
		if l.Type == string(models.ExtremaValley) {
			support = append(support, l)
		} else {
			resistance = append(resistance, l)
		}
	}
	sortLevels(support)
	sortLevels(resistance)
	if len(support) > params.MaxLevels {
		support = support[:params.MaxLevels]
	}
	if len(resistance) > params.MaxLevels {
		resistance = resistance[:params.MaxLevels]
	}
	result.SupportLevels = support
	result.ResistanceLevels = resistance
	result.NearestSupport = nearestBelow(support, currentPrice)
	result.NearestResistance = nearestAbove(resistance, currentPrice)
	result.KeyLevels = buildKeyLevels(support, resistance, currentPrice)

	result.Status = "success"
	result.ProcessingSeconds = time.Since(start).Seconds()

	if a.cfg.Levels.EnableCache {
		a.cachePut(key, *result)
	}
	return result, nil
}

// BatchResult maps symbols to their detection outcomes.
type BatchResult struct {
	Results map[string]*DetectResult `json:"results"`
	Errors  map[string]string        `json:"errors,omitempty"`
}

// DetectLevelsBatch runs detection for several symbols. Parallel mode
// uses a bounded pool once the batch is big enough to benefit.
func (a *Agent) DetectLevelsBatch(ctx context.Context, symbols []string, params DetectParams, parallel bool) *BatchResult {
	out := &BatchResult{
		Results: make(map[string]*DetectResult, len(symbols)),
		Errors:  make(map[string]string),
	}

	if parallel && len(symbols) > 5 {
		poolSize := batchPoolCap
		if len(symbols) < poolSize {
			poolSize = len(symbols)
		}
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(poolSize)
		for _, symbol := range symbols {
			symbol := symbol
			g.Go(func() error {
				res, err := a.DetectLevels(gctx, symbol, params)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					out.Errors[symbol] = err.Error()
				} else {
					out.Results[symbol] = res
				}
				return nil
			})
		}
		_ = g.Wait() // workers never return errors
		return out
	}

	for _, symbol := range symbols {
		res, err := a.DetectLevels(ctx, symbol, params)
		if err != nil {
			out.Errors[symbol] = err.Error()
			continue
		}
		out.Results[symbol] = res
	}
	return out
}

// NearestLevels returns the single strongest level on each side of the
// current price.
func (a *Agent) NearestLevels(ctx context.Context, symbol string, params DetectParams) (*DetectResult, error) {
	params.MaxLevels = 1
	return a.DetectLevels(ctx, symbol, params)
}

// RevalidateLevels re-runs reactive validation and strength scoring for
// a supplied level list against two years of daily bars. The levels are
// updated in place and returned.
func (a *Agent) RevalidateLevels(ctx context.Context, symbol string, levels []models.PriceLevel) ([]models.PriceLevel, error) {
	if err := a.ensureInit(); err != nil {
		return nil, err
	}
	symbol = utils.NormalizeSymbol(symbol)

	end := time.Now()
	bars, _, err := a.loader.LoadOHLCV(ctx, symbol, end.AddDate(0, 0, -defaultLookbackDays(models.Timeframe1Day)), end, models.Timeframe1Day)
	if err != nil {
		return nil, err
	}

	a.validator.ValidateLevels(levels, bars)
	a.strength.ScoreLevels(levels, time.Now())
	return levels, nil
}

// ClearCache drops all cached detection results.
func (a *Agent) ClearCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resultCache = make(map[string]cacheEntry)
}

// ClearCacheFor drops cached results for a single symbol, leaving other
// symbols' entries in place.
func (a *Agent) ClearCacheFor(symbol string) {
	prefix := utils.NormalizeSymbol(symbol) + "|"
	a.mu.Lock()
	defer a.mu.Unlock()
	for k := range a.resultCache {
		if strings.HasPrefix(k, prefix) {
			delete(a.resultCache, k)
		}
	}
}

// CacheSize returns the number of cached results.
func (a *Agent) CacheSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.resultCache)
}

func (a *Agent) cacheGet(key string) (DetectResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.resultCache[key]
	if !ok {
		return DetectResult{}, false
	}
	if time.Since(entry.addedAt) > resultCacheTTL {
		delete(a.resultCache, key)
		return DetectResult{}, false
	}
	return entry.result, true
}

func (a *Agent) cachePut(key string, result DetectResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.resultCache) >= resultCacheCap {
		// Evict the oldest entry.
		var oldestKey string
		var oldest time.Time
		for k, e := range a.resultCache {
			if oldestKey == "" || e.addedAt.Before(oldest) {
				oldestKey, oldest = k, e.addedAt
			}
		}
		delete(a.resultCache, oldestKey)
	}
	a.resultCache[key] = cacheEntry{result: result, addedAt: time.Now()}
}

func (a *Agent) applyDefaults(params *DetectParams) {
	if params.MinStrength <= 0 {
		params.MinStrength = a.cfg.Levels.MinStrength
	}
	if params.MaxLevels <= 0 {
		params.MaxLevels = a.cfg.Levels.MaxLevels
	}
	if params.Timeframe == "" {
		params.Timeframe = models.Timeframe1Day
	}
}

func (a *Agent) ensureInit() error {
	a.mu.Lock()
	ok := a.initialized
	a.mu.Unlock()
	if ok {
		return nil
	}
	return a.Init()
}

// capExtrema keeps the n most significant extrema: the highest peaks or
// the lowest valleys.
func capExtrema(points []models.ExtremaPoint, n int, peaks bool) []models.ExtremaPoint {
	if len(points) <= n {
		return points
	}
	sorted := append([]models.ExtremaPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool {
		if peaks {
			return sorted[i].Price > sorted[j].Price
		}
		return sorted[i].Price < sorted[j].Price
	})
	return sorted[:n]
}

// sortLevels orders by strength descending with price ascending as the
// tie-break, keeping output deterministic.
func sortLevels(levels []models.PriceLevel) {
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].Strength != levels[j].Strength {
			return levels[i].Strength > levels[j].Strength
		}
		return levels[i].Price < levels[j].Price
	})
}

func nearestBelow(levels []models.PriceLevel, price float64) *float64 {
	var best *float64
	for _, l := range levels {
		if l.Price < price && (best == nil || l.Price > *best) {
			p := l.Price
			best = &p
		}
	}
	return best
}

func nearestAbove(levels []models.PriceLevel, price float64) *float64 {
	var best *float64
	for _, l := range levels {
		if l.Price > price && (best == nil || l.Price < *best) {
			p := l.Price
			best = &p
		}
	}
	return best
}

// buildKeyLevels flattens both sides into the summary list, ordered by
// distance from the current price.
func buildKeyLevels(support, resistance []models.PriceLevel, currentPrice float64) []models.KeyLevel {
	all := make([]models.PriceLevel, 0, len(support)+len(resistance))
	all = append(all, support...)
	all = append(all, resistance...)

	keys := make([]models.KeyLevel, 0, len(all))
	for _, l := range all {
		direction := "RESISTANCE"
		if l.Type == string(models.ExtremaValley) {
			direction = "SUPPORT"
		}

		position := "AT"
		switch {
		case currentPrice > l.Price*1.001:
			position = "ABOVE"
		case currentPrice < l.Price*0.999:
			position = "BELOW"
		}

		keys = append(keys, models.KeyLevel{
			Price:               l.Price,
			Strength:            l.Strength,
			StrengthScore:       fmt.Sprintf("%d/100", l.Strength),
			BreakoutProb:        l.BreakoutProb,
			BreakoutProbPercent: fmt.Sprintf("%.1f%%", l.BreakoutProb),
			Direction:           direction,
			Type:                l.Type,
			Position:            position,
			Formatted: fmt.Sprintf("$%.2f | Strength: %d/100 | %s | Breakout: %.1f%%",
				l.Price, l.Strength, direction, l.BreakoutProb),
			Touches:   l.Touches,
			Validated: l.Validated,
		})
	}

	sort.SliceStable(keys, func(i, j int) bool {
		di := absF(keys[i].Price - currentPrice)
		dj := absF(keys[j].Price - currentPrice)
		return di < dj
	})
	return keys
}
