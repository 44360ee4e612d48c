// Package levels implements the support/resistance engine: OHLCV
// loading, extrema detection, density clustering, reactive validation,
// volume-profile fusion, strength scoring, and level projection.
package levels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/copilot-trader/marketpulse/internal/infra"
	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

// Loader errors.
var (
	ErrUnsupportedTimeframe = errors.New("levels: unsupported timeframe")
	ErrInsufficientData     = errors.New("levels: insufficient data")
	ErrNoData               = errors.New("levels: no data available")
)

// BarSource loads historical bars. The HTTP provider and the mock
// generator both implement it; an upstream data agent can be injected
// through the same interface.
type BarSource interface {
	Name() string
	LoadBars(ctx context.Context, symbol string, start, end time.Time, tf models.Timeframe) ([]models.OHLCV, error)
}

// DataLoader loads OHLCV history for level detection, trying sources
// in priority order: injected agent, Yahoo chart API, mock fixture.
type DataLoader struct {
	agent       BarSource // optional injected source, tried first
	yahoo       *YahooSource
	mock        *MockSource
	allowMock   bool
	useMockOnly bool
}

// NewDataLoader creates a loader. When useMockOnly is set the network
// provider is skipped entirely.
func NewDataLoader(agent BarSource, useMockOnly, allowMockFallback bool, fixturePath string) *DataLoader {
	return &DataLoader{
		agent:       agent,
		yahoo:       NewYahooSource(),
		mock:        NewMockSource(fixturePath),
		allowMock:   allowMockFallback,
		useMockOnly: useMockOnly,
	}
}

// LoadOHLCV loads bars for a symbol and window. It normalizes the
// window (UTC, end ≤ now, start ≤ end), applies provider history caps,
// validates the result, and reports which source served the data.
func (l *DataLoader) LoadOHLCV(ctx context.Context, symbol string, start, end time.Time, tf models.Timeframe) ([]models.OHLCV, string, error) {
	if !models.ValidTimeframe(tf) {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedTimeframe, tf)
	}
	symbol = utils.NormalizeSymbol(symbol)

	now := time.Now().UTC()
	start, end = clampWindow(start.UTC(), end.UTC(), now, tf)

	if l.useMockOnly {
		bars, err := l.mock.LoadBars(ctx, symbol, start, end, tf)
		if err != nil {
			return nil, "", err
		}
		return bars, "mock_data", validateBars(bars)
	}

	if l.agent != nil {
		if bars, err := l.agent.LoadBars(ctx, symbol, start, end, tf); err == nil && len(bars) > 0 {
			if err := validateBars(bars); err == nil {
				return bars, "data_agent", nil
			}
		}
	}

	bars, err := l.yahoo.LoadBars(ctx, symbol, start, end, tf)
	if err == nil && len(bars) > 0 {
		if verr := validateBars(bars); verr == nil {
			return bars, "yfinance", nil
		}
	}

	if l.allowMock {
		bars, merr := l.mock.LoadBars(ctx, symbol, start, end, tf)
		if merr != nil {
			return nil, "", fmt.Errorf("%w (mock fallback also failed: %v)", ErrNoData, merr)
		}
		return bars, "mock_data", validateBars(bars)
	}

	if err != nil {
		return nil, "", err
	}
	return nil, "", fmt.Errorf("%w: %s", ErrNoData, symbol)
}

// clampWindow enforces end ≤ now, start ≤ end, and the provider
// history caps for intraday bars (~5 days for minute data, ~60 days
// for hourly).
func clampWindow(start, end, now time.Time, tf models.Timeframe) (time.Time, time.Time) {
	if end.IsZero() || end.After(now) {
		end = now
	}
	if start.IsZero() || start.After(end) {
		start = end.AddDate(0, 0, -30)
	}

	var maxHistory time.Duration
	switch tf {
	case models.Timeframe1Min, models.Timeframe5Min, models.Timeframe15Min, models.Timeframe30Min:
		maxHistory = 5 * 24 * time.Hour
	case models.Timeframe1Hour, models.Timeframe4Hour:
		maxHistory = 60 * 24 * time.Hour
	}
	if maxHistory > 0 && end.Sub(start) > maxHistory {
		start = end.Add(-maxHistory)
	}
	return start, end
}

// validateBars rejects series with non-positive prices or inverted
// high/low ranges.
func validateBars(bars []models.OHLCV) error {
	if len(bars) == 0 {
		return ErrNoData
	}
	for i, b := range bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("levels: non-positive price at bar %d", i)
		}
		if b.High < b.Low {
			return fmt.Errorf("levels: high < low at bar %d", i)
		}
		if b.Volume < 0 {
			return fmt.Errorf("levels: negative volume at bar %d", i)
		}
	}
	return nil
}

// ── Yahoo chart source ──

// YahooSource loads bars from the Yahoo Finance v8 chart API.
type YahooSource struct {
	cache   *infra.Cache
	limiter *infra.RateLimiter
}

// NewYahooSource creates a Yahoo chart source.
func NewYahooSource() *YahooSource {
	return &YahooSource{
		cache:   infra.NewCache(15 * time.Minute),
		limiter: infra.NewRateLimiter(5, time.Second),
	}
}

// Name returns the source label.
func (y *YahooSource) Name() string { return "yfinance" }

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// LoadBars fetches OHLCV candles from the chart API.
func (y *YahooSource) LoadBars(ctx context.Context, symbol string, start, end time.Time, tf models.Timeframe) ([]models.OHLCV, error) {
	interval := yfInterval(tf)

	cacheKey := fmt.Sprintf("bars:%s:%d:%d:%s", symbol, start.Unix(), end.Unix(), interval)
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.([]models.OHLCV), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf(
		"https://query1.finance.yahoo.com/v8/finance/chart/%s?period1=%d&period2=%d&interval=%s",
		symbol, start.Unix(), end.Unix(), interval,
	)

	body, _, err := infra.DoGet(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yahoo chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	bars := parseYFCandles(resp.Chart.Result[0])
	y.cache.Set(cacheKey, bars)
	return bars, nil
}

// parseYFCandles converts the chart payload to bars, skipping entries
// with missing quote values.
func parseYFCandles(result yfChartResult) []models.OHLCV {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]models.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		bar := models.OHLCV{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		if i < len(adj) && adj[i] != nil {
			bar.AdjClose = *adj[i]
		}
		bars = append(bars, bar)
	}
	return bars
}

// yfInterval maps a timeframe to a chart API interval. 4h has no
// native interval and maps down to 1h; 1y maps to monthly bars.
func yfInterval(tf models.Timeframe) string {
	switch tf {
	case models.Timeframe4Hour:
		return "1h"
	case models.Timeframe1Year:
		return "1mo"
	default:
		return string(tf)
	}
}

// ── Mock source ──

// MockSource serves bars from a JSON fixture, or generates a
// deterministic synthetic random walk when no fixture is configured.
type MockSource struct {
	fixturePath string
}

// NewMockSource creates a mock source. fixturePath may be empty.
func NewMockSource(fixturePath string) *MockSource {
	return &MockSource{fixturePath: fixturePath}
}

// Name returns the source label.
func (m *MockSource) Name() string { return "mock_data" }

// fixtureBar is the JSON shape of a fixture candle.
type fixtureBar struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// LoadBars serves fixture bars when configured, else synthesizes a
// seeded random walk with embedded support and resistance bands.
func (m *MockSource) LoadBars(_ context.Context, symbol string, start, end time.Time, tf models.Timeframe) ([]models.OHLCV, error) {
	if m.fixturePath != "" {
		bars, err := m.loadFixture(symbol)
		if err != nil {
			return nil, err
		}
		return filterWindow(bars, start, end), nil
	}
	return generateBars(symbol, start, end, tf), nil
}

func (m *MockSource) loadFixture(symbol string) ([]models.OHLCV, error) {
	data, err := os.ReadFile(m.fixturePath)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var bySymbol map[string][]fixtureBar
	if err := json.Unmarshal(data, &bySymbol); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	raw, ok := bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no fixture for %s", ErrNoData, symbol)
	}

	bars := make([]models.OHLCV, 0, len(raw))
	for _, fb := range raw {
		ts, err := time.Parse(time.RFC3339, fb.Timestamp)
		if err != nil {
			continue
		}
		bars = append(bars, models.OHLCV{
			Timestamp: ts.UTC(),
			Open:      fb.Open,
			High:      fb.High,
			Low:       fb.Low,
			Close:     fb.Close,
			Volume:    fb.Volume,
		})
	}
	return bars, nil
}

func filterWindow(bars []models.OHLCV, start, end time.Time) []models.OHLCV {
	out := bars[:0]
	for _, b := range bars {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// barStep returns the bar interval for a timeframe.
func barStep(tf models.Timeframe) time.Duration {
	switch tf {
	case models.Timeframe1Min:
		return time.Minute
	case models.Timeframe5Min:
		return 5 * time.Minute
	case models.Timeframe15Min:
		return 15 * time.Minute
	case models.Timeframe30Min:
		return 30 * time.Minute
	case models.Timeframe1Hour:
		return time.Hour
	case models.Timeframe4Hour:
		return 4 * time.Hour
	case models.Timeframe1Week:
		return 7 * 24 * time.Hour
	case models.Timeframe1Mon:
		return 30 * 24 * time.Hour
	case models.Timeframe1Year:
		return 30 * 24 * time.Hour // monthly bars, like the chart API
	default:
		return 24 * time.Hour
	}
}

// generateBars synthesizes a bounded random walk seeded by the symbol,
// so repeated runs for the same symbol return the same series. Price
// oscillates between two bands, giving the detector real levels to
// find.
func generateBars(symbol string, start, end time.Time, tf models.Timeframe) []models.OHLCV {
	step := barStep(tf)
	n := int(end.Sub(start) / step)
	if n <= 0 {
		return nil
	}
	if n > 5000 {
		n = 5000
	}

	var seed int64
	for _, r := range symbol {
		seed = seed*31 + int64(r)
	}
	rng := rand.New(rand.NewSource(seed))

	base := 50 + float64(seed%400) // per-symbol base price
	support := base * 0.94
	resistance := base * 1.06

	bars := make([]models.OHLCV, 0, n)
	price := base
	for i := 0; i < n; i++ {
		drift := (rng.Float64() - 0.5) * base * 0.02
		// Mean-revert when pressing a band, creating touches.
		if price < support {
			drift += base * 0.01
		}
		if price > resistance {
			drift -= base * 0.01
		}
		open := price
		close := price + drift
		high := math.Max(open, close) + rng.Float64()*base*0.005
		low := math.Min(open, close) - rng.Float64()*base*0.005
		if low <= 0 {
			low = 0.01
		}
		bars = append(bars, models.OHLCV{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    int64(1_000_000 + rng.Intn(4_000_000)),
		})
		price = close
	}
	return bars
}
