package news

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/copilot-trader/marketpulse/internal/agent"
	"github.com/copilot-trader/marketpulse/internal/config"
	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

// FetchRequest holds the parameters of a news fetch.
type FetchRequest struct {
	TimeHorizon  models.TimeHorizon
	Limit        int
	MinRelevance float64 // negative means use the configured default
}

// FetchResult is the outcome of one news fetch.
type FetchResult struct {
	Symbol           string            `json:"symbol"`
	Articles         []models.Article  `json:"articles"`
	FetchedAt        string            `json:"fetched_at"`
	TotalCount       int               `json:"total_count"`
	RawArticlesCount int               `json:"raw_articles_count"`
	Sources          []string          `json:"sources"`
	TimeHorizon      string            `json:"time_horizon"`
	DateRange        map[string]string `json:"date_range"`
	APIUsage         []models.APIUsage `json:"api_usage"`
	DataSource       string            `json:"data_source"` // "api", "mock", or "unknown"
	Status           string            `json:"status"`
}

// Agent orchestrates the configured collectors: concurrent fan-out,
// dynamic window expansion when results are sparse, then relevance and
// duplicate filtering.
type Agent struct {
	cfg        *config.Config
	collectors []Collector
	relevance  *RelevanceFilter
	duplicates *DuplicateFilter
	logger     *log.Logger

	mu          sync.Mutex
	initialized bool
}

// NewAgent creates the news fetch agent from configuration. In mock
// mode only the mock collector is wired; otherwise every provider with
// a configured key is used, plus RSS when enabled.
func NewAgent(cfg *config.Config, logger *log.Logger) *Agent {
	return &Agent{
		cfg:        cfg,
		relevance:  NewRelevanceFilter(cfg.News.MinRelevanceScore),
		duplicates: NewDuplicateFilter(),
		logger:     logger,
	}
}

// Name returns the agent identifier.
func (a *Agent) Name() string { return "news_fetch_agent" }

// Init wires the collectors per configuration.
func (a *Agent) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.collectors = a.collectors[:0]
	if a.cfg.News.UseMockData {
		a.collectors = append(a.collectors, NewMockCollector())
	} else {
		if key := a.cfg.News.FinnhubAPIKey; key != "" {
			c, err := NewFinnhubCollector(key, a.logger)
			if err != nil {
				return err
			}
			a.collectors = append(a.collectors, c)
		}
		if key := a.cfg.News.NewsAPIKey; key != "" {
			c, err := NewNewsAPICollector(key, a.logger)
			if err != nil {
				return err
			}
			a.collectors = append(a.collectors, c)
		}
		if key := a.cfg.News.AlphaVantageKey; key != "" {
			c, err := NewAlphaVantageCollector(key, a.logger)
			if err != nil {
				return err
			}
			a.collectors = append(a.collectors, c)
		}
		if a.cfg.News.EnableRSS {
			a.collectors = append(a.collectors, NewRSSCollector(a.logger))
		}
		// No keys and no RSS: fall back to mock so the pipeline
		// still produces output.
		if len(a.collectors) == 0 {
			a.logger.Printf("news: no collectors configured, falling back to mock data")
			a.collectors = append(a.collectors, NewMockCollector())
		}
	}

	a.initialized = true
	return nil
}

// HealthCheck reports agent health and the wired collectors.
func (a *Agent) HealthCheck() agent.Health {
	a.mu.Lock()
	defer a.mu.Unlock()

	components := make(map[string]bool, len(a.collectors)+2)
	for _, c := range a.collectors {
		components["collector_"+c.Name()] = true
	}
	components["relevance_filter"] = a.relevance != nil
	components["duplicate_filter"] = a.duplicates != nil

	return agent.Health{
		Status:     agent.StatusFor(a.initialized),
		Agent:      a.Name(),
		Version:    "1.0.0",
		Components: components,
	}
}

// Collectors returns the wired collectors. Exposed for the status
// command.
func (a *Agent) Collectors() []Collector {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Collector(nil), a.collectors...)
}

// Process fetches, filters, and ranks news for the symbol. Collector
// failures are logged and skipped; zero articles is a success with
// TotalCount 0.
func (a *Agent) Process(ctx context.Context, symbol string, req FetchRequest) (*FetchResult, error) {
	if err := a.ensureInit(); err != nil {
		return nil, err
	}

	symbol = utils.NormalizeSymbol(symbol)
	horizon := req.TimeHorizon
	if horizon == "" {
		horizon = models.Horizon1Day
	}
	limit := req.Limit
	if limit <= 0 {
		limit = a.cfg.News.MaxArticles
	}
	minRelevance := req.MinRelevance
	if minRelevance < 0 {
		minRelevance = a.cfg.News.MinRelevanceScore
	}

	now := time.Now().UTC()
	window := WindowFor(horizon, now)

	// Fan out, then widen the window up to twice if results are
	// sparse. Articles are merged by id/url so re-fetches do not
	// double-count.
	seen := make(map[string]bool)
	var all []models.Article
	sourceSet := make(map[string]bool)

	fetchRound := func(w DateRange) {
		results := a.fanOut(ctx, symbol, FetchParams{From: w.From, To: w.To, Limit: limit})
		for name, articles := range results {
			sourceSet[name] = true
			for _, art := range articles {
				key := art.ID
				if key == "" {
					key = art.URL
				}
				if key != "" && seen[key] {
					continue
				}
				if key != "" {
					seen[key] = true
				}
				all = append(all, art)
			}
		}
	}

	fetchRound(window)
	sparseFloor := limit
	if sparseFloor > 10 {
		sparseFloor = 10
	}
	for i := 0; i < MaxWindowExpansions && len(all) < sparseFloor; i++ {
		window = ExpandWindow(window)
		a.logger.Printf("news: sparse results for %s (%d articles), expanding window to %s",
			symbol, len(all), window.To.Sub(window.From))
		fetchRound(window)
	}

	// Pre-trim to the most recent `limit` articles so the raw count
	// already respects the cap.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	rawCount := len(all)

	all = a.relevance.ScoreArticles(all, symbol)
	all = a.relevance.FilterByThreshold(all, minRelevance)
	all = a.duplicates.RemoveDuplicates(all)
	all = a.relevance.SortByRelevance(all, true)
	if len(all) > limit {
		all = all[:limit]
	}

	sources := make([]string, 0, len(sourceSet))
	for name := range sourceSet {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	usage := make([]models.APIUsage, 0, len(a.collectors))
	for _, c := range a.collectors {
		usage = append(usage, c.APIUsage())
	}

	return &FetchResult{
		Symbol:           symbol,
		Articles:         all,
		FetchedAt:        utils.FormatISO(now),
		TotalCount:       len(all),
		RawArticlesCount: rawCount,
		Sources:          sources,
		TimeHorizon:      string(horizon),
		DateRange: map[string]string{
			"from": utils.FormatISO(window.From),
			"to":   utils.FormatISO(window.To),
		},
		APIUsage:   usage,
		DataSource: a.dataSource(),
		Status:     "success",
	}, nil
}

// fanOut queries every collector concurrently, returning per-source
// results. Failures are logged and dropped.
func (a *Agent) fanOut(ctx context.Context, symbol string, params FetchParams) map[string][]models.Article {
	a.mu.Lock()
	collectors := append([]Collector(nil), a.collectors...)
	a.mu.Unlock()

	var resMu sync.Mutex
	results := make(map[string][]models.Article, len(collectors))

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range collectors {
		c := c
		g.Go(func() error {
			articles, err := c.FetchNews(gctx, symbol, params)
			if err != nil {
				a.logger.Printf("news: collector %s failed for %s: %v", c.Name(), symbol, err)
				return nil // one collector failure never fails the fetch
			}
			resMu.Lock()
			results[c.Name()] = articles
			resMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// dataSource classifies where articles came from.
func (a *Agent) dataSource() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.collectors) == 0 {
		return "unknown"
	}
	for _, c := range a.collectors {
		if !c.APIUsage().IsMock {
			return "api"
		}
	}
	return "mock"
}

func (a *Agent) ensureInit() error {
	a.mu.Lock()
	initialized := a.initialized
	a.mu.Unlock()
	if initialized {
		return nil
	}
	return a.Init()
}
