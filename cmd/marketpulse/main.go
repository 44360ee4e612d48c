// MarketPulse — news sentiment and support/resistance analysis for equities.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/copilot-trader/marketpulse/api"
	"github.com/copilot-trader/marketpulse/internal/config"
	"github.com/copilot-trader/marketpulse/internal/levels"
	"github.com/copilot-trader/marketpulse/internal/news"
	"github.com/copilot-trader/marketpulse/internal/sentiment"
	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "marketpulse",
	Short: "MarketPulse — news sentiment and support/resistance analysis",
	Long: `MarketPulse
A Go pipeline that fetches stock news from multiple providers, scores it
with LLM-backed sentiment analysis, aggregates a time-weighted signal,
and detects support/resistance price levels from OHLCV history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MarketPulse %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- News Command (full sentiment pipeline) ---

var newsCmd = &cobra.Command{
	Use:   "news [symbol]",
	Short: "Run the news sentiment pipeline for a symbol",
	Long: `Fetch recent news for a symbol, score each article with the
sentiment analyzer, and print the aggregated time-weighted signal.

Examples:
  marketpulse news AAPL
  marketpulse news TSLA --horizon 1w --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := utils.NormalizeSymbol(args[0])
		horizonFlag, _ := cmd.Flags().GetString("horizon")
		limit, _ := cmd.Flags().GetInt("limit")
		minRelevance, _ := cmd.Flags().GetFloat64("min-relevance")

		horizon := models.TimeHorizon(horizonFlag)
		if !models.ValidHorizon(horizon) {
			return fmt.Errorf("invalid horizon %q (use 1s, 1m, 1h, 1d, 1w, 1mo, or 1y)", horizonFlag)
		}

		logger := log.New(os.Stderr, "", log.LstdFlags)
		ctx := cmd.Context()

		newsAgent := news.NewAgent(cfg, logger)
		if err := newsAgent.Init(); err != nil {
			return err
		}
		sentimentAgent := sentiment.NewAgent(cfg, logger)
		if err := sentimentAgent.Init(); err != nil {
			return err
		}
		aggregator := sentiment.NewAggregator(cfg, logger)
		if err := aggregator.Init(); err != nil {
			return err
		}

		fmt.Printf("📰 Fetching news for %s (horizon: %s)\n", symbol, horizon)
		fetchRes, err := newsAgent.Process(ctx, symbol, news.FetchRequest{
			TimeHorizon:  horizon,
			Limit:        limit,
			MinRelevance: minRelevance,
		})
		if err != nil {
			return err
		}
		fmt.Printf("   %d articles kept of %d raw (source: %s)\n",
			len(fetchRes.Articles), fetchRes.RawArticlesCount, fetchRes.DataSource)

		fmt.Println("🧠 Scoring sentiment...")
		analyzeRes, err := sentimentAgent.Process(ctx, symbol, sentiment.AnalyzeRequest{
			Articles:    fetchRes.Articles,
			UseCache:    true,
			TimeHorizon: horizon,
		})
		if err != nil {
			return err
		}
		fmt.Printf("   %d scored, %d filtered by confidence\n",
			analyzeRes.TotalAnalyzed, analyzeRes.FilteredByConfidence)

		aggRes, err := aggregator.Process(symbol, sentiment.AggregateRequest{
			SentimentScores: analyzeRes.SentimentScores,
			TimeWeighted:    true,
			TimeHorizon:     horizon,
		})
		if err != nil {
			return err
		}

		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  %s Sentiment\n", symbol)
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Score:      %+.3f (%s)\n", aggRes.Score, aggRes.Label)
		fmt.Printf("  Confidence: %.2f\n", aggRes.Confidence)
		fmt.Printf("  Impact:     %s\n", aggRes.Impact)
		fmt.Printf("  Articles:   %d\n", aggRes.NewsCount)
		if aggRes.Warning != "" {
			fmt.Printf("  ⚠️  %s\n", aggRes.Warning)
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func init() {
	newsCmd.Flags().String("horizon", "1d", "time horizon (1s, 1m, 1h, 1d, 1w, 1mo, 1y)")
	newsCmd.Flags().Int("limit", 10, "maximum articles to analyze")
	newsCmd.Flags().Float64("min-relevance", 0.3, "minimum relevance score")
}

// --- Levels Command ---

var levelsCmd = &cobra.Command{
	Use:   "levels [symbol]",
	Short: "Detect support/resistance levels for a symbol",
	Long: `Load OHLCV history and run the full detection pipeline: extrema,
clustering, validation, volume-profile fusion, and strength scoring.

Examples:
  marketpulse levels AAPL
  marketpulse levels MSFT --timeframe 1w --min-strength 60
  marketpulse levels NVDA --project`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := utils.NormalizeSymbol(args[0])
		timeframe, _ := cmd.Flags().GetString("timeframe")
		minStrength, _ := cmd.Flags().GetInt("min-strength")
		maxLevels, _ := cmd.Flags().GetInt("max-levels")
		project, _ := cmd.Flags().GetBool("project")
		lookback, _ := cmd.Flags().GetInt("lookback-days")

		logger := log.New(os.Stderr, "", log.LstdFlags)
		agent := levels.NewAgent(cfg, logger)
		if err := agent.Init(); err != nil {
			return err
		}

		fmt.Printf("📐 Detecting levels for %s (%s)\n", symbol, timeframe)
		res, err := agent.DetectLevels(cmd.Context(), symbol, levels.DetectParams{
			MinStrength:   minStrength,
			MaxLevels:     maxLevels,
			Timeframe:     models.Timeframe(timeframe),
			ProjectFuture: project,
			LookbackDays:  lookback,
		})
		if err != nil {
			return err
		}
		if res.Status != "success" {
			return fmt.Errorf("detection failed: %s", res.Error)
		}

		fmt.Printf("   %d bars analyzed, current price $%.2f (source: %s)\n",
			res.BarsAnalyzed, res.CurrentPrice, res.DataSource)
		fmt.Println()

		fmt.Println("  Key Levels:")
		for _, k := range res.KeyLevels {
			fmt.Printf("    %-5s %s\n", k.Position, k.Formatted)
		}

		if res.NearestSupport != nil {
			fmt.Printf("\n  Nearest support:    $%.2f\n", *res.NearestSupport)
		}
		if res.NearestResistance != nil {
			fmt.Printf("  Nearest resistance: $%.2f\n", *res.NearestResistance)
		}

		if project && len(res.PredictedLevels) > 0 {
			fmt.Println("\n  Predicted Levels:")
			for _, p := range res.PredictedLevels {
				fmt.Printf("    $%.2f  %-15s confidence %.0f%%\n", p.Price, p.Source, p.Confidence)
			}
		}
		return nil
	},
}

func init() {
	levelsCmd.Flags().String("timeframe", "1d", "bar timeframe (5m, 15m, 1h, 4h, 1d, 1w, 1mo, 1y)")
	levelsCmd.Flags().Int("min-strength", 0, "minimum level strength (0 = config default)")
	levelsCmd.Flags().Int("max-levels", 0, "maximum levels per side (0 = config default)")
	levelsCmd.Flags().Bool("project", false, "project level validity and predict future levels")
	levelsCmd.Flags().Int("lookback-days", 0, "history window in days (0 = per-timeframe default)")
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(os.Stderr, "", log.LstdFlags)

		srv, err := api.NewServer(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to build server: %w", err)
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 Starting MarketPulse API server on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  MarketPulse — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatus())
		fmt.Printf("  Time (UTC):    %s\n", utils.FormatISO(time.Now()))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    LLM Model:     %s\n", cfg.LLM.Model)
		fmt.Printf("    News Mock:     %t\n", cfg.News.UseMockData)
		fmt.Printf("    Levels Mock:   %t\n", cfg.Levels.UseMockData)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
