// Package config handles configuration loading for MarketPulse.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	News      NewsConfig      `mapstructure:"news"      yaml:"news"`
	LLM       LLMConfig       `mapstructure:"llm"       yaml:"llm"`
	Cache     CacheConfig     `mapstructure:"cache"     yaml:"cache"`
	Levels    LevelsConfig    `mapstructure:"levels"    yaml:"levels"`
	Aggregate AggregateConfig `mapstructure:"aggregate" yaml:"aggregate"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// NewsConfig holds news collector configuration.
type NewsConfig struct {
	UseMockData       bool    `mapstructure:"use_mock_data"         yaml:"use_mock_data"`
	FinnhubAPIKey     string  `mapstructure:"finnhub_api_key"       yaml:"finnhub_api_key"`
	NewsAPIKey        string  `mapstructure:"newsapi_key"           yaml:"newsapi_key"`
	AlphaVantageKey   string  `mapstructure:"alpha_vantage_api_key" yaml:"alpha_vantage_api_key"`
	MinRelevanceScore float64 `mapstructure:"min_relevance_score"   yaml:"min_relevance_score"`
	MaxArticles       int     `mapstructure:"max_articles"          yaml:"max_articles"`
	EnableRSS         bool    `mapstructure:"enable_rss"            yaml:"enable_rss"`
}

// LLMConfig holds sentiment LLM configuration.
type LLMConfig struct {
	OpenAIKey      string  `mapstructure:"openai_api_key"  yaml:"openai_api_key"`
	Model          string  `mapstructure:"model"           yaml:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model" yaml:"embedding_model"`
	Temperature    float64 `mapstructure:"temperature"     yaml:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"      yaml:"max_tokens"`
}

// CacheConfig holds semantic cache configuration.
type CacheConfig struct {
	EnableCache         bool    `mapstructure:"enable_cache"         yaml:"enable_cache"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	CacheTTLSec         int     `mapstructure:"cache_ttl_sec"        yaml:"cache_ttl_sec"`
}

// LevelsConfig holds support/resistance engine configuration.
type LevelsConfig struct {
	UseMockData      bool   `mapstructure:"use_mock_data"      yaml:"use_mock_data"`
	EnableCache      bool   `mapstructure:"enable_cache"       yaml:"enable_cache"`
	MinStrength      int    `mapstructure:"min_strength"       yaml:"min_strength"`
	MaxLevels        int    `mapstructure:"max_levels"         yaml:"max_levels"`
	UseMLPredictions bool   `mapstructure:"use_ml_predictions" yaml:"use_ml_predictions"`
	MLModelPath      string `mapstructure:"ml_model_path"      yaml:"ml_model_path"`
	MockFixturePath  string `mapstructure:"mock_fixture_path"  yaml:"mock_fixture_path"`
}

// AggregateConfig holds sentiment aggregation configuration.
type AggregateConfig struct {
	UseTimeWeighting bool `mapstructure:"use_time_weighting" yaml:"use_time_weighting"`
	CalculateImpact  bool `mapstructure:"calculate_impact"   yaml:"calculate_impact"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.marketpulse/config.yaml (home directory)
//  3. /etc/marketpulse/config.yaml (system)
//
// Environment variables override config file values.
// Format: MARKETPULSE_<SECTION>_<KEY>, e.g., MARKETPULSE_NEWS_FINNHUB_API_KEY
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".marketpulse"))
	v.AddConfigPath("/etc/marketpulse")

	v.SetEnvPrefix("MARKETPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("MARKETPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// News defaults
	v.SetDefault("news.use_mock_data", true)
	v.SetDefault("news.min_relevance_score", 0.5)
	v.SetDefault("news.max_articles", 50)
	v.SetDefault("news.enable_rss", true)

	// LLM defaults
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 1024)

	// Semantic cache defaults
	v.SetDefault("cache.enable_cache", true)
	v.SetDefault("cache.similarity_threshold", 0.85)
	v.SetDefault("cache.cache_ttl_sec", 0) // 0 = no expiry

	// Levels defaults
	v.SetDefault("levels.use_mock_data", true)
	v.SetDefault("levels.enable_cache", true)
	v.SetDefault("levels.min_strength", 50)
	v.SetDefault("levels.max_levels", 5)
	v.SetDefault("levels.use_ml_predictions", false)

	// Aggregation defaults
	v.SetDefault("aggregate.use_time_weighting", true)
	v.SetDefault("aggregate.calculate_impact", true)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("MARKETPULSE_NEWS_FINNHUB_API_KEY"); key != "" {
		cfg.News.FinnhubAPIKey = key
	}
	if key := os.Getenv("MARKETPULSE_NEWS_NEWSAPI_KEY"); key != "" {
		cfg.News.NewsAPIKey = key
	}
	if key := os.Getenv("MARKETPULSE_NEWS_ALPHA_VANTAGE_API_KEY"); key != "" {
		cfg.News.AlphaVantageKey = key
	}
	if key := os.Getenv("MARKETPULSE_LLM_OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
