// Package api — news-and-sentiment pipeline endpoints.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/copilot-trader/marketpulse/internal/news"
	"github.com/copilot-trader/marketpulse/internal/sentiment"
	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

// VisualizeRequest is the body for POST /api/v1/news-pipeline/visualize.
type VisualizeRequest struct {
	Symbol       string   `json:"symbol"`
	MinRelevance *float64 `json:"min_relevance,omitempty"` // default 0.3
	MaxArticles  int      `json:"max_articles,omitempty"`  // default 10
	TimeHorizon  string   `json:"time_horizon,omitempty"`  // default "1d"
}

// PipelineStep records the execution of one pipeline stage.
type PipelineStep struct {
	Agent      string                 `json:"agent"`
	Status     string                 `json:"status"`
	StartTime  string                 `json:"start_time"`
	DurationMS float64                `json:"duration_ms"`
	Details    map[string]interface{} `json:"details"`
	Error      string                 `json:"error,omitempty"`
	Traceback  string                 `json:"traceback,omitempty"`

	startedAt time.Time
}

// VisualizeResponse traces a full pipeline run step by step.
type VisualizeResponse struct {
	Input           map[string]interface{} `json:"input"`
	Steps           []PipelineStep         `json:"steps"`
	FinalResult     map[string]interface{} `json:"final_result,omitempty"`
	TotalDurationMS float64                `json:"total_duration_ms"`
	Status          string                 `json:"status"`
	Error           string                 `json:"error,omitempty"`
	Traceback       string                 `json:"traceback,omitempty"`
}

// handlePipelineVisualize runs fetch → sentiment → aggregate and
// reports per-step timing and details. Step failures stop the pipeline
// but still return 200 with status "error".
func (s *Server) handlePipelineVisualize(w http.ResponseWriter, r *http.Request) {
	var req VisualizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	minRelevance := 0.3
	if req.MinRelevance != nil {
		minRelevance = *req.MinRelevance
	}
	maxArticles := req.MaxArticles
	if maxArticles <= 0 {
		maxArticles = 10
	}
	horizon := models.TimeHorizon(req.TimeHorizon)
	if req.TimeHorizon == "" {
		horizon = models.Horizon1Day
	}
	if !models.ValidHorizon(horizon) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid time_horizon: %q", req.TimeHorizon))
		return
	}

	symbol := utils.NormalizeSymbol(req.Symbol)
	started := time.Now()

	resp := VisualizeResponse{
		Input: map[string]interface{}{
			"symbol":        symbol,
			"min_relevance": minRelevance,
			"max_articles":  maxArticles,
			"time_horizon":  string(horizon),
		},
		Status: "success",
	}

	failPipeline := func(step PipelineStep, err error) {
		step.Status = "error"
		step.DurationMS = float64(time.Since(step.startedAt).Microseconds()) / 1000
		step.Error = err.Error()
		step.Traceback = fmt.Sprintf("%+v\n%s", err, debug.Stack())
		resp.Steps = append(resp.Steps, step)
		resp.Status = "error"
		resp.Error = err.Error()
		resp.TotalDurationMS = float64(time.Since(started).Microseconds()) / 1000
		writeJSON(w, http.StatusOK, resp)
	}

	// ── Step 1: fetch news ──
	step1 := newStep(s.newsAgent.Name())
	fetchRes, err := s.newsAgent.Process(r.Context(), symbol, news.FetchRequest{
		TimeHorizon:  horizon,
		Limit:        maxArticles,
		MinRelevance: minRelevance,
	})
	if err != nil {
		failPipeline(step1, err)
		return
	}
	step1.finish(fetchRes.Status, map[string]interface{}{
		"raw_articles_count":   fetchRes.RawArticlesCount,
		"final_articles_count": len(fetchRes.Articles),
		"sources_used":         fetchRes.Sources,
		"data_source":          fetchRes.DataSource,
		"api_usage":            fetchRes.APIUsage,
		"final_articles":       fetchRes.Articles,
		"total_available":      fetchRes.TotalCount,
		"fetched_at":           fetchRes.FetchedAt,
	})
	resp.Steps = append(resp.Steps, step1)
	s.broadcastStep(symbol, step1)

	// ── Step 2: LLM sentiment ──
	step2 := newStep(s.sentimentAgent.Name())
	analyzeRes, err := s.sentimentAgent.Process(r.Context(), symbol, sentiment.AnalyzeRequest{
		Articles:    fetchRes.Articles,
		UseCache:    true,
		TimeHorizon: horizon,
	})
	if err != nil {
		failPipeline(step2, err)
		return
	}
	step2.finish(analyzeRes.Status, map[string]interface{}{
		"cache_stats":            analyzeRes.CacheStats,
		"sentiment_scores":       analyzeRes.SentimentScores,
		"total_analyzed":         analyzeRes.TotalAnalyzed,
		"filtered_by_confidence": analyzeRes.FilteredByConfidence,
		"confidence_threshold":   analyzeRes.ConfidenceThreshold,
	})
	resp.Steps = append(resp.Steps, step2)
	s.broadcastStep(symbol, step2)
	if analyzeRes.Status == "error" {
		resp.Status = "error"
		resp.Error = "sentiment analysis failed"
		resp.TotalDurationMS = float64(time.Since(started).Microseconds()) / 1000
		writeJSON(w, http.StatusOK, resp)
		return
	}

	// ── Step 3: aggregate ──
	step3 := newStep(s.aggregator.Name())
	aggRes, err := s.aggregator.Process(symbol, sentiment.AggregateRequest{
		SentimentScores: analyzeRes.SentimentScores,
		TimeWeighted:    true,
		TimeHorizon:     horizon,
	})
	if err != nil {
		failPipeline(step3, err)
		return
	}
	step3.finish(aggRes.Status, map[string]interface{}{
		"aggregated_sentiment": aggRes.Score,
		"sentiment_label":      aggRes.Label,
		"confidence":           aggRes.Confidence,
		"impact":               aggRes.Impact,
		"news_count":           aggRes.NewsCount,
		"time_weighted":        aggRes.TimeWeighted,
		"warning":              aggRes.Warning,
	})
	resp.Steps = append(resp.Steps, step3)
	s.broadcastStep(symbol, step3)

	resp.FinalResult = map[string]interface{}{
		"symbol":               symbol,
		"aggregated_sentiment": aggRes.AggregatedSentiment,
		"articles_fetched":     len(fetchRes.Articles),
		"articles_analyzed":    analyzeRes.TotalAnalyzed,
		"data_source":          fetchRes.DataSource,
	}
	resp.TotalDurationMS = float64(time.Since(started).Microseconds()) / 1000

	writeJSON(w, http.StatusOK, resp)
}

// handlePipelineHealth reports initialization state of the three agents.
func (s *Server) handlePipelineHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"agents_initialized": map[string]bool{
			s.newsAgent.Name():      s.newsAgent.HealthCheck().Status == "healthy",
			s.sentimentAgent.Name(): s.sentimentAgent.HealthCheck().Status == "healthy",
			s.aggregator.Name():     s.aggregator.HealthCheck().Status == "healthy",
		},
	})
}

func newStep(agent string) PipelineStep {
	now := time.Now()
	return PipelineStep{
		Agent:     agent,
		StartTime: utils.FormatISO(now),
		startedAt: now,
	}
}

// finish stamps the step with its outcome and elapsed time.
func (p *PipelineStep) finish(status string, details map[string]interface{}) {
	p.DurationMS = float64(time.Since(p.startedAt).Microseconds()) / 1000
	p.Status = status
	p.Details = details
}

func (s *Server) broadcastStep(symbol string, step PipelineStep) {
	s.wsHub.Broadcast(WSMessage{
		Type: "pipeline_step",
		Data: map[string]interface{}{
			"symbol":      symbol,
			"agent":       step.Agent,
			"status":      step.Status,
			"duration_ms": step.DurationMS,
		},
	})
}
