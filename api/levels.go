// Package api — support/resistance level endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/copilot-trader/marketpulse/internal/levels"
	"github.com/copilot-trader/marketpulse/pkg/models"
	"github.com/copilot-trader/marketpulse/pkg/utils"
)

// LevelsResponse wraps a detection result with request metadata.
type LevelsResponse struct {
	*levels.DetectResult
	APIMetadata APIMetadata `json:"api_metadata"`
}

// DetectBody is the body for POST /api/v1/levels/detect.
type DetectBody struct {
	Symbol string `json:"symbol"`
	levels.DetectParams
}

// BatchBody is the body for POST /api/v1/levels/batch.
type BatchBody struct {
	Symbols  []string `json:"symbols"`
	Parallel bool     `json:"parallel,omitempty"`
	levels.DetectParams
}

// parseDetectParams reads detection knobs from query parameters.
func parseDetectParams(r *http.Request) (levels.DetectParams, error) {
	q := r.URL.Query()
	params := levels.DetectParams{Timeframe: models.Timeframe1Day}

	if v := q.Get("min_strength"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("invalid min_strength: %q", v)
		}
		params.MinStrength = n
	}
	if v := q.Get("max_levels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("invalid max_levels: %q", v)
		}
		params.MaxLevels = n
	}
	if v := q.Get("timeframe"); v != "" {
		params.Timeframe = models.Timeframe(v)
	}
	if v := q.Get("project_future"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, fmt.Errorf("invalid project_future: %q", v)
		}
		params.ProjectFuture = b
	}
	if v := q.Get("projection_periods"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("invalid projection_periods: %q", v)
		}
		params.ProjectionPeriods = n
	}
	if v := q.Get("lookback_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("invalid lookback_days: %q", v)
		}
		params.LookbackDays = n
	}
	return params, nil
}

// runDetection executes detection and writes the response, mapping
// errors the same way for every levels endpoint.
func (s *Server) runDetection(w http.ResponseWriter, r *http.Request, endpoint, symbol string, params levels.DetectParams) {
	started := time.Now()

	result, err := s.levelsAgent.DetectLevels(r.Context(), symbol, params)
	if err != nil {
		if errors.Is(err, levels.ErrUnsupportedTimeframe) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeLevelsFailure(w, err)
		return
	}

	if result.Status == "success" {
		s.wsHub.Broadcast(WSMessage{
			Type: "levels_detected",
			Data: map[string]interface{}{
				"symbol":        result.Symbol,
				"support":       len(result.SupportLevels),
				"resistance":    len(result.ResistanceLevels),
				"current_price": result.CurrentPrice,
			},
		})
	}

	writeJSON(w, http.StatusOK, LevelsResponse{
		DetectResult: result,
		APIMetadata: APIMetadata{
			Endpoint:              endpoint,
			RequestTime:           utils.FormatISO(started),
			ProcessingTimeSeconds: time.Since(started).Seconds(),
		},
	})
}

func (s *Server) handleLevelsGet(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	params, err := parseDetectParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.runDetection(w, r, "/api/v1/levels/{symbol}", symbol, params)
}

func (s *Server) handleLevelsDetect(w http.ResponseWriter, r *http.Request) {
	var body DetectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if body.Timeframe == "" {
		body.Timeframe = models.Timeframe1Day
	}
	s.runDetection(w, r, "/api/v1/levels/detect", body.Symbol, body.DetectParams)
}

func (s *Server) handleLevelsBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Symbols) == 0 {
		writeError(w, http.StatusBadRequest, "symbols are required")
		return
	}
	if body.Timeframe == "" {
		body.Timeframe = models.Timeframe1Day
	}
	if !models.ValidTimeframe(body.Timeframe) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported timeframe: %q", body.Timeframe))
		return
	}

	started := time.Now()
	out := s.levelsAgent.DetectLevelsBatch(r.Context(), body.Symbols, body.DetectParams, body.Parallel)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": out.Results,
		"errors":  out.Errors,
		"api_metadata": APIMetadata{
			Endpoint:              "/api/v1/levels/batch",
			RequestTime:           utils.FormatISO(started),
			ProcessingTimeSeconds: time.Since(started).Seconds(),
		},
	})
}

func (s *Server) handleLevelsNearest(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	params, err := parseDetectParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params.MaxLevels = 1
	s.runDetection(w, r, "/api/v1/levels/{symbol}/nearest", symbol, params)
}

func (s *Server) handleLevelsClearCache(w http.ResponseWriter, r *http.Request) {
	scope := "all"
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		s.levelsAgent.ClearCacheFor(symbol)
		scope = symbol
	} else {
		s.levelsAgent.ClearCache()
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]string{"cache": "cleared", "scope": scope},
	})
}

func (s *Server) handleLevelsHealth(w http.ResponseWriter, r *http.Request) {
	health := s.levelsAgent.HealthCheck()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  health.Status,
		"agent":   s.levelsAgent.Name(),
		"details": health.Extra,
	})
}

// writeLevelsFailure reports an unexpected failure with a trace, per
// the 500 contract of the levels endpoints.
func writeLevelsFailure(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error": err.Error(),
		"trace": string(debug.Stack()),
	})
}
