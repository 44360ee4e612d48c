package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/copilot-trader/marketpulse/internal/config"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func testConfig() *config.Config {
	return &config.Config{
		News: config.NewsConfig{
			UseMockData:       true,
			MinRelevanceScore: 0.3,
			MaxArticles:       50,
		},
		Cache: config.CacheConfig{
			EnableCache:         true,
			SimilarityThreshold: 0.85,
		},
		Levels: config.LevelsConfig{
			UseMockData: true,
			EnableCache: true,
			MinStrength: 1,
			MaxLevels:   5,
		},
		Aggregate: config.AggregateConfig{
			UseTimeWeighting: true,
			CalculateImpact:  true,
		},
	}
}

func testServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(testConfig(), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.wsHub.Run()
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v\nbody: %s", err, rec.Body.String())
	}
	return out
}

// ════════════════════════════════════════════════════════════════════
// APIResponse type tests
// ════════════════════════════════════════════════════════════════════

func TestAPIResponseJSON(t *testing.T) {
	tests := []struct {
		name string
		resp APIResponse
	}{
		{
			name: "success with data",
			resp: APIResponse{Success: true, Data: map[string]string{"key": "value"}},
		},
		{
			name: "error",
			resp: APIResponse{Success: false, Error: "something went wrong"},
		},
		{
			name: "success with nil data",
			resp: APIResponse{Success: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			var got APIResponse
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			if got.Success != tt.resp.Success {
				t.Errorf("Success: got %v, want %v", got.Success, tt.resp.Success)
			}
			if got.Error != tt.resp.Error {
				t.Errorf("Error: got %q, want %q", got.Error, tt.resp.Error)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Health handler tests
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("expected success=true")
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatal("data should be a map")
	}
	if data["status"] != "ok" {
		t.Errorf("status: got %q", data["status"])
	}
	for _, key := range []string{"market_status", "time", "version"} {
		if _, ok := data[key]; !ok {
			t.Errorf("missing %s", key)
		}
	}
}

func TestHealthResponse_ContentType(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/health", "")

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
}

func TestHandleHealth_V1Alias(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
}

// ════════════════════════════════════════════════════════════════════
// Pipeline visualize handler tests
// ════════════════════════════════════════════════════════════════════

func TestHandlePipelineVisualize_FullRun(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/news-pipeline/visualize",
		`{"symbol":"AAPL","time_horizon":"1d"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d\nbody: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp VisualizeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Status != "success" {
		t.Fatalf("status: got %q (error: %s)", resp.Status, resp.Error)
	}
	if len(resp.Steps) != 3 {
		t.Fatalf("steps: got %d, want 3", len(resp.Steps))
	}

	wantAgents := []string{"news_fetch_agent", "llm_sentiment_agent", "sentiment_aggregator"}
	for i, step := range resp.Steps {
		if step.Agent != wantAgents[i] {
			t.Errorf("step[%d].Agent: got %q, want %q", i, step.Agent, wantAgents[i])
		}
		if step.Status == "error" {
			t.Errorf("step[%d] failed: %s", i, step.Error)
		}
		if step.StartTime == "" {
			t.Errorf("step[%d] missing start_time", i)
		}
		if step.Details == nil {
			t.Errorf("step[%d] missing details", i)
		}
	}

	if resp.FinalResult == nil {
		t.Fatal("missing final_result")
	}
	if resp.FinalResult["symbol"] != "AAPL" {
		t.Errorf("final symbol: got %v", resp.FinalResult["symbol"])
	}
	if _, ok := resp.FinalResult["aggregated_sentiment"]; !ok {
		t.Error("missing aggregated_sentiment in final_result")
	}
	if resp.TotalDurationMS < 0 {
		t.Errorf("total_duration_ms: got %v", resp.TotalDurationMS)
	}
}

func TestHandlePipelineVisualize_NormalizesSymbol(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/news-pipeline/visualize",
		`{"symbol":" msft "}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d\nbody: %s", rec.Code, rec.Body.String())
	}

	resp := decodeMap(t, rec)
	input, ok := resp["input"].(map[string]interface{})
	if !ok {
		t.Fatal("input should be a map")
	}
	if input["symbol"] != "MSFT" {
		t.Errorf("symbol: got %v, want MSFT", input["symbol"])
	}
	if input["time_horizon"] != "1d" {
		t.Errorf("default time_horizon: got %v, want 1d", input["time_horizon"])
	}
	if input["min_relevance"] != 0.3 {
		t.Errorf("default min_relevance: got %v, want 0.3", input["min_relevance"])
	}
}

func TestHandlePipelineVisualize_InvalidJSON(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/news-pipeline/visualize", "{bad")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}

	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Error("expected success=false for invalid JSON")
	}
}

func TestHandlePipelineVisualize_MissingSymbol(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/news-pipeline/visualize", `{"max_articles":5}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}

	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Error, "symbol") {
		t.Errorf("error should mention 'symbol': %q", resp.Error)
	}
}

func TestHandlePipelineVisualize_InvalidHorizon(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/news-pipeline/visualize",
		`{"symbol":"AAPL","time_horizon":"2y"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}

	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Error, "time_horizon") {
		t.Errorf("error should mention time_horizon: %q", resp.Error)
	}
}

func TestHandlePipelineHealth(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/news-pipeline/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	resp := decodeMap(t, rec)
	if resp["status"] != "ok" {
		t.Errorf("status: got %v", resp["status"])
	}

	agents, ok := resp["agents_initialized"].(map[string]interface{})
	if !ok {
		t.Fatal("agents_initialized should be a map")
	}
	for _, name := range []string{"news_fetch_agent", "llm_sentiment_agent", "sentiment_aggregator"} {
		if agents[name] != true {
			t.Errorf("agent %q not initialized: %v", name, agents[name])
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Levels handler tests
// ════════════════════════════════════════════════════════════════════

func TestHandleLevelsGet(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/levels/AAPL?timeframe=1d", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d\nbody: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	resp := decodeMap(t, rec)
	if resp["status"] != "success" {
		t.Fatalf("status: got %v (error: %v)", resp["status"], resp["error"])
	}
	if resp["symbol"] != "AAPL" {
		t.Errorf("symbol: got %v", resp["symbol"])
	}
	if resp["data_source"] != "mock_data" {
		t.Errorf("data_source: got %v", resp["data_source"])
	}

	for _, key := range []string{"support_levels", "resistance_levels", "key_levels", "current_price"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("missing %s", key)
		}
	}

	meta, ok := resp["api_metadata"].(map[string]interface{})
	if !ok {
		t.Fatal("api_metadata should be a map")
	}
	if meta["endpoint"] != "/api/v1/levels/{symbol}" {
		t.Errorf("endpoint: got %v", meta["endpoint"])
	}
	if _, ok := meta["processing_time_seconds"]; !ok {
		t.Error("missing processing_time_seconds")
	}
}

func TestHandleLevelsGet_InvalidTimeframe(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/levels/AAPL?timeframe=2h", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d\nbody: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Error("expected success=false")
	}
	if !strings.Contains(resp.Error, "timeframe") {
		t.Errorf("error should mention timeframe: %q", resp.Error)
	}
}

func TestHandleLevelsGet_BadQueryParam(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/levels/AAPL?min_strength=abc", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}

	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Error, "min_strength") {
		t.Errorf("error should mention min_strength: %q", resp.Error)
	}
}

func TestHandleLevelsDetect(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/levels/detect",
		`{"symbol":"MSFT","timeframe":"1d","min_strength":1,"max_levels":3}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d\nbody: %s", rec.Code, rec.Body.String())
	}

	resp := decodeMap(t, rec)
	if resp["status"] != "success" {
		t.Fatalf("status: got %v (error: %v)", resp["status"], resp["error"])
	}

	support, _ := resp["support_levels"].([]interface{})
	resistance, _ := resp["resistance_levels"].([]interface{})
	if len(support) > 3 || len(resistance) > 3 {
		t.Errorf("max_levels not enforced: %d support, %d resistance", len(support), len(resistance))
	}
}

func TestHandleLevelsDetect_InvalidJSON(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/levels/detect", "not json")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleLevelsDetect_MissingSymbol(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/levels/detect", `{"timeframe":"1d"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}

	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Error, "symbol") {
		t.Errorf("error should mention 'symbol': %q", resp.Error)
	}
}

func TestHandleLevelsBatch(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/levels/batch",
		`{"symbols":["AAPL","MSFT"],"timeframe":"1d"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d\nbody: %s", rec.Code, rec.Body.String())
	}

	resp := decodeMap(t, rec)
	results, ok := resp["results"].(map[string]interface{})
	if !ok {
		t.Fatal("results should be a map")
	}
	if len(results) != 2 {
		t.Errorf("results: got %d, want 2", len(results))
	}
	if _, ok := resp["api_metadata"]; !ok {
		t.Error("missing api_metadata")
	}
}

func TestHandleLevelsBatch_EmptySymbols(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/levels/batch", `{"symbols":[]}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleLevelsBatch_InvalidTimeframe(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "POST", "/api/v1/levels/batch",
		`{"symbols":["AAPL"],"timeframe":"2h"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleLevelsNearest(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/levels/AAPL/nearest?timeframe=1d", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d\nbody: %s", rec.Code, rec.Body.String())
	}

	resp := decodeMap(t, rec)
	support, _ := resp["support_levels"].([]interface{})
	resistance, _ := resp["resistance_levels"].([]interface{})
	if len(support) > 1 || len(resistance) > 1 {
		t.Errorf("nearest should cap at one per side: %d/%d", len(support), len(resistance))
	}
}

func TestHandleLevelsClearCache(t *testing.T) {
	srv := testServer(t)

	// Warm the cache, then clear it.
	if rec := doRequest(t, srv, "GET", "/api/v1/levels/AAPL?timeframe=1d", ""); rec.Code != http.StatusOK {
		t.Fatalf("warmup status: %d", rec.Code)
	}

	rec := doRequest(t, srv, "POST", "/api/v1/levels/cache/clear", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("expected success=true")
	}
	if srv.levelsAgent.CacheSize() != 0 {
		t.Error("cache not cleared")
	}
}

func TestHandleLevelsHealth(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/levels/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	resp := decodeMap(t, rec)
	if resp["status"] != "healthy" {
		t.Errorf("status: got %v", resp["status"])
	}
	if resp["agent"] != "support_resistance_agent" {
		t.Errorf("agent: got %v", resp["agent"])
	}
}

// ════════════════════════════════════════════════════════════════════
// Config handler tests
// ════════════════════════════════════════════════════════════════════

func TestHandleGetConfig(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/config", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.Data == nil {
		t.Error("expected config data")
	}
}

func TestHandleGetConfigKeys(t *testing.T) {
	srv := testServer(t)
	rec := doRequest(t, srv, "GET", "/api/v1/config/keys", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("expected success=true")
	}

	arr, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("data should be an array, got %T", resp.Data)
	}
	if len(arr) == 0 {
		t.Error("expected key statuses")
	}
}

// ════════════════════════════════════════════════════════════════════
// writeJSON / writeError tests
// ════════════════════════════════════════════════════════════════════

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, APIResponse{
		Success: true,
		Data:    "hello",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusCreated)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}

	resp := decodeResponse(t, rec)
	if !resp.Success || resp.Data != "hello" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusNotFound, "not found")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Error("expected success=false")
	}
	if resp.Error != "not found" {
		t.Errorf("error: got %q, want %q", resp.Error, "not found")
	}
}

func TestWriteError_VariousStatusCodes(t *testing.T) {
	codes := []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable,
	}

	for _, code := range codes {
		t.Run(fmt.Sprintf("status_%d", code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, code, "test error")

			if rec.Code != code {
				t.Errorf("status: got %d, want %d", rec.Code, code)
			}

			resp := decodeResponse(t, rec)
			if resp.Success {
				t.Error("expected success=false")
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket Hub tests
// ════════════════════════════════════════════════════════════════════

func TestWSHub_NewWSHub(t *testing.T) {
	hub := NewWSHub()
	if hub == nil {
		t.Fatal("NewWSHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount: got %d, want 0", hub.ClientCount())
	}
}

func TestWSHub_RegisterAndUnregister(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	// Give hub time to start
	time.Sleep(10 * time.Millisecond)

	client := &WSClient{
		hub:  hub,
		send: make(chan WSMessage, 256),
	}

	hub.Register(client)
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 1 {
		t.Errorf("after register: ClientCount=%d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister: ClientCount=%d, want 0", hub.ClientCount())
	}
}

func TestWSHub_Broadcast(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	client1 := &WSClient{hub: hub, send: make(chan WSMessage, 256)}
	client2 := &WSClient{hub: hub, send: make(chan WSMessage, 256)}

	hub.Register(client1)
	hub.Register(client2)
	time.Sleep(10 * time.Millisecond)

	msg := WSMessage{Type: "test", Data: "hello"}
	hub.Broadcast(msg)
	time.Sleep(10 * time.Millisecond)

	// Both clients should receive the message
	select {
	case got := <-client1.send:
		if got.Type != "test" {
			t.Errorf("client1 got type=%q, want 'test'", got.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("client1 did not receive message")
	}

	select {
	case got := <-client2.send:
		if got.Type != "test" {
			t.Errorf("client2 got type=%q, want 'test'", got.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("client2 did not receive message")
	}

	// Cleanup
	hub.Unregister(client1)
	hub.Unregister(client2)
}

func TestWSHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	// Calling Broadcast with no clients and a full broadcast channel
	// should not block (message is dropped).
	done := make(chan bool)
	go func() {
		for i := 0; i < 300; i++ {
			hub.Broadcast(WSMessage{Type: "test"})
		}
		done <- true
	}()

	select {
	case <-done:
		// Good — didn't block
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked when buffer was full")
	}
}

func TestWSHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	var wg sync.WaitGroup
	numClients := 50

	clients := make([]*WSClient, numClients)
	for i := 0; i < numClients; i++ {
		clients[i] = &WSClient{hub: hub, send: make(chan WSMessage, 256)}
	}

	// Register all concurrently
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(c *WSClient) {
			defer wg.Done()
			hub.Register(c)
		}(clients[i])
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)

	count := hub.ClientCount()
	if count != numClients {
		t.Errorf("after all registered: ClientCount=%d, want %d", count, numClients)
	}

	// Unregister all concurrently
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(c *WSClient) {
			defer wg.Done()
			hub.Unregister(c)
		}(clients[i])
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)

	count = hub.ClientCount()
	if count != 0 {
		t.Errorf("after all unregistered: ClientCount=%d, want 0", count)
	}
}

func TestWSHub_MultipleMessages(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	client := &WSClient{hub: hub, send: make(chan WSMessage, 256)}
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	msgs := []WSMessage{
		{Type: "type1", Data: "d1"},
		{Type: "type2", Data: "d2"},
		{Type: "type3", Data: "d3"},
	}

	for _, m := range msgs {
		hub.Broadcast(m)
	}
	time.Sleep(50 * time.Millisecond)

	received := make([]WSMessage, 0)
	for {
		select {
		case m := <-client.send:
			received = append(received, m)
		default:
			goto done
		}
	}
done:

	if len(received) != 3 {
		t.Fatalf("received %d messages, want 3", len(received))
	}
	for i, m := range received {
		expected := fmt.Sprintf("type%d", i+1)
		if m.Type != expected {
			t.Errorf("msg[%d].Type: got %q, want %q", i, m.Type, expected)
		}
	}

	hub.Unregister(client)
}

// ════════════════════════════════════════════════════════════════════
// WSMessage JSON tests
// ════════════════════════════════════════════════════════════════════

func TestWSMessageJSON(t *testing.T) {
	msg := WSMessage{
		Type: "pipeline_step",
		Data: map[string]interface{}{
			"symbol": "AAPL",
			"status": "success",
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	var got WSMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	if got.Type != "pipeline_step" {
		t.Errorf("Type: got %q", got.Type)
	}
}

func TestWSMessageJSON_NoData(t *testing.T) {
	msg := WSMessage{Type: "pong"}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	var got WSMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "pong" {
		t.Errorf("Type: got %q", got.Type)
	}
	if got.Data != nil {
		t.Errorf("Data should be nil: %v", got.Data)
	}
}

func TestWSClient_SendChannel(t *testing.T) {
	client := &WSClient{
		send: make(chan WSMessage, 10),
	}

	// Should be able to send without blocking
	client.send <- WSMessage{Type: "test"}

	msg := <-client.send
	if msg.Type != "test" {
		t.Errorf("Type: got %q", msg.Type)
	}
}

// ════════════════════════════════════════════════════════════════════
// Batch: verifying all error responses are valid JSON
// ════════════════════════════════════════════════════════════════════

func TestErrorResponsesAreValidJSON(t *testing.T) {
	srv := testServer(t)

	scenarios := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"visualize_invalid", "POST", "/api/v1/news-pipeline/visualize", "{bad"},
		{"detect_invalid", "POST", "/api/v1/levels/detect", "{bad"},
		{"batch_invalid", "POST", "/api/v1/levels/batch", "{bad"},
		{"visualize_no_symbol", "POST", "/api/v1/news-pipeline/visualize", "{}"},
		{"detect_no_symbol", "POST", "/api/v1/levels/detect", "{}"},
	}

	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			rec := doRequest(t, srv, sc.method, sc.path, sc.body)

			var resp APIResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("response for %s is not valid JSON: %v\nbody: %s", sc.path, err, rec.Body.String())
			}
			if resp.Success {
				t.Errorf("expected success=false for invalid input at %s", sc.path)
			}
		})
	}
}
