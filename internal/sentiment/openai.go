package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/copilot-trader/marketpulse/pkg/models"
)

// OpenAIClient calls the OpenAI Chat Completions API for sentiment and
// the Embeddings API for the semantic cache.
type OpenAIClient struct {
	apiKey         string
	baseURL        string
	model          string
	embeddingModel string
	temperature    float64
	maxTokens      int
	client         *http.Client
}

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*OpenAIClient)

// WithOpenAIBaseURL sets a custom base URL (e.g., for proxies).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *OpenAIClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithOpenAIModel sets the chat model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *OpenAIClient) { c.model = model }
}

// WithOpenAIEmbeddingModel sets the embedding model.
func WithOpenAIEmbeddingModel(model string) OpenAIOption {
	return func(c *OpenAIClient) { c.embeddingModel = model }
}

// WithOpenAITemperature sets the sampling temperature.
func WithOpenAITemperature(t float64) OpenAIOption {
	return func(c *OpenAIClient) { c.temperature = t }
}

// WithOpenAIMaxTokens sets the completion token cap.
func WithOpenAIMaxTokens(n int) OpenAIOption {
	return func(c *OpenAIClient) { c.maxTokens = n }
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(c *OpenAIClient) { c.client = client }
}

// NewOpenAIClient creates an OpenAI sentiment client.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	c := &OpenAIClient{
		apiKey:         apiKey,
		baseURL:        "https://api.openai.com/v1",
		model:          "gpt-4o",
		embeddingModel: "text-embedding-3-small",
		temperature:    0.1,
		maxTokens:      1024,
		client:         &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string { return "openai" }

// AnalyzeSentiment posts the sentiment prompt and parses the reply.
func (c *OpenAIClient) AnalyzeSentiment(ctx context.Context, article models.Article, symbol string) (*Result, error) {
	prompt := BuildSentimentPrompt(article, symbol)

	body := openAIChatRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: "You are a precise financial sentiment analyst. Reply with JSON only."},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var result openAIChatResponse
	if err := c.post(ctx, "/chat/completions", body, &result); err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrParse)
	}

	return ParseSentimentResult(result.Choices[0].Message.Content)
}

// Dimension returns the embedding dimension of the configured model.
func (c *OpenAIClient) Dimension() int {
	// text-embedding-3-large is the only 3072-wide model we use.
	if c.embeddingModel == "text-embedding-3-large" {
		return 3072
	}
	return 1536
}

// Embed returns the embedding vector for a text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	body := openAIEmbeddingRequest{
		Model: c.embeddingModel,
		Input: text,
	}

	var result openAIEmbeddingResponse
	if err := c.post(ctx, "/embeddings", body, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrProviderDown)
	}
	return result.Data[0].Embedding, nil
}

// post sends a JSON request and decodes the JSON reply.
func (c *OpenAIClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderDown, err)
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// checkError maps HTTP error statuses to sentinel errors.
func (c *OpenAIClient) checkError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var apiErr openAIErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)
	msg := apiErr.Error.Message

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrNoAPIKey, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimit, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrProviderDown, resp.StatusCode, msg)
	}
}

// ── Wire types ──

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

type openAIEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
