// Package embeddings generates vector embeddings for chunk text
// through an OpenAI-compatible HTTP endpoint. A configurable base URL
// lets a local embedding server stand in for the hosted API.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "text-embedding-3-small"
	defaultDimensions = 1536
	defaultRateLimit  = 500 // requests per minute

	// MaxBatchSize bounds the number of inputs per embedding call.
	MaxBatchSize = 256
)

// Embedder generates embeddings for batches of text.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Dimensions() int
}

// Provider calls an OpenAI-compatible embeddings endpoint.
type Provider struct {
	baseURL     string
	apiKey      string
	model       string
	dimensions  int
	rateLimit   int
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// Option configures the Provider.
type Option func(*Provider)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
	}
}

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithDimensions sets the embedding dimensions.
func WithDimensions(dims int) Option {
	return func(p *Provider) {
		p.dimensions = dims
	}
}

// WithRateLimit sets the request budget in requests per minute.
// Non-positive values keep the default.
func WithRateLimit(rpm int) Option {
	return func(p *Provider) {
		if rpm > 0 {
			p.rateLimit = rpm
		}
	}
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// NewProvider creates an embeddings provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		baseURL:    defaultBaseURL,
		apiKey:     os.Getenv("OPENAI_API_KEY"),
		model:      defaultModel,
		dimensions: defaultDimensions,
		rateLimit:  defaultRateLimit,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(p)
	}

	burst := p.rateLimit / 10
	if burst < 1 {
		burst = 1
	}
	p.rateLimiter = NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: p.rateLimit,
		BurstSize:         burst,
	})

	return p
}

// Dimensions returns the dimensionality of produced vectors.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Embed generates one embedding per input, preserving order. Inputs
// beyond MaxBatchSize must be split by the caller.
func (p *Provider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if len(inputs) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds maximum %d", len(inputs), MaxBatchSize)
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed; %w", err)
	}

	requestBody := map[string]any{
		"model": p.model,
		"input": inputs,
	}
	if p.model == "text-embedding-3-small" || p.model == "text-embedding-3-large" {
		requestBody["dimensions"] = p.dimensions
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request; %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request; %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API request failed; %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response; %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var apiResp embeddingsResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response; %w", err)
	}
	if len(apiResp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(apiResp.Data))
	}

	out := make([][]float32, len(inputs))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}

	return out, nil
}

// embeddingsResponse is the OpenAI-compatible response shape.
type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

var _ Embedder = (*Provider)(nil)
