// Package classifier sends cleaned chunk text to an external LLM and
// returns a structured classification record. The gateway fails soft:
// callers always receive a usable record, never an error.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultEndpoint    = "http://localhost:11434/api/generate"
	defaultModel       = "llama3.1:8b"
	defaultTemperature = 0.1
	defaultMaxRetries  = 2
	defaultTimeout     = 180 * time.Second

	// CategoryUncategorized is the fallback category when no reliable
	// classification can be produced.
	CategoryUncategorized = "Uncategorized"
	// SubcategoryGeneral is the fallback subcategory.
	SubcategoryGeneral = "General Business"
)

// defaultPrompt is the fixed instruction prefix sent before the input
// text on every classification call.
const defaultPrompt = `You are an enterprise content classifier. Read the input text and respond with a single JSON object, no prose, with exactly these keys: entity_type, category_level_1, category_level_2_sub, business_concept_name, business_specific_name, primary_process_type, title, description, extraction_confidence. category_level_1 is the business domain, category_level_2_sub a narrower subcategory. extraction_confidence is a number between 0 and 1.`

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// Record is the fixed-shape classification result for one chunk.
type Record struct {
	EntityType           string  `json:"entity_type"`
	CategoryLevel1       string  `json:"category_level_1"`
	CategoryLevel2Sub    string  `json:"category_level_2_sub"`
	BusinessConceptName  string  `json:"business_concept_name"`
	BusinessSpecificName string  `json:"business_specific_name"`
	PrimaryProcessType   string  `json:"primary_process_type"`
	Title                string  `json:"title"`
	Description          string  `json:"description"`
	ExtractionConfidence float64 `json:"extraction_confidence"`
}

// Gateway talks to the external LLM over its generate endpoint.
type Gateway struct {
	endpoint    string
	model       string
	prompt      string
	temperature float64
	maxRetries  int
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithEndpoint sets the generate endpoint URL.
func WithEndpoint(url string) Option {
	return func(g *Gateway) {
		g.endpoint = url
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(g *Gateway) {
		g.model = model
	}
}

// WithPrompt overrides the instruction prefix.
func WithPrompt(prompt string) Option {
	return func(g *Gateway) {
		g.prompt = prompt
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Gateway) {
		g.temperature = t
	}
}

// WithMaxRetries sets the retry budget for malformed responses.
func WithMaxRetries(n int) Option {
	return func(g *Gateway) {
		g.maxRetries = n
	}
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway creates a classifier gateway with defaults suitable for a
// local model server.
func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		endpoint:    defaultEndpoint,
		model:       defaultModel,
		prompt:      defaultPrompt,
		temperature: defaultTemperature,
		maxRetries:  defaultMaxRetries,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Classify returns a structured record for the given cleaned text.
// Malformed model output is repaired when possible and retried up to
// the configured budget; on exhaustion a fallback record is returned.
func (g *Gateway) Classify(ctx context.Context, text string) Record {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Record{
			EntityType:           "content",
			CategoryLevel1:       CategoryUncategorized,
			CategoryLevel2Sub:    SubcategoryGeneral,
			PrimaryProcessType:   "Other",
			Title:                "Empty Input",
			Description:          "No text provided for classification.",
			ExtractionConfidence: 0.0,
		}
	}

	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		raw, err := g.generate(ctx, g.prompt+"\n\n[INPUT]: "+trimmed)
		if err != nil {
			g.logger.Warn("classifier call failed", "attempt", attempt, "error", err)
			continue
		}

		rec, ok := parseRecord(raw)
		if !ok {
			g.logger.Warn("classifier returned unparseable output", "attempt", attempt, "snippet", truncate(raw, 150))
			continue
		}
		if rec.CategoryLevel1 == "" || rec.CategoryLevel1 == CategoryUncategorized {
			g.logger.Warn("classifier returned uncategorized result", "attempt", attempt)
			continue
		}

		return rec
	}

	g.logger.Warn("classifier retries exhausted, using fallback", "text", truncate(trimmed, 100))
	return FallbackRecord(trimmed)
}

// Explain asks the model to rewrite chart or table content as prose.
// Unlike Classify, errors surface so the caller can keep the original
// text.
func (g *Gateway) Explain(ctx context.Context, text string) (string, error) {
	prompt := "Explain the following chart or table content as plain prose, keeping every figure:\n\n" + text

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("empty model response")
	}
	return strings.TrimSpace(raw), nil
}

// FallbackRecord is the record used when classification cannot be
// completed.
func FallbackRecord(text string) Record {
	return Record{
		EntityType:           "content",
		CategoryLevel1:       CategoryUncategorized,
		CategoryLevel2Sub:    SubcategoryGeneral,
		PrimaryProcessType:   "Other",
		Title:                "Classification Error",
		Description:          truncate(text, 200),
		ExtractionConfidence: 0.4,
	}
}

// generateRequest is the wire format of the model server.
type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (g *Gateway) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Model:       g.model,
		Prompt:      prompt,
		Stream:      false,
		Temperature: g.temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request; %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request; %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("model request failed; %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response; %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model error %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var apiResp generateResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response envelope; %w", err)
	}

	return strings.TrimSpace(apiResp.Response), nil
}

// parseRecord attempts a strict JSON parse, then falls back to the
// largest brace-delimited substring.
func parseRecord(raw string) (Record, bool) {
	if raw == "" {
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err == nil {
		return clampConfidence(rec), true
	}

	if m := jsonObjectRe.FindString(raw); m != "" {
		if err := json.Unmarshal([]byte(m), &rec); err == nil {
			return clampConfidence(rec), true
		}
	}

	return Record{}, false
}

// clampConfidence keeps extraction_confidence inside [0, 1]. A model
// emitting a value outside the range gets the fallback default.
func clampConfidence(rec Record) Record {
	if rec.ExtractionConfidence < 0 || rec.ExtractionConfidence > 1 {
		rec.ExtractionConfidence = 0.4
	}
	return rec
}

// truncate limits s to n bytes without cutting a rune in half.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
