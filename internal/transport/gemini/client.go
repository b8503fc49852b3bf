// Package gemini adapts the Google Gemini generateContent REST API to the
// pipeline's provider contract.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/treyworks/sitesearch/internal/domain"
	"github.com/treyworks/sitesearch/internal/metrics"
)

const providerName = "gemini"

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const (
	defaultModel        = "gemini-1.5-flash"
	extractMaxTokens    = 100
	synthesizeMaxTokens = 1000
	temperature         = 0.7
)

// Client is an LLM provider using the Gemini generateContent API. Gemini has
// no system role in this API version, so the prompt and the user input are
// concatenated into a single text part.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	extractionModel string
	generativeModel string
	logger          *zap.Logger
}

// Config holds the provider settings.
type Config struct {
	APIKey          string
	BaseURL         string
	ExtractionModel string
	GenerativeModel string
	Logger          *zap.Logger
}

// NewClient creates a Gemini provider. An empty API key is a configuration
// error; no network call is attempted.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", domain.ErrMissingAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	extractionModel := cfg.ExtractionModel
	if extractionModel == "" {
		extractionModel = defaultModel
	}
	generativeModel := cfg.GenerativeModel
	if generativeModel == "" {
		generativeModel = defaultModel
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient:      &http.Client{},
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          cfg.APIKey,
		extractionModel: extractionModel,
		generativeModel: generativeModel,
		logger:          logger,
	}, nil
}

// Extract concatenates the prompt and the raw user query into a single turn
// and returns the model's text response.
func (c *Client) Extract(ctx context.Context, systemPrompt, userText string) (string, error) {
	text := systemPrompt + "\n User query: " + userText
	return c.generate(ctx, "extract", c.extractionModel, text, extractMaxTokens)
}

// Synthesize concatenates the prompt and the serialized query+documents
// payload and returns the model's text response.
func (c *Client) Synthesize(ctx context.Context, systemPrompt, payload string) (string, error) {
	text := systemPrompt + "\nSearch results:\n" + payload
	return c.generate(ctx, "synthesize", c.generativeModel, text, synthesizeMaxTokens)
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount int `json:"promptTokenCount"`
		TotalTokenCount  int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) generate(
	ctx context.Context, stage, model, text string, maxTokens int,
) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, model, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()

	resp, err := c.httpClient.Do(req)

	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(providerName, model, stage, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(providerName, model, "transport_error").Inc()
		return "", fmt.Errorf("generateContent request failed: %w", domain.ErrProvider)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(providerName, model, stage, "error").Inc()
		return "", fmt.Errorf("read response: %w", domain.ErrProvider)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(providerName, model, stage, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(providerName, model, "decode_error").Inc()
		return "", fmt.Errorf("decode response: %w", domain.ErrProvider)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.LLMRequestsTotal.WithLabelValues(providerName, model, stage, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(providerName, model, "api_error").Inc()
		if parsed.Error.Message != "" {
			return "", fmt.Errorf("generateContent API error %d: %s: %w",
				resp.StatusCode, parsed.Error.Message, domain.ErrProvider)
		}
		return "", fmt.Errorf("generateContent API error %d: %w",
			resp.StatusCode, domain.ErrProvider)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(providerName, model, stage, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(providerName, model, "empty_response").Inc()
		return "", fmt.Errorf("empty generateContent response: %w", domain.ErrProvider)
	}

	metrics.LLMRequestsTotal.WithLabelValues(providerName, model, stage, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(providerName, model, stage).Observe(duration.Seconds())

	if parsed.UsageMetadata.TotalTokenCount > 0 {
		metrics.LLMTokensTotal.WithLabelValues(providerName, model, "prompt").
			Add(float64(parsed.UsageMetadata.PromptTokenCount))
		metrics.LLMTokensTotal.WithLabelValues(providerName, model, "total").
			Add(float64(parsed.UsageMetadata.TotalTokenCount))
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// HealthCheck verifies API availability with a minimal generateContent call.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.generate(ctx, "health", c.extractionModel, "ping", 1); err != nil {
		return fmt.Errorf("gemini ping: %w", err)
	}
	return nil
}
