// Package openai adapts the OpenAI chat-completion API to the pipeline's
// provider contract.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/treyworks/sitesearch/internal/domain"
	"github.com/treyworks/sitesearch/internal/metrics"
)

const providerName = "openai"

// Completion limits per pipeline stage: a search term is short, a summary
// is not.
const (
	extractMaxTokens    = 100
	synthesizeMaxTokens = 1000
	temperature         = 0.7
)

// Client is an LLM provider using the OpenAI chat-completion API.
type Client struct {
	client          *openai.Client
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

// NewClient creates an OpenAI provider. An empty API key is a configuration
// error; no network call is attempted.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", domain.ErrMissingAPIKey)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	extractionModel := cfg.ExtractionModel
	if extractionModel == "" {
		extractionModel = openai.GPT4oMini
	}
	generativeModel := cfg.GenerativeModel
	if generativeModel == "" {
		generativeModel = openai.GPT4o
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client:          openai.NewClientWithConfig(clientCfg),
		extractionModel: extractionModel,
		generativeModel: generativeModel,
		logger:          logger,
	}, nil
}

// Extract sends the system prompt plus the raw user query as a single turn
// and returns the model's text response.
func (c *Client) Extract(ctx context.Context, systemPrompt, userText string) (string, error) {
	return c.complete(ctx, "extract", c.extractionModel, systemPrompt, userText, extractMaxTokens)
}

// Synthesize sends the system prompt plus the serialized query+documents
// payload and returns the model's text response.
func (c *Client) Synthesize(ctx context.Context, systemPrompt, payload string) (string, error) {
	return c.complete(ctx, "synthesize", c.generativeModel, systemPrompt, payload, synthesizeMaxTokens)
}

func (c *Client) complete(
	ctx context.Context, stage, model, systemPrompt, user string, maxTokens int,
) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(providerName, model, stage, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(providerName, model, "api_error").Inc()
		return "", parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(providerName, model, stage, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(providerName, model, "empty_response").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrProvider)
	}

	metrics.LLMRequestsTotal.WithLabelValues(providerName, model, stage, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(providerName, model, stage).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(providerName, model, "prompt").
			Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(providerName, model, "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrProvider so callers can degrade.
func parseAPIError(err error) error {
	wrap := domain.ErrProvider

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("completion API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("completion API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("completion request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
