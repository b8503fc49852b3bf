package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/treyworks/sitesearch/internal/domain"
	"github.com/treyworks/sitesearch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterLLMMetrics()
	os.Exit(m.Run())
}

func generateResponseBody(texts ...string) map[string]any {
	parts := make([]map[string]any, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, map[string]any{"text": t})
	}
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": parts}},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount": 8,
			"totalTokenCount":  15,
		},
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(&Config{
		APIKey:          "test-key",
		BaseURL:         baseURL,
		ExtractionModel: "extract-model",
		GenerativeModel: "generate-model",
		Logger:          zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	_, err := NewClient(&Config{Logger: zap.NewNop()})
	if !errors.Is(err, domain.ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestClient_Extract(t *testing.T) {
	var captured generateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/extract-model:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("unexpected key param: %s", r.URL.Query().Get("key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponseBody("hiking trails"))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	term, err := c.Extract(context.Background(), "extract the term", "where can I hike?")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if term != "hiking trails" {
		t.Errorf("term = %q, expected %q", term, "hiking trails")
	}

	if len(captured.Contents) != 1 || len(captured.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected contents shape: %+v", captured.Contents)
	}
	text := captured.Contents[0].Parts[0].Text
	if !strings.HasPrefix(text, "extract the term") {
		t.Errorf("prompt missing from text: %q", text)
	}
	if !strings.Contains(text, "where can I hike?") {
		t.Errorf("user query missing from text: %q", text)
	}
	if captured.GenerationConfig.MaxOutputTokens != extractMaxTokens {
		t.Errorf("maxOutputTokens = %d, expected %d",
			captured.GenerationConfig.MaxOutputTokens, extractMaxTokens)
	}
}

func TestClient_Synthesize(t *testing.T) {
	var captured generateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/generate-model:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponseBody("Part one. ", "Part two."))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	summary, err := c.Synthesize(context.Background(), "summarize these", `{"query":"hike"}`)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if summary != "Part one. Part two." {
		t.Errorf("summary = %q, expected joined parts", summary)
	}

	if captured.GenerationConfig.MaxOutputTokens != synthesizeMaxTokens {
		t.Errorf("maxOutputTokens = %d, expected %d",
			captured.GenerationConfig.MaxOutputTokens, synthesizeMaxTokens)
	}
}

func TestClient_APIErrorWrapsProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    400,
				"message": "API key not valid",
				"status":  "INVALID_ARGUMENT",
			},
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.Extract(context.Background(), "prompt", "query")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !errors.Is(err, domain.ErrProvider) {
		t.Errorf("expected ErrProvider, got %v", err)
	}
	if !strings.Contains(err.Error(), "API key not valid") {
		t.Errorf("error should carry the API message, got %v", err)
	}
}

func TestClient_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.Synthesize(context.Background(), "prompt", "payload")
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}

func TestClient_TransportErrorWrapsProvider(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0")

	_, err := c.Extract(context.Background(), "prompt", "query")
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
}
