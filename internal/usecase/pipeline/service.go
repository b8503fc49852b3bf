// Package pipeline orchestrates the query→term→search→summary flow.
//
// The pipeline degrades instead of failing when the LLM is unavailable:
// a failed term extraction falls back to searching with the raw query, and
// a failed synthesis returns the documents with an empty summary. Only a
// retrieval failure aborts the request.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/treyworks/sitesearch/internal/domain"
	"github.com/treyworks/sitesearch/internal/logger"
	"github.com/treyworks/sitesearch/internal/metrics"
)

// DefaultLLMTimeout bounds a single provider call.
const DefaultLLMTimeout = 20 * time.Second

// Service runs the search pipeline.
type Service struct {
	provider   Provider
	content    ContentSearcher
	prompts    PromptSource
	audit      Auditor
	postTypes  []string
	llmTimeout time.Duration
}

// New creates a pipeline service. postTypes restricts text search to those
// content types; a non-positive timeout falls back to DefaultLLMTimeout.
func New(
	provider Provider, content ContentSearcher, prompts PromptSource, audit Auditor,
	postTypes []string, llmTimeout time.Duration,
) *Service {
	if llmTimeout <= 0 {
		llmTimeout = DefaultLLMTimeout
	}
	return &Service{
		provider:   provider,
		content:    content,
		prompts:    prompts,
		audit:      audit,
		postTypes:  postTypes,
		llmTimeout: llmTimeout,
	}
}

// Search runs the pipeline and synthesizes a summary of the results.
func (s *Service) Search(ctx context.Context, req domain.SearchRequest) (domain.PipelineResult, error) {
	return s.run(ctx, req, domain.PromptSummarize)
}

// Answer runs the pipeline and synthesizes a direct answer to the query.
func (s *Service) Answer(ctx context.Context, req domain.SearchRequest) (domain.PipelineResult, error) {
	return s.run(ctx, req, domain.PromptAnswer)
}

func (s *Service) run(ctx context.Context, req domain.SearchRequest, synthKey domain.PromptKey) (domain.PipelineResult, error) {
	log := logger.FromContext(ctx)

	term := s.extractTerm(ctx, req)

	docs, err := s.content.Search(ctx, term, s.postTypes, req.ScopeIDs)
	if err != nil {
		s.audit.Event(ctx, domain.AuditEvent{
			Level:         "error",
			Message:       "content search failed",
			Query:         req.Query,
			ExtractedTerm: term,
			Referer:       req.Referer,
			Outcome:       "error",
		})
		return domain.PipelineResult{}, fmt.Errorf("search content: %w", err)
	}

	metrics.SearchResultsCount.Observe(float64(len(docs)))

	summary := s.synthesize(ctx, req, term, docs, synthKey)

	result := domain.PipelineResult{
		Query:         req.Query,
		ExtractedTerm: term,
		Documents:     docs,
		Summary:       summary,
	}

	log.Info("pipeline completed",
		zap.String("query", req.Query),
		zap.String("extracted_term", term),
		zap.Int("results", len(docs)),
		zap.Bool("no_results", result.NoResults()),
	)

	s.audit.Event(ctx, domain.AuditEvent{
		Level:         "info",
		Message:       "search completed",
		Query:         req.Query,
		ExtractedTerm: term,
		Summary:       summary,
		Referer:       req.Referer,
		Outcome:       "success",
	})

	return result, nil
}

// extractTerm asks the provider for a concise search term. Any provider
// failure falls back to the raw query so retrieval still runs.
func (s *Service) extractTerm(ctx context.Context, req domain.SearchRequest) string {
	log := logger.FromContext(ctx)

	prompt := s.prompt(ctx, domain.PromptExtractTerm)

	callCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	raw, err := s.provider.Extract(callCtx, prompt, req.Query)
	if err != nil {
		log.Warn("term extraction failed, searching with raw query",
			zap.String("query", req.Query), zap.Error(err))
		metrics.PipelineDegradationsTotal.WithLabelValues("extract").Inc()
		s.audit.Event(ctx, domain.AuditEvent{
			Level:   "warning",
			Message: "term extraction failed: " + err.Error(),
			Query:   req.Query,
			Referer: req.Referer,
			Outcome: "degraded",
		})
		return req.Query
	}

	term := cleanTerm(raw)
	if term == "" {
		metrics.PipelineDegradationsTotal.WithLabelValues("extract").Inc()
		return req.Query
	}
	return term
}

// synthesize asks the provider to summarize the documents. Any failure
// yields an empty summary; the caller still gets the documents.
func (s *Service) synthesize(
	ctx context.Context, req domain.SearchRequest, term string,
	docs []domain.Document, key domain.PromptKey,
) string {
	log := logger.FromContext(ctx)

	payload, err := marshalPayload(req.Query, docs)
	if err != nil {
		log.Warn("payload serialization failed", zap.Error(err))
		metrics.PipelineDegradationsTotal.WithLabelValues("synthesize").Inc()
		return ""
	}

	prompt := s.prompt(ctx, key)

	callCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	summary, err := s.provider.Synthesize(callCtx, prompt, payload)
	if err != nil {
		log.Warn("summary synthesis failed, returning documents without summary",
			zap.String("query", req.Query), zap.Error(err))
		metrics.PipelineDegradationsTotal.WithLabelValues("synthesize").Inc()
		s.audit.Event(ctx, domain.AuditEvent{
			Level:         "warning",
			Message:       "summary synthesis failed: " + err.Error(),
			Query:         req.Query,
			ExtractedTerm: term,
			Referer:       req.Referer,
			Outcome:       "degraded",
		})
		return ""
	}

	return summary
}

// prompt resolves a prompt by key, falling back to the built-in default if
// the source is unavailable.
func (s *Service) prompt(ctx context.Context, key domain.PromptKey) string {
	text, err := s.prompts.Get(ctx, key)
	if err != nil {
		logger.FromContext(ctx).Warn("prompt lookup failed, using default",
			zap.String("key", string(key)), zap.Error(err))
		return domain.DefaultPrompt(key)
	}
	return text
}

// synthesisPayload is the JSON document handed to the provider for
// summarization.
type synthesisPayload struct {
	Query   string            `json:"query"`
	Results []payloadDocument `json:"results"`
}

type payloadDocument struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// marshalPayload serializes the query plus the documents that carry full
// content. Documents without content are listed in the response but are not
// part of the synthesis input.
func marshalPayload(query string, docs []domain.Document) (string, error) {
	payload := synthesisPayload{
		Query:   query,
		Results: make([]payloadDocument, 0, len(docs)),
	}
	for _, d := range docs {
		if !d.HasContent() {
			continue
		}
		payload.Results = append(payload.Results, payloadDocument{
			Title:   d.Title,
			Content: d.Content,
			URL:     d.URL,
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal synthesis payload: %w", err)
	}
	return string(raw), nil
}

// cleanTerm strips whitespace and wrapping quotes models tend to add.
func cleanTerm(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), `"'`)
}
