package pipeline

import (
	"context"

	"github.com/treyworks/sitesearch/internal/domain"
)

// Provider generates text via an LLM backend.
type Provider interface {
	Extract(ctx context.Context, systemPrompt, userText string) (string, error)
	Synthesize(ctx context.Context, systemPrompt, payload string) (string, error)
}

// ContentSearcher retrieves published documents matching a search term.
// A non-empty scopeIDs list bypasses text matching.
type ContentSearcher interface {
	Search(ctx context.Context, term string, postTypes []string, scopeIDs []int) ([]domain.Document, error)
}

// PromptSource resolves pipeline prompts, with stored overrides taking
// precedence over defaults.
type PromptSource interface {
	Get(ctx context.Context, key domain.PromptKey) (string, error)
}

// Auditor records pipeline events. Implementations must not fail the
// pipeline on persistence errors.
type Auditor interface {
	Event(ctx context.Context, ev domain.AuditEvent)
}
