// Package content implements the retrieval gateway over the site's
// full-text content index.
package content

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/treyworks/sitesearch/internal/db"
	"github.com/treyworks/sitesearch/internal/domain"
)

// Field names of a content hash in the index.
const (
	fieldTitle  = "title"
	fieldBody   = "body"
	fieldURL    = "url"
	fieldStatus = "status"
	fieldType   = "type"
)

const statusPublished = "publish"

// store is the consumer interface for content retrieval (ISP).
type store interface {
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// Enricher appends related structured text to a document's content before it
// is sent onward. Enrichers run in registration order on full-content
// results only.
type Enricher func(ctx context.Context, content string, docID int) string

// Repo implements the content search gateway.
type Repo struct {
	store      store
	keyPrefix  string
	maxContent int
	maxResults int
	enrichers  []Enricher
}

// New creates a content repository. maxContent caps how many leading results
// carry full text; maxResults bounds the result list overall.
func New(s store, keyPrefix string, maxContent, maxResults int) *Repo {
	return &Repo{
		store:      s,
		keyPrefix:  keyPrefix,
		maxContent: maxContent,
		maxResults: maxResults,
	}
}

// WithEnrichers registers content enrichers, replacing any prior set.
func (r *Repo) WithEnrichers(enrichers ...Enricher) *Repo {
	r.enrichers = enrichers
	return r
}

// Search retrieves published documents matching term within the given post
// types. A non-empty scopeIDs list bypasses text matching entirely and
// returns exactly those documents, in scope order.
func (r *Repo) Search(
	ctx context.Context, term string, postTypes []string, scopeIDs []int,
) ([]domain.Document, error) {
	if len(scopeIDs) > 0 {
		return r.fetchScoped(ctx, scopeIDs)
	}

	q := &db.TextQuery{
		IndexName:    r.keyPrefix + "content:idx",
		Query:        term,
		Fields:       []string{fieldTitle, fieldBody},
		Filter:       buildFilter(postTypes),
		Limit:        r.maxResults,
		ReturnFields: []string{fieldTitle, fieldBody, fieldURL},
	}

	sr, err := r.store.SearchText(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("content search %q: %w", term, err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	docs := make([]domain.Document, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id, ok := r.idFromKey(entry.Key)
		if !ok {
			continue
		}
		docs = append(docs, r.buildDocument(ctx, id, entry.Fields, len(docs) < r.maxContent))
	}
	return docs, nil
}

// fetchScoped returns exactly the requested documents, published only,
// preserving scope order. The search term is deliberately ignored.
func (r *Repo) fetchScoped(ctx context.Context, scopeIDs []int) ([]domain.Document, error) {
	keys := make([]string, len(scopeIDs))
	for i, id := range scopeIDs {
		keys[i] = r.contentKey(id)
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("content fetch by id: %w", err)
	}

	var docs []domain.Document
	for i, fields := range hashes {
		// Missing keys come back as empty maps.
		if len(fields) == 0 || fields[fieldStatus] != statusPublished {
			continue
		}
		docs = append(docs, r.buildDocument(ctx, scopeIDs[i], fields, len(docs) < r.maxContent))
	}
	return docs, nil
}

// buildDocument maps hash fields onto a Document. Full-content documents get
// their body HTML-stripped and run through the enricher chain.
func (r *Repo) buildDocument(
	ctx context.Context, id int, fields map[string]string, fullContent bool,
) domain.Document {
	doc := domain.Document{
		ID:    id,
		Title: fields[fieldTitle],
		URL:   fields[fieldURL],
	}
	if !fullContent {
		return doc
	}

	content := StripTags(fields[fieldBody])
	for _, enrich := range r.enrichers {
		content = enrich(ctx, content, id)
	}
	doc.Content = content
	return doc
}

func (r *Repo) contentKey(id int) string {
	return fmt.Sprintf("%scontent:%d", r.keyPrefix, id)
}

func (r *Repo) idFromKey(key string) (int, bool) {
	raw := strings.TrimPrefix(key, r.keyPrefix+"content:")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// buildFilter builds the FT.SEARCH pre-filter restricting results to
// published documents of the configured post types.
func buildFilter(postTypes []string) string {
	filter := fmt.Sprintf("@%s:{%s}", fieldStatus, statusPublished)
	if len(postTypes) > 0 {
		filter += fmt.Sprintf(" @%s:{%s}", fieldType, strings.Join(postTypes, "|"))
	}
	return filter
}
