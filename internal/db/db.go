package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces (ISP).
type Store interface {
	Pinger
	HashStore
	KVStore
	Searcher
	StreamStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based read operations over content records.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// TextQuery describes a full-text FT.SEARCH over the content index.
// Query is the raw user term (escaped by the store); Fields are the TEXT
// fields to match; Filter is a pre-built tag filter prepended verbatim.
type TextQuery struct {
	IndexName    string
	Query        string
	Fields       []string
	Filter       string
	Limit        int
	ReturnFields []string
}

// SearchEntry is one FT.SEARCH hit.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult is a parsed FT.SEARCH reply.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchText(ctx context.Context, q *TextQuery) (*SearchResult, error)
}

// StreamStore appends entries to a capped stream (audit trail).
type StreamStore interface {
	StreamAppend(ctx context.Context, key string, maxLen int64, fields map[string]string) error
}
