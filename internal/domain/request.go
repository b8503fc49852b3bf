package domain

import (
	"strconv"
	"strings"
)

// SearchRequest is one inbound pipeline invocation.
type SearchRequest struct {
	Query    string
	ScopeIDs []int
	Referer  string
}

// NewSearchRequest validates and builds a pipeline request.
// The query must be non-empty after trimming.
func NewSearchRequest(query string, scopeIDs []int, referer string) (SearchRequest, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchRequest{}, ErrInvalidQuery
	}
	if referer == "" {
		referer = "unknown"
	}
	return SearchRequest{Query: query, ScopeIDs: scopeIDs, Referer: referer}, nil
}

// Scoped reports whether retrieval is restricted to explicit document IDs.
func (r SearchRequest) Scoped() bool {
	return len(r.ScopeIDs) > 0
}

// ParseScopeIDs parses a comma-separated ID list ("5,7,9") into positive
// integers, dropping anything non-numeric or non-positive. Returns nil when
// nothing survives, so callers can treat the result as "no scoping".
func ParseScopeIDs(raw string) []int {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
