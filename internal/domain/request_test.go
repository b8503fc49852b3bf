package domain

import (
	"errors"
	"testing"
)

func TestNewSearchRequest_TrimsAndValidates(t *testing.T) {
	req, err := NewSearchRequest("  business hours  ", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Query != "business hours" {
		t.Errorf("query: got %q", req.Query)
	}
	if req.Referer != "unknown" {
		t.Errorf("referer default: got %q", req.Referer)
	}
	if req.Scoped() {
		t.Error("request without scope IDs reported as scoped")
	}
}

func TestNewSearchRequest_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		if _, err := NewSearchRequest(q, nil, ""); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("query %q: got err %v, want ErrInvalidQuery", q, err)
		}
	}
}

func TestParseScopeIDs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []int
	}{
		{"plain", "5,7,9", []int{5, 7, 9}},
		{"spaces", " 5 , 7 ", []int{5, 7}},
		{"drops junk", "5,abc,-3,0,9", []int{5, 9}},
		{"all junk", "abc,-1", nil},
		{"empty", "", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseScopeIDs(tc.raw)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestDefaultPrompt(t *testing.T) {
	for _, key := range []PromptKey{PromptExtractTerm, PromptSummarize, PromptAnswer} {
		if !key.Valid() {
			t.Errorf("key %q should be valid", key)
		}
		if DefaultPrompt(key) == "" {
			t.Errorf("key %q has no default prompt", key)
		}
	}
	if PromptKey("bogus").Valid() {
		t.Error("bogus key reported valid")
	}
	if DefaultPrompt(PromptKey("bogus")) != "" {
		t.Error("bogus key returned a prompt")
	}
}

func TestPipelineResult_NoResults(t *testing.T) {
	empty := PipelineResult{Query: "q"}
	if !empty.NoResults() {
		t.Error("empty result should report NoResults")
	}

	withDocs := PipelineResult{Documents: []Document{{ID: 1, Title: "t", URL: "u"}}}
	if withDocs.NoResults() {
		t.Error("result with documents should not report NoResults")
	}

	withSummary := PipelineResult{Summary: "text"}
	if withSummary.NoResults() {
		t.Error("result with summary should not report NoResults")
	}
}
