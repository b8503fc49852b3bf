package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/treyworks/sitesearch/internal/domain"
)

type mockStore struct {
	appended []map[string]string
	lastKey  string
	lastMax  int64
	err      error
}

func (m *mockStore) StreamAppend(_ context.Context, key string, maxLen int64, fields map[string]string) error {
	m.lastKey = key
	m.lastMax = maxLen
	if m.err != nil {
		return m.err
	}
	m.appended = append(m.appended, fields)
	return nil
}

func TestLog_PersistsWhenEnabled(t *testing.T) {
	store := &mockStore{}
	repo := New(store, "sitesearch:audit", 1000, true, zap.NewNop())

	repo.Log(context.Background(), "Search complete: hours", "info", map[string]string{"referer": "https://example.com/"})

	if len(store.appended) != 1 {
		t.Fatalf("expected 1 appended entry, got %d", len(store.appended))
	}
	entry := store.appended[0]
	if entry["log_level"] != "info" {
		t.Errorf("log_level: got %q", entry["log_level"])
	}
	if entry["message"] != "Search complete: hours" {
		t.Errorf("message: got %q", entry["message"])
	}
	if entry["context"] == "" {
		t.Error("context json missing")
	}
	if store.lastKey != "sitesearch:audit" || store.lastMax != 1000 {
		t.Errorf("stream key/maxlen: got %q/%d", store.lastKey, store.lastMax)
	}
}

func TestLog_SkipsStoreWhenDisabled(t *testing.T) {
	store := &mockStore{}
	repo := New(store, "sitesearch:audit", 1000, false, zap.NewNop())

	repo.Log(context.Background(), "msg", "error", nil)

	if len(store.appended) != 0 {
		t.Fatalf("disabled repo wrote %d entries", len(store.appended))
	}
}

func TestLog_AppendFailureIsSwallowed(t *testing.T) {
	store := &mockStore{err: errors.New("stream full")}
	repo := New(store, "sitesearch:audit", 1000, true, zap.NewNop())

	// Must not panic or propagate.
	repo.Log(context.Background(), "msg", "info", nil)
}

func TestEvent_CarriesPipelineFields(t *testing.T) {
	store := &mockStore{}
	repo := New(store, "sitesearch:audit", 0, true, zap.NewNop())

	repo.Event(context.Background(), domain.AuditEvent{
		Level:         "info",
		Message:       "Search complete: business hours",
		Query:         "business hours",
		ExtractedTerm: "hours",
		Summary:       "Open 9-5.",
		Referer:       "https://example.com/contact",
		Outcome:       "ok",
	})

	if len(store.appended) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.appended))
	}
	ctxJSON := store.appended[0]["context"]
	for _, want := range []string{"business hours", "hours", "Open 9-5.", "https://example.com/contact", "ok"} {
		if !strings.Contains(ctxJSON, want) {
			t.Errorf("context json missing %q: %s", want, ctxJSON)
		}
	}
}
