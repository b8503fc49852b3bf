package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/treyworks/sitesearch/internal/db"
	"github.com/treyworks/sitesearch/internal/domain"
)

type mockStore struct {
	data   map[string][]byte
	getErr error
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) Set(_ context.Context, key string, value []byte) error {
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = value
	return nil
}

func TestGet_DefaultWhenUnset(t *testing.T) {
	repo := New(&mockStore{}, "sitesearch:")

	got, err := repo.Get(context.Background(), domain.PromptExtractTerm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.DefaultPrompt(domain.PromptExtractTerm) {
		t.Error("expected built-in default prompt")
	}
}

func TestGet_Override(t *testing.T) {
	store := &mockStore{data: map[string][]byte{
		"sitesearch:prompt:summarize": []byte("Summarize briefly."),
	}}
	repo := New(store, "sitesearch:")

	got, err := repo.Get(context.Background(), domain.PromptSummarize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Summarize briefly." {
		t.Errorf("got %q, want override", got)
	}
}

func TestGet_BlankOverrideFallsBack(t *testing.T) {
	store := &mockStore{data: map[string][]byte{
		"sitesearch:prompt:answer": []byte("   \n"),
	}}
	repo := New(store, "sitesearch:")

	got, err := repo.Get(context.Background(), domain.PromptAnswer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.DefaultPrompt(domain.PromptAnswer) {
		t.Error("blank override should fall back to default")
	}
}

func TestGet_UnknownKey(t *testing.T) {
	repo := New(&mockStore{}, "sitesearch:")

	if _, err := repo.Get(context.Background(), domain.PromptKey("bogus")); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestGet_StoreError(t *testing.T) {
	repo := New(&mockStore{getErr: errors.New("conn refused")}, "sitesearch:")

	if _, err := repo.Get(context.Background(), domain.PromptSummarize); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestSetOverride_RoundTrip(t *testing.T) {
	store := &mockStore{}
	repo := New(store, "sitesearch:")

	if err := repo.SetOverride(context.Background(), domain.PromptExtractTerm, "Extract it."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.Get(context.Background(), domain.PromptExtractTerm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Extract it." {
		t.Errorf("got %q", got)
	}
}
