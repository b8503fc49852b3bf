// Package prompt resolves the pipeline's system prompts: operator overrides
// stored in the database, built-in defaults otherwise.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/treyworks/sitesearch/internal/db"
	"github.com/treyworks/sitesearch/internal/domain"
)

// store is the consumer interface for prompt overrides (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo reads prompt overrides fresh per request. Requests are low-frequency;
// no caching.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a prompt repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// Get returns the prompt text for a key: the operator override if one has
// been saved and is non-blank, else the built-in default.
func (r *Repo) Get(ctx context.Context, key domain.PromptKey) (string, error) {
	if !key.Valid() {
		return "", fmt.Errorf("unknown prompt key %q", key)
	}

	data, err := r.store.Get(ctx, r.promptKey(key))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.DefaultPrompt(key), nil
		}
		return "", fmt.Errorf("get prompt %s: %w", key, err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return domain.DefaultPrompt(key), nil
	}
	return text, nil
}

// SetOverride saves an operator override. Used by config bootstrap; the
// settings UI writes the same keys out-of-band.
func (r *Repo) SetOverride(ctx context.Context, key domain.PromptKey, text string) error {
	if !key.Valid() {
		return fmt.Errorf("unknown prompt key %q", key)
	}
	if err := r.store.Set(ctx, r.promptKey(key), []byte(text)); err != nil {
		return fmt.Errorf("set prompt %s: %w", key, err)
	}
	return nil
}

func (r *Repo) promptKey(key domain.PromptKey) string {
	return r.keyPrefix + "prompt:" + string(key)
}
