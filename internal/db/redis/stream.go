package redis

import (
	"context"
	"strconv"

	"github.com/treyworks/sitesearch/internal/db"
)

// StreamAppend adds an entry to a stream, trimming it to roughly maxLen
// entries (XADD MAXLEN ~). maxLen <= 0 leaves the stream uncapped.
func (s *Store) StreamAppend(ctx context.Context, key string, maxLen int64, fields map[string]string) error {
	cmd := s.b().Arbitrary("XADD").Keys(key)
	if maxLen > 0 {
		cmd = cmd.Args("MAXLEN", "~", strconv.FormatInt(maxLen, 10))
	}
	args := []string{"*"}
	for k, v := range fields {
		args = append(args, k, v)
	}

	if err := s.do(ctx, cmd.Args(args...).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpXAdd, Err: err}
	}
	return nil
}
