package content

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/treyworks/sitesearch/internal/logger"

	"go.uber.org/zap"
)

// metaStore reads a document's metadata hash.
type metaStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// MetadataEnricher returns the built-in enricher that appends a document's
// custom-field metadata as "key: value" lines. Internal fields (keys
// starting with "_") and serialized blob values are never forwarded. A
// non-empty allow list restricts which keys are included.
func MetadataEnricher(s metaStore, keyPrefix string, allow []string) Enricher {
	allowed := make(map[string]struct{}, len(allow))
	for _, k := range allow {
		if k != "" {
			allowed[k] = struct{}{}
		}
	}

	return func(ctx context.Context, content string, docID int) string {
		key := fmt.Sprintf("%scontent:%d:meta", keyPrefix, docID)
		meta, err := s.HGetAll(ctx, key)
		if err != nil {
			// Enrichment is best-effort; the base content stands on its own.
			logger.FromContext(ctx).Warn("metadata enrichment failed",
				zap.Int("doc_id", docID), zap.Error(err))
			return content
		}
		if len(meta) == 0 {
			return content
		}

		keys := make([]string, 0, len(meta))
		for k := range meta {
			if strings.HasPrefix(k, "_") {
				continue
			}
			if len(allowed) > 0 {
				if _, ok := allowed[k]; !ok {
					continue
				}
			}
			if looksSerialized(meta[k]) {
				continue
			}
			keys = append(keys, k)
		}
		if len(keys) == 0 {
			return content
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString(content)
		b.WriteString("\n\nCustom Field Content:")
		for _, k := range keys {
			b.WriteString("\n")
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(StripTags(meta[k]))
		}
		return b.String()
	}
}

// looksSerialized detects opaque serialized payloads: PHP-serialized values
// (a:, O:, s:, i:, b:, d: prefixes followed by structure) and JSON
// containers. Scalar text passes through.
func looksSerialized(v string) bool {
	v = strings.TrimSpace(v)
	if len(v) < 2 {
		return false
	}

	// JSON object/array
	if (v[0] == '{' && v[len(v)-1] == '}') || (v[0] == '[' && v[len(v)-1] == ']') {
		return true
	}

	// PHP serialize() formats: a:3:{...}, O:8:"stdClass":..., s:5:"hello";
	if len(v) >= 4 && v[1] == ':' {
		switch v[0] {
		case 'a', 'O', 'C':
			return strings.Contains(v, ":{")
		case 's':
			return strings.HasSuffix(v, `";`)
		case 'i', 'b', 'd':
			return strings.HasSuffix(v, ";")
		}
	}
	if v == "N;" {
		return true
	}

	return false
}
