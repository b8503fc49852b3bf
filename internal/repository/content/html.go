package content

import (
	"html"
	"strings"
	"unicode"
)

// StripTags removes HTML markup from s, decodes entities, and collapses
// runs of whitespace. Script and style elements are dropped wholesale.
func StripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return collapseWhitespace(html.UnescapeString(s))
	}

	var b strings.Builder
	b.Grow(len(s))

	skipUntil := "" // closing tag of a dropped element, e.g. "</script"
	inTag := false
	tagStart := 0

	lower := strings.ToLower(s)
	for i := 0; i < len(s); i++ {
		if skipUntil != "" {
			if strings.HasPrefix(lower[i:], skipUntil) {
				if end := strings.IndexByte(s[i:], '>'); end >= 0 {
					i += end
					skipUntil = ""
					continue
				}
				return collapseWhitespace(html.UnescapeString(b.String()))
			}
			continue
		}

		switch {
		case s[i] == '<':
			inTag = true
			tagStart = i
		case s[i] == '>' && inTag:
			inTag = false
			tag := lower[tagStart:i]
			if strings.HasPrefix(tag, "<script") {
				skipUntil = "</script"
			} else if strings.HasPrefix(tag, "<style") {
				skipUntil = "</style"
			}
			// Block-level boundaries become whitespace so words don't fuse.
			b.WriteByte(' ')
		case !inTag:
			b.WriteByte(s[i])
		}
	}

	return collapseWhitespace(html.UnescapeString(b.String()))
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
