package domain

// Document is one retrieved content item. Content is HTML-stripped plain
// text; it is empty for results past the full-content cap, which carry
// title and URL only.
type Document struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url"`
}

// HasContent reports whether the document carries full text.
func (d Document) HasContent() bool {
	return d.Content != ""
}
