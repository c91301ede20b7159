package doctree

import (
	"encoding/json"
	"fmt"
	"image"
)

// GeneralTitle names the section used when a document has no outline.
const GeneralTitle = "general"

// Entry is one outline (TOC) item.
type Entry struct {
	Level     int    // Nesting depth, informational only
	Title     string // Raw title as found in the document
	StartPage int    // First page of the entry, 1-based
}

// MarshalJSON encodes an entry as a [level, title, page] triple.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Level, e.Title, e.StartPage})
}

// UnmarshalJSON decodes a [level, title, page] triple.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("outline entry: expected 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Level); err != nil {
		return fmt.Errorf("outline entry level: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.Title); err != nil {
		return fmt.Errorf("outline entry title: %w", err)
	}
	if err := json.Unmarshal(raw[2], &e.StartPage); err != nil {
		return fmt.Errorf("outline entry page: %w", err)
	}
	return nil
}

// DefaultOutline is the synthetic outline for documents without one.
func DefaultOutline() []Entry {
	return []Entry{{Level: 1, Title: GeneralTitle, StartPage: 1}}
}

// PageImage is one rendered page.
type PageImage struct {
	Index int // 0-based position in the rendered sequence
	Image image.Image
}

// Section is an outline entry resolved to a directory name and page range.
type Section struct {
	RawTitle  string `json:"title"`
	Name      string `json:"name"`
	FirstPage int    `json:"first_page"` // inclusive, 1-based
	LastPage  int    `json:"last_page"`  // inclusive, 1-based
}

// Empty reports whether the section covers no pages.
func (s Section) Empty() bool {
	return s.FirstPage > s.LastPage
}

// Pages returns the number of pages in the range.
func (s Section) Pages() int {
	if s.Empty() {
		return 0
	}
	return s.LastPage - s.FirstPage + 1
}

// Document is the on-disk root of one processed upload.
type Document struct {
	RootID   string
	RootPath string
}
