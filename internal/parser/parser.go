package parser

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dgallion1/tocpages/internal/doctree"
)

// Outline sources.
const (
	SourceFitz   = "fitz"
	SourcePdfcpu = "pdfcpu"
)

// Document is an opened PDF: its outline and its rendered pages.
type Document interface {
	Outline(ctx context.Context) ([]doctree.Entry, error)
	PageCount() int
	Render(ctx context.Context) ([]doctree.PageImage, error)
	Close() error
}

// Opener opens raw PDF bytes as a Document.
type Opener func(data []byte) (Document, error)

// Options controls how documents are opened.
type Options struct {
	OutlineSource string  // SourceFitz or SourcePdfcpu
	DPI           float64 // Render resolution
}

// NewOpener returns an Opener backed by go-fitz for rendering.
func NewOpener(opts Options) (Opener, error) {
	if opts.DPI <= 0 {
		opts.DPI = 150
	}
	switch opts.OutlineSource {
	case "", SourceFitz, SourcePdfcpu:
	default:
		return nil, fmt.Errorf("unsupported outline source: %s", opts.OutlineSource)
	}
	return func(data []byte) (Document, error) {
		doc, err := openFitz(data, opts)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}, nil
}

// IsPDF sniffs data for the PDF signature.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is("application/pdf")
}

// rawEntry is an outline item as reported by a backend, before page
// resolution. A page below 1 means the entry has no usable destination.
type rawEntry struct {
	level int
	title string
	page  int // 1-based
}

// normalize converts backend entries to outline entries. Entries without a
// destination inherit the previous entry's start page (1 for the first).
func normalize(raw []rawEntry) []doctree.Entry {
	if len(raw) == 0 {
		return nil
	}
	out := make([]doctree.Entry, 0, len(raw))
	prev := 1
	for _, r := range raw {
		page := r.page
		if page < 1 {
			page = prev
		}
		level := r.level
		if level < 1 {
			level = 1
		}
		out = append(out, doctree.Entry{Level: level, Title: r.title, StartPage: page})
		prev = page
	}
	return out
}
