package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/dgallion1/tocpages/internal/doctree"
)

// fitzDocument renders pages with MuPDF through go-fitz.
type fitzDocument struct {
	doc  *fitz.Document
	data []byte
	opts Options
}

func openFitz(data []byte, opts Options) (*fitzDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &fitzDocument{doc: doc, data: data, opts: opts}, nil
}

// Outline returns the document outline, or the default outline when the
// document has none.
func (d *fitzDocument) Outline(ctx context.Context) ([]doctree.Entry, error) {
	var (
		entries []doctree.Entry
		err     error
	)
	if d.opts.OutlineSource == SourcePdfcpu {
		entries, err = bookmarkOutline(d.data)
	} else {
		entries, err = d.fitzOutline()
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return doctree.DefaultOutline(), nil
	}
	return entries, nil
}

func (d *fitzDocument) fitzOutline() ([]doctree.Entry, error) {
	toc, err := d.doc.ToC()
	if errors.Is(err, fitz.ErrLoadOutline) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read outline: %w", err)
	}
	raw := make([]rawEntry, 0, len(toc))
	for _, o := range toc {
		// fitz pages are 0-based, -1 when the entry has no destination.
		raw = append(raw, rawEntry{level: o.Level, title: o.Title, page: o.Page + 1})
	}
	return normalize(raw), nil
}

func (d *fitzDocument) PageCount() int {
	return d.doc.NumPage()
}

// Render rasterizes every page in document order.
func (d *fitzDocument) Render(ctx context.Context) ([]doctree.PageImage, error) {
	n := d.doc.NumPage()
	pages := make([]doctree.PageImage, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := d.doc.ImageDPI(i, d.opts.DPI)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		pages = append(pages, doctree.PageImage{Index: i, Image: img})
	}
	return pages, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
