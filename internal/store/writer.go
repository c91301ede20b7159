package store

import (
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/tocpages/internal/apperr"
	"github.com/dgallion1/tocpages/internal/doctree"
	"github.com/dgallion1/tocpages/internal/partition"
)

// DefaultJPEGQuality is used when a Writer is created with quality <= 0.
const DefaultJPEGQuality = 90

// Writer encodes placed pages as JPEG files inside a document root.
type Writer struct {
	quality int
	log     *slog.Logger
}

// NewWriter creates a Writer. Quality is clamped to the JPEG range 1..100.
func NewWriter(quality int, log *slog.Logger) *Writer {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	if quality > 100 {
		quality = 100
	}
	if log == nil {
		log = slog.Default()
	}
	return &Writer{quality: quality, log: log}
}

// PageFile is the file name of a 1-based page.
func PageFile(page int) string {
	return fmt.Sprintf("page_%d.jpg", page)
}

// Reset empties a document root and recreates it.
func (w *Writer) Reset(doc doctree.Document) error {
	if err := os.RemoveAll(doc.RootPath); err != nil {
		return apperr.Processing(err, "clean document root %s", doc.RootID)
	}
	if err := os.MkdirAll(doc.RootPath, dirMode); err != nil {
		return apperr.Processing(err, "create document root %s", doc.RootID)
	}
	return nil
}

// Write creates one directory per section, including sections that received
// no pages, then writes every placement. It returns the number of files
// written. Files already written stay on disk if a later write fails.
func (w *Writer) Write(ctx context.Context, doc doctree.Document, sections []doctree.Section, placements []partition.Placement) (int, error) {
	for _, sec := range sections {
		dir := filepath.Join(doc.RootPath, sec.Name)
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return 0, apperr.Processing(err, "create section directory %s", sec.Name)
		}
	}

	written := 0
	for _, p := range placements {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		path := filepath.Join(doc.RootPath, p.Section, PageFile(p.Page))
		if err := w.writeJPEG(path, p); err != nil {
			return written, apperr.Processing(err, "write page %d to %s", p.Page, p.Section)
		}
		written++
	}
	w.log.Debug("pages written", "root_id", doc.RootID, "sections", len(sections), "files", written)
	return written, nil
}

// writeJPEG encodes into a temp file in the target directory and renames it
// into place so readers never observe a partial image.
func (w *Writer) writeJPEG(path string, p partition.Placement) error {
	if p.Image.Image == nil {
		return fmt.Errorf("page %d has no image", p.Page)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".page-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after successful rename

	if err := jpeg.Encode(tmp, p.Image.Image, &jpeg.Options{Quality: w.quality}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
