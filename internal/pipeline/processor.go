package pipeline

import (
	"context"
	"log/slog"

	"github.com/dgallion1/tocpages/internal/apperr"
	"github.com/dgallion1/tocpages/internal/doctree"
	"github.com/dgallion1/tocpages/internal/parser"
	"github.com/dgallion1/tocpages/internal/partition"
	"github.com/dgallion1/tocpages/internal/store"
)

// Result describes one processed document.
type Result struct {
	RootID      string            `json:"pdf_directory"`
	Outline     []doctree.Entry   `json:"toc"`
	Sections    []doctree.Section `json:"sections"`
	PageCount   int               `json:"page_count"`
	Written     int               `json:"images_written"`
	ContentHash string            `json:"content_hash"`
}

// Processor turns one uploaded PDF into a section-partitioned image tree.
type Processor struct {
	registry *store.Registry
	writer   *store.Writer
	open     parser.Opener
	opts     partition.Options
	log      *slog.Logger
}

func NewProcessor(registry *store.Registry, writer *store.Writer, open parser.Opener, opts partition.Options, log *slog.Logger) *Processor {
	return &Processor{
		registry: registry,
		writer:   writer,
		open:     open,
		opts:     opts,
		log:      log,
	}
}

// Process runs a document through rasterization, partitioning and writing.
func (p *Processor) Process(ctx context.Context, filename string, data []byte) (*Result, error) {
	return p.run(ctx, filename, data, func(JobStatus) {})
}

// run reports each phase change through phase before entering it.
func (p *Processor) run(ctx context.Context, filename string, data []byte, phase func(JobStatus)) (*Result, error) {
	log := p.log.With("filename", filename)

	if len(data) == 0 {
		return nil, apperr.InvalidInput("empty upload")
	}
	if !parser.IsPDF(data) {
		return nil, apperr.UnsupportedMedia("only PDF files are accepted")
	}

	phase(StatusRasterizing)
	doc, err := p.open(data)
	if err != nil {
		return nil, apperr.Processing(err, "open pdf")
	}
	defer doc.Close()

	outline, err := doc.Outline(ctx)
	if err != nil {
		return nil, apperr.Processing(err, "read outline")
	}
	pages, err := doc.Render(ctx)
	if err != nil {
		return nil, apperr.Processing(err, "rasterize")
	}
	log.Info("rasterized document", "pages", len(pages), "outline_entries", len(outline))

	phase(StatusPartitioning)
	sections, err := partition.Partition(outline, len(pages), p.opts)
	if err != nil {
		return nil, err
	}
	placements := partition.Assign(sections, pages)

	phase(StatusWriting)
	root, err := p.registry.Allocate(filename)
	if err != nil {
		return nil, err
	}
	release, err := p.registry.Acquire(ctx, root)
	if err != nil {
		return nil, err
	}
	defer release()

	if p.registry.Policy() == store.StemRoots {
		if err := p.writer.Reset(root); err != nil {
			return nil, err
		}
	}
	written, err := p.writer.Write(ctx, root, sections, placements)
	if err != nil {
		log.Error("write failed", "root_id", root.RootID, "written", written, "error", err)
		return nil, err
	}

	log.Info("document processed", "root_id", root.RootID, "sections", len(sections), "images", written)
	return &Result{
		RootID:      root.RootID,
		Outline:     outline,
		Sections:    sections,
		PageCount:   len(pages),
		Written:     written,
		ContentHash: ContentHashHex(data),
	}, nil
}
