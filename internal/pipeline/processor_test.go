package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/tocpages/internal/apperr"
	"github.com/dgallion1/tocpages/internal/config"
	"github.com/dgallion1/tocpages/internal/doctree"
	"github.com/dgallion1/tocpages/internal/parser"
	"github.com/dgallion1/tocpages/internal/partition"
	"github.com/dgallion1/tocpages/internal/store"
)

var pdfBytes = []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

type fakeDocument struct {
	outline   []doctree.Entry
	pages     int
	renderErr error
	closed    bool
}

func (d *fakeDocument) Outline(context.Context) ([]doctree.Entry, error) {
	if len(d.outline) == 0 {
		return doctree.DefaultOutline(), nil
	}
	return d.outline, nil
}

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) Render(context.Context) ([]doctree.PageImage, error) {
	if d.renderErr != nil {
		return nil, d.renderErr
	}
	out := make([]doctree.PageImage, d.pages)
	for i := range out {
		out[i] = doctree.PageImage{Index: i, Image: image.NewGray(image.Rect(0, 0, 2, 2))}
	}
	return out, nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

func fakeOpener(doc *fakeDocument) parser.Opener {
	return func([]byte) (parser.Document, error) { return doc, nil }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestProcessor(t *testing.T, policy store.RootPolicy, doc *fakeDocument, opts partition.Options) (*Processor, string) {
	t.Helper()
	base := t.TempDir()
	reg, err := store.NewRegistry(base, policy)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewProcessor(reg, store.NewWriter(0, nil), fakeOpener(doc), opts, discardLogger()), base
}

func TestProcess_PartitionsBySection(t *testing.T) {
	doc := &fakeDocument{
		pages: 12,
		outline: []doctree.Entry{
			{Level: 1, Title: "Intro", StartPage: 1},
			{Level: 1, Title: "Methods", StartPage: 5},
			{Level: 1, Title: "Results", StartPage: 9},
		},
	}
	proc, base := newTestProcessor(t, store.StemRoots, doc, partition.DefaultOptions())

	res, err := proc.Process(context.Background(), "paper.pdf", pdfBytes)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.RootID != "paper" {
		t.Errorf("expected root paper, got %q", res.RootID)
	}
	if res.Written != 12 || res.PageCount != 12 {
		t.Errorf("expected 12 pages written, got %d of %d", res.Written, res.PageCount)
	}
	if !doc.closed {
		t.Error("expected document to be closed")
	}
	for _, f := range []string{"Intro/page_4.jpg", "Methods/page_5.jpg", "Results/page_12.jpg"} {
		if _, err := os.Stat(filepath.Join(base, "paper", f)); err != nil {
			t.Errorf("expected %s: %v", f, err)
		}
	}

	ref, err := store.NewLookup(base, "").PageImage(res.RootID, 5)
	if err != nil {
		t.Fatalf("PageImage: %v", err)
	}
	if ref.Section != "Methods" {
		t.Errorf("expected page 5 in Methods, got %q", ref.Section)
	}
}

func TestProcess_EmptyOutlineUsesGeneral(t *testing.T) {
	proc, base := newTestProcessor(t, store.UniqueRoots, &fakeDocument{pages: 3}, partition.DefaultOptions())

	res, err := proc.Process(context.Background(), "scan.pdf", pdfBytes)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for p := 1; p <= 3; p++ {
		path := filepath.Join(base, res.RootID, "general", store.PageFile(p))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s: %v", path, err)
		}
	}
	if len(res.Outline) != 1 || res.Outline[0].Title != doctree.GeneralTitle {
		t.Errorf("expected default outline, got %+v", res.Outline)
	}
}

func TestProcess_RejectsNonPDF(t *testing.T) {
	proc, base := newTestProcessor(t, store.UniqueRoots, &fakeDocument{pages: 1}, partition.DefaultOptions())

	tests := []struct {
		name     string
		filename string
		data     []byte
		kind     apperr.Kind
	}{
		{"empty", "a.pdf", nil, apperr.KindInvalidInput},
		{"pdf extension on text", "notes.pdf", []byte("just text"), apperr.KindUnsupportedMedia},
		{"wrong content", "a.pdf", []byte("just text"), apperr.KindUnsupportedMedia},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := proc.Process(context.Background(), tt.filename, tt.data)
			if !apperr.Is(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}

	entries, _ := os.ReadDir(base)
	if len(entries) != 0 {
		t.Errorf("expected no roots allocated, got %d", len(entries))
	}
}

func TestProcess_SniffsContentNotExtension(t *testing.T) {
	proc, _ := newTestProcessor(t, store.UniqueRoots, &fakeDocument{pages: 2}, partition.DefaultOptions())

	res, err := proc.Process(context.Background(), "scan", pdfBytes)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Written != 2 {
		t.Errorf("expected 2 images, got %d", res.Written)
	}
}

func TestProcess_RenderFailure(t *testing.T) {
	doc := &fakeDocument{pages: 2, renderErr: errors.New("corrupt xref")}
	proc, _ := newTestProcessor(t, store.UniqueRoots, doc, partition.DefaultOptions())

	_, err := proc.Process(context.Background(), "bad.pdf", pdfBytes)
	if !apperr.Is(err, apperr.KindProcessing) {
		t.Errorf("expected processing error, got %v", err)
	}
}

func TestProcess_RejectOrder(t *testing.T) {
	doc := &fakeDocument{
		pages: 6,
		outline: []doctree.Entry{
			{Level: 1, Title: "B", StartPage: 4},
			{Level: 1, Title: "A", StartPage: 2},
		},
	}
	opts := partition.Options{Policy: partition.Contiguous, Order: partition.Reject}
	proc, _ := newTestProcessor(t, store.UniqueRoots, doc, opts)

	_, err := proc.Process(context.Background(), "odd.pdf", pdfBytes)
	if !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestProcess_StemPolicyReplacesPreviousUpload(t *testing.T) {
	doc := &fakeDocument{pages: 4, outline: []doctree.Entry{{Level: 1, Title: "Old", StartPage: 1}}}
	proc, base := newTestProcessor(t, store.StemRoots, doc, partition.DefaultOptions())

	if _, err := proc.Process(context.Background(), "paper.pdf", pdfBytes); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	doc.outline = []doctree.Entry{{Level: 1, Title: "New", StartPage: 1}}
	doc.pages = 2
	if _, err := proc.Process(context.Background(), "paper.pdf", pdfBytes); err != nil {
		t.Fatalf("second Process: %v", err)
	}

	if _, err := os.Stat(filepath.Join(base, "paper", "Old")); !os.IsNotExist(err) {
		t.Errorf("expected stale section to be removed, stat err = %v", err)
	}
	refs, err := store.NewLookup(base, "").DocumentImages("paper")
	if err != nil {
		t.Fatalf("DocumentImages: %v", err)
	}
	if len(refs) != 2 {
		t.Errorf("expected 2 images after rewrite, got %d", len(refs))
	}
}

func TestOrchestrator_RunsSubmittedJob(t *testing.T) {
	proc, _ := newTestProcessor(t, store.UniqueRoots, &fakeDocument{pages: 2}, partition.DefaultOptions())
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 4, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, proc, discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	job, err := o.Submit("scan.pdf", pdfBytes)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if o.GetJob(job.ID).Snapshot().Status.Done() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	snap := o.GetJob(job.ID).Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (%s)", snap.Status, snap.Error)
	}
	if snap.Result.Written != 2 {
		t.Errorf("expected 2 images, got %d", snap.Result.Written)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	proc, _ := newTestProcessor(t, store.UniqueRoots, &fakeDocument{pages: 1}, partition.DefaultOptions())
	cfg := config.Config{WorkerCount: 0, MaxQueueSize: 1, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, proc, discardLogger())

	if _, err := o.Submit("a.pdf", pdfBytes); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	job, err := o.Submit("b.pdf", pdfBytes)
	if err == nil {
		t.Fatal("expected queue full error")
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", job.Snapshot().Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	proc, _ := newTestProcessor(t, store.UniqueRoots, &fakeDocument{pages: 1}, partition.DefaultOptions())
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 2, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, proc, discardLogger())
	o.Start(context.Background())
	o.Stop()
	o.Stop()

	job, err := o.Submit("late.pdf", pdfBytes)
	if err == nil {
		t.Fatal("expected error submitting to a stopped orchestrator")
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected failed job, got %q", job.Snapshot().Status)
	}
}
