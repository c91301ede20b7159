package store

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/tocpages/internal/apperr"
	"github.com/dgallion1/tocpages/internal/doctree"
	"github.com/dgallion1/tocpages/internal/partition"
)

func testPages(n int) []doctree.PageImage {
	pages := make([]doctree.PageImage, n)
	for i := range pages {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		img.Set(0, 0, color.RGBA{R: uint8(i), A: 255})
		pages[i] = doctree.PageImage{Index: i, Image: img}
	}
	return pages
}

// writeDocument runs the partition and writer for one outline under base.
func writeDocument(t *testing.T, reg *Registry, filename string, outline []doctree.Entry, pageCount int) doctree.Document {
	t.Helper()
	doc, err := reg.Allocate(filename)
	require.NoError(t, err)
	sections, err := partition.Partition(outline, pageCount, partition.DefaultOptions())
	require.NoError(t, err)
	placements := partition.Assign(sections, testPages(pageCount))
	n, err := NewWriter(0, nil).Write(context.Background(), doc, sections, placements)
	require.NoError(t, err)
	require.Equal(t, len(placements), n)
	return doc
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o640))
}

var paperOutline = []doctree.Entry{
	{Level: 1, Title: "Intro", StartPage: 1},
	{Level: 1, Title: "Methods", StartPage: 5},
	{Level: 1, Title: "Results", StartPage: 9},
}

func TestStem(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report"},
		{"dir/sub/report.v2.pdf", "reportv2"},
		{`C:\uploads\annual report.pdf`, "annual report"},
		{"***.pdf", "document"},
		{"", "document"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Stem(tt.in), "Stem(%q)", tt.in)
	}
}

func TestNewRegistry_RejectsUnknownPolicy(t *testing.T) {
	_, err := NewRegistry(t.TempDir(), "shared")
	assert.Error(t, err)
}

func TestRegistry_UniquePolicyNeverCollides(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), UniqueRoots)
	require.NoError(t, err)

	a, err := reg.Allocate("paper.pdf")
	require.NoError(t, err)
	b, err := reg.Allocate("paper.pdf")
	require.NoError(t, err)

	assert.NotEqual(t, a.RootID, b.RootID)
	assert.True(t, strings.HasSuffix(a.RootID, "_paper"))
	assert.DirExists(t, a.RootPath)
	assert.DirExists(t, b.RootPath)
}

func TestRegistry_StemPolicySharesRoot(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), StemRoots)
	require.NoError(t, err)

	a, err := reg.Allocate("paper.pdf")
	require.NoError(t, err)
	b, err := reg.Allocate("uploads/paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, "paper", a.RootID)
	assert.Equal(t, a, b)
}

func TestRegistry_StemPolicyResetRemovesStalePages(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), StemRoots)
	require.NoError(t, err)

	doc := writeDocument(t, reg, "paper.pdf", paperOutline, 12)
	release, err := reg.Acquire(context.Background(), doc)
	require.NoError(t, err)
	defer release()

	w := NewWriter(80, nil)
	require.NoError(t, w.Reset(doc))
	sections, err := partition.Partition(nil, 2, partition.DefaultOptions())
	require.NoError(t, err)
	_, err = w.Write(context.Background(), doc, sections, partition.Assign(sections, testPages(2)))
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(doc.RootPath, "Methods"))
	assert.FileExists(t, filepath.Join(doc.RootPath, "general", "page_2.jpg"))
}

func TestRegistry_ResolveRejectsTraversal(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), UniqueRoots)
	require.NoError(t, err)
	for _, id := range []string{"", ".", "..", "../etc", `a\b`, ".paper.lock"} {
		_, err := reg.Resolve(id)
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput), "Resolve(%q) = %v", id, err)
	}
	path, err := reg.Resolve("abc_paper")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reg.Base(), "abc_paper"), path)
}

func TestWriter_PaperLayout(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), StemRoots)
	require.NoError(t, err)
	doc := writeDocument(t, reg, "paper.pdf", paperOutline, 12)

	for section, pages := range map[string][]int{
		"Intro":   {1, 2, 3, 4},
		"Methods": {5, 6, 7, 8},
		"Results": {9, 10, 11, 12},
	} {
		for _, p := range pages {
			assert.FileExists(t, filepath.Join(doc.RootPath, section, PageFile(p)))
		}
	}
}

func TestWriter_CreatesEmptySectionDirectories(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), StemRoots)
	require.NoError(t, err)
	outline := []doctree.Entry{
		{Level: 1, Title: "Cover", StartPage: 1},
		{Level: 1, Title: "Appendix", StartPage: 40},
	}
	doc := writeDocument(t, reg, "short.pdf", outline, 3)

	assert.DirExists(t, filepath.Join(doc.RootPath, "Appendix"))
	entries, err := os.ReadDir(filepath.Join(doc.RootPath, "Appendix"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriter_NoTempFilesLeft(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), StemRoots)
	require.NoError(t, err)
	doc := writeDocument(t, reg, "paper.pdf", nil, 3)

	entries, err := os.ReadDir(filepath.Join(doc.RootPath, "general"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"page_1.jpg", "page_2.jpg", "page_3.jpg"}, names)
}

func TestWriter_RejectsMissingImage(t *testing.T) {
	reg, err := NewRegistry(t.TempDir(), StemRoots)
	require.NoError(t, err)
	doc, err := reg.Allocate("paper.pdf")
	require.NoError(t, err)

	sections := []doctree.Section{{RawTitle: "general", Name: "general", FirstPage: 1, LastPage: 1}}
	placements := []partition.Placement{{Section: "general", Page: 1}}
	_, err = NewWriter(0, nil).Write(context.Background(), doc, sections, placements)
	assert.True(t, apperr.Is(err, apperr.KindProcessing))
}

func TestLookup_SectionImagesNumericOrder(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base, StemRoots)
	require.NoError(t, err)
	outline := []doctree.Entry{{Level: 1, Title: "Body", StartPage: 1}}
	writeDocument(t, reg, "long.pdf", outline, 11)
	touch(t, filepath.Join(base, "long", "Body", "cover.png"))
	touch(t, filepath.Join(base, "long", "Body", "notes.txt"))

	uris, err := NewLookup(base, "").SectionImages("long", "Body")
	require.NoError(t, err)
	require.Len(t, uris, 12)
	assert.Equal(t, "/images/long/Body/page_1.jpg", uris[0])
	assert.Equal(t, "/images/long/Body/page_2.jpg", uris[1])
	assert.Equal(t, "/images/long/Body/page_11.jpg", uris[10])
	assert.Equal(t, "/images/long/Body/cover.png", uris[11])
}

func TestLookup_SectionImagesSanitizesQuery(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base, StemRoots)
	require.NoError(t, err)
	outline := []doctree.Entry{{Level: 1, Title: "1. Introduction!", StartPage: 1}}
	writeDocument(t, reg, "paper.pdf", outline, 1)

	uris, err := NewLookup(base, "").SectionImages("paper", "1. Introduction!")
	require.NoError(t, err)
	assert.Equal(t, []string{"/images/paper/1%20Introduction/page_1.jpg"}, uris)
}

func TestLookup_SectionImagesErrors(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base, StemRoots)
	require.NoError(t, err)
	outline := []doctree.Entry{
		{Level: 1, Title: "Methods", StartPage: 1},
		{Level: 1, Title: "Appendix", StartPage: 9},
	}
	writeDocument(t, reg, "paper.pdf", outline, 2)
	l := NewLookup(base, "")

	_, err = l.SectionImages("missing", "Methods")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = l.SectionImages("paper", "Method")
	require.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Contains(t, apperr.Detail(err), "did you mean: Methods")

	_, err = l.SectionImages("paper", "Appendix")
	assert.True(t, apperr.Is(err, apperr.KindNoContent))
}

func TestLookup_PageImageFindsSection(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base, StemRoots)
	require.NoError(t, err)
	writeDocument(t, reg, "paper.pdf", paperOutline, 12)
	l := NewLookup(base, "")

	ref, err := l.PageImage("paper", 5)
	require.NoError(t, err)
	assert.Equal(t, PageRef{URI: "/images/paper/Methods/page_5.jpg", Section: "Methods"}, ref)

	_, err = l.PageImage("paper", 13)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLookup_PageImageAcceptsAllImageExtensions(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "scan", "B", "page_3.txt"))
	touch(t, filepath.Join(base, "scan", "C", "page_3.PNG"))
	touch(t, filepath.Join(base, "scan", "D", "page_3.jpeg"))

	ref, err := NewLookup(base, "/files").PageImage("scan", 3)
	require.NoError(t, err)
	assert.Equal(t, "C", ref.Section)
	assert.Equal(t, "/files/scan/C/page_3.PNG", ref.URI)
}

func TestLookup_DocumentImagesLexicalOrder(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base, StemRoots)
	require.NoError(t, err)
	outline := []doctree.Entry{
		{Level: 1, Title: "A", StartPage: 1},
		{Level: 1, Title: "B", StartPage: 2},
	}
	writeDocument(t, reg, "doc.pdf", outline, 10)
	touch(t, filepath.Join(base, "doc", "A", "page_1.png"))

	refs, err := NewLookup(base, "").DocumentImages("doc")
	require.NoError(t, err)
	require.Len(t, refs, 11)

	var files []string
	for _, r := range refs {
		files = append(files, r.File)
	}
	assert.Equal(t, "page_1.jpg", files[0])
	assert.Equal(t, "page_1.png", files[1])
	assert.Equal(t, "page_10.jpg", files[2])
	assert.Equal(t, "page_2.jpg", files[3])
	assert.Equal(t, ImageRef{URI: "/images/doc/B/page_10.jpg", Section: "B", File: "page_10.jpg"}, refs[2])
}

func TestLookup_DocumentImagesEmptyRoot(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "empty", "general"), 0o750))

	_, err := NewLookup(base, "").DocumentImages("empty")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLookup_Sections(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base, StemRoots)
	require.NoError(t, err)
	writeDocument(t, reg, "paper.pdf", paperOutline, 12)

	got, err := NewLookup(base, "").Sections("paper")
	require.NoError(t, err)
	assert.Equal(t, []string{"Intro", "Methods", "Results"}, got)
}

func TestLookup_ImagePath(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base, StemRoots)
	require.NoError(t, err)
	doc := writeDocument(t, reg, "paper.pdf", paperOutline, 12)
	l := NewLookup(base, "")

	path, err := l.ImagePath("paper", "Methods", "page_5.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(doc.RootPath, "Methods", "page_5.jpg"), path)

	fromURI, err := l.PathForURI("/images/paper/Methods/page_5.jpg")
	require.NoError(t, err)
	assert.Equal(t, path, fromURI)
	_, err = l.PathForURI("/elsewhere/paper/Methods/page_5.jpg")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = l.ImagePath("paper", "..", "page_5.jpg")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	_, err = l.ImagePath("paper", "Methods", "page_50.jpg")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
