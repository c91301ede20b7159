package store

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/dgallion1/tocpages/internal/apperr"
	"github.com/dgallion1/tocpages/internal/partition"
)

// DefaultURIPrefix is the path under which stored images are served.
const DefaultURIPrefix = "/images"

var pageFileRe = regexp.MustCompile(`^page_(\d+)\.[A-Za-z]+$`)

// imageExts are the extensions every lookup treats as page images.
var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

func isImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// PageRef locates one page image.
type PageRef struct {
	URI     string `json:"uri"`
	Section string `json:"section"`
}

// ImageRef is one entry of a document-wide listing.
type ImageRef struct {
	URI     string `json:"uri"`
	Section string `json:"section"`
	File    string `json:"file"`
}

// Lookup answers queries by walking the directory tree under base.
type Lookup struct {
	base      string
	uriPrefix string
}

// NewLookup creates a Lookup. An empty prefix means DefaultURIPrefix.
func NewLookup(base, uriPrefix string) *Lookup {
	if uriPrefix == "" {
		uriPrefix = DefaultURIPrefix
	}
	return &Lookup{base: base, uriPrefix: strings.TrimRight(uriPrefix, "/")}
}

// Sections lists the section directories of a document, sorted.
func (l *Lookup) Sections(rootID string) ([]string, error) {
	root, err := l.root(rootID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, apperr.Processing(err, "read document %s", rootID)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out, nil // ReadDir sorts by name
}

// SectionImages returns the URIs of a section's images ordered by page
// number. Names without a page number follow, sorted by name.
func (l *Lookup) SectionImages(rootID, section string) ([]string, error) {
	root, err := l.root(rootID)
	if err != nil {
		return nil, err
	}
	name := partition.SectionName(section)
	dir := filepath.Join(root, name)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("%s", l.sectionNotFound(rootID, name))
	}
	if err != nil {
		return nil, apperr.Processing(err, "read section %s", name)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && isImage(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, apperr.NoContent("no images in section %q of %q", name, rootID)
	}
	sortByPage(files)

	uris := make([]string, len(files))
	for i, f := range files {
		uris[i] = l.uri(rootID, name, f)
	}
	return uris, nil
}

// PageImage finds the first page_<n> image in lexical walk order.
func (l *Lookup) PageImage(rootID string, page int) (PageRef, error) {
	root, err := l.root(rootID)
	if err != nil {
		return PageRef{}, err
	}
	want := "page_" + strconv.Itoa(page)

	var found PageRef
	errFound := errors.New("found")
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isImage(d.Name()) {
			return nil
		}
		if strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())) != want {
			return nil
		}
		section := sectionOf(root, path)
		found = PageRef{URI: l.uri(rootID, section, d.Name()), Section: section}
		return errFound
	})
	if errors.Is(err, errFound) {
		return found, nil
	}
	if err != nil {
		return PageRef{}, apperr.Processing(err, "walk document %s", rootID)
	}
	return PageRef{}, apperr.NotFound("page %d not found in %q", page, rootID)
}

// DocumentImages lists every image of a document, sorted by file name and
// then section. The ordering is lexical: page_10 sorts before page_2.
func (l *Lookup) DocumentImages(rootID string) ([]ImageRef, error) {
	root, err := l.root(rootID)
	if err != nil {
		return nil, err
	}
	var refs []ImageRef
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isImage(d.Name()) {
			return nil
		}
		section := sectionOf(root, path)
		refs = append(refs, ImageRef{
			URI:     l.uri(rootID, section, d.Name()),
			Section: section,
			File:    d.Name(),
		})
		return nil
	})
	if err != nil {
		return nil, apperr.Processing(err, "walk document %s", rootID)
	}
	if len(refs) == 0 {
		return nil, apperr.NotFound("no images found for %q", rootID)
	}
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].File != refs[j].File {
			return refs[i].File < refs[j].File
		}
		return refs[i].Section < refs[j].Section
	})
	return refs, nil
}

// ImagePath resolves one stored image for serving.
func (l *Lookup) ImagePath(rootID, section, file string) (string, error) {
	root, err := l.root(rootID)
	if err != nil {
		return "", err
	}
	for _, seg := range []string{section, file} {
		if seg == "" || strings.HasPrefix(seg, ".") || strings.ContainsAny(seg, `/\`) {
			return "", apperr.InvalidInput("invalid path segment %q", seg)
		}
	}
	if !isImage(file) {
		return "", apperr.NotFound("image %s/%s not found", section, file)
	}
	path := filepath.Join(root, section, file)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", apperr.NotFound("image %s/%s not found", section, file)
	}
	return path, nil
}

// PathForURI maps a URI produced by this Lookup back to its file.
func (l *Lookup) PathForURI(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, l.uriPrefix+"/")
	if !ok {
		return "", apperr.InvalidInput("uri %q is outside %s", uri, l.uriPrefix)
	}
	segs := strings.Split(rest, "/")
	if len(segs) != 3 {
		return "", apperr.InvalidInput("uri %q does not name a section image", uri)
	}
	for i, s := range segs {
		u, err := url.PathUnescape(s)
		if err != nil {
			return "", apperr.InvalidInput("uri %q: %v", uri, err)
		}
		segs[i] = u
	}
	return l.ImagePath(segs[0], segs[1], segs[2])
}

func (l *Lookup) root(rootID string) (string, error) {
	root, err := rootPath(l.base, rootID)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", apperr.NotFound("document %q not found", rootID)
	}
	return root, nil
}

func (l *Lookup) sectionNotFound(rootID, name string) string {
	msg := fmt.Sprintf("section %q not found in %q", name, rootID)
	sections, err := l.Sections(rootID)
	if err != nil || len(sections) == 0 {
		return msg
	}
	matches := fuzzy.Find(name, sections)
	if len(matches) == 0 {
		return msg
	}
	var hints []string
	for i, m := range matches {
		if i == 3 {
			break
		}
		hints = append(hints, m.Str)
	}
	return msg + " (did you mean: " + strings.Join(hints, ", ") + ")"
}

func (l *Lookup) uri(rootID, section, file string) string {
	segs := []string{l.uriPrefix, url.PathEscape(rootID)}
	if section != "" {
		for _, s := range strings.Split(section, "/") {
			segs = append(segs, url.PathEscape(s))
		}
	}
	segs = append(segs, url.PathEscape(file))
	return strings.Join(segs, "/")
}

// sectionOf is the slash-separated directory of path relative to root.
func sectionOf(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// sortByPage orders page_<n> files numerically; other names follow by name.
func sortByPage(files []string) {
	num := func(name string) (int, bool) {
		m := pageFileRe.FindStringSubmatch(name)
		if m == nil {
			return 0, false
		}
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	sort.SliceStable(files, func(i, j int) bool {
		ni, oki := num(files[i])
		nj, okj := num(files[j])
		switch {
		case oki && okj:
			if ni != nj {
				return ni < nj
			}
			return files[i] < files[j]
		case oki != okj:
			return oki
		default:
			return files[i] < files[j]
		}
	})
}
