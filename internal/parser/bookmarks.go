package parser

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dgallion1/tocpages/internal/doctree"
)

// bookmarkOutline reads the outline through pdfcpu's bookmark API.
func bookmarkOutline(data []byte) ([]doctree.Entry, error) {
	conf := model.NewDefaultConfiguration()
	bms, err := api.Bookmarks(bytes.NewReader(data), conf)
	if errors.Is(err, api.ErrNoOutlines) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bookmarks: %w", err)
	}
	return normalize(flattenBookmarks(bms, 1, nil)), nil
}

// flattenBookmarks walks the bookmark tree depth-first in document order.
func flattenBookmarks(bms []pdfcpu.Bookmark, level int, out []rawEntry) []rawEntry {
	for _, bm := range bms {
		out = append(out, rawEntry{level: level, title: bm.Title, page: bm.PageFrom})
		out = flattenBookmarks(bm.Kids, level+1, out)
	}
	return out
}
