package parser

import (
	"bytes"
	"fmt"

	pdflib "github.com/ledongthuc/pdf"
)

// Info is document metadata read without rendering.
type Info struct {
	Title         string   `json:"title,omitempty"`
	PageCount     int      `json:"page_count"`
	OutlineTitles []string `json:"outline_titles,omitempty"` // top-level only
}

// Inspect reads page count, /Info title and top-level outline titles.
func Inspect(data []byte) (Info, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, fmt.Errorf("read pdf: %w", err)
	}

	info := Info{PageCount: reader.NumPage()}
	if title := reader.Trailer().Key("Info").Key("Title"); !title.IsNull() {
		info.Title = title.Text()
	}
	for _, o := range reader.Outline().Child {
		if o.Title != "" {
			info.OutlineTitles = append(info.OutlineTitles, o.Title)
		}
	}
	return info, nil
}
