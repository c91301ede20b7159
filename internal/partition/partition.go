// Package partition turns a flat document outline into per-section page
// ranges and directory names.
package partition

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dgallion1/tocpages/internal/apperr"
	"github.com/dgallion1/tocpages/internal/doctree"
)

// Policy selects how pages are assigned to outline entries.
type Policy string

const (
	// Contiguous gives every entry all pages up to the next entry's start.
	Contiguous Policy = "contiguous"
	// SinglePage gives every entry only its own start page.
	SinglePage Policy = "single"
)

// Order selects what happens when start pages decrease along the outline.
type Order string

const (
	// Clamp empties out-of-order entries and keeps the rest contiguous.
	Clamp Order = "clamp"
	// Reject fails with InvalidInput on the first decreasing start page.
	Reject Order = "reject"
)

// Options controls Partition.
type Options struct {
	Policy Policy
	Order  Order
}

// DefaultOptions returns the contiguous, clamping configuration.
func DefaultOptions() Options {
	return Options{Policy: Contiguous, Order: Clamp}
}

// Placement is one page routed to one section directory.
type Placement struct {
	Section string
	Page    int // 1-based
	Image   doctree.PageImage
}

// Sanitize keeps letters, numbers, spaces, underscores and hyphens, then trims
// surrounding whitespace. Distinct titles may collapse to the same name.
func Sanitize(title string) string {
	var sb strings.Builder
	sb.Grow(len(title))
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '_' || r == '-' {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

// UntitledSection is the directory used for titles that sanitize to nothing.
const UntitledSection = "untitled"

// SectionName is the directory name for a title: Sanitize, with
// UntitledSection standing in for an empty result so pages never land
// directly under the document root.
func SectionName(title string) string {
	if name := Sanitize(title); name != "" {
		return name
	}
	return UntitledSection
}

// Partition computes one section per outline entry over pageCount rendered
// pages. An empty outline is replaced by the default "general" entry.
func Partition(outline []doctree.Entry, pageCount int, opts Options) ([]doctree.Section, error) {
	if len(outline) == 0 {
		outline = doctree.DefaultOutline()
	}
	if opts.Policy == "" {
		opts.Policy = Contiguous
	}
	if opts.Order == "" {
		opts.Order = Clamp
	}
	if pageCount < 0 {
		pageCount = 0
	}

	starts := make([]int, len(outline))
	for i, e := range outline {
		starts[i] = max(e.StartPage, 1)
	}

	// Offenders start before some earlier entry; they never own pages and
	// never cut an earlier entry's range.
	offender := make([]bool, len(outline))
	highest := 0
	for i, s := range starts {
		if s < highest {
			if opts.Order == Reject {
				return nil, apperr.InvalidInput(
					"outline entry %d (%q) starts at page %d, before an earlier entry at page %d",
					i, outline[i].Title, s, highest)
			}
			offender[i] = true
			continue
		}
		highest = s
	}

	sections := make([]doctree.Section, len(outline))
	for i, e := range outline {
		sec := doctree.Section{RawTitle: e.Title, Name: SectionName(e.Title)}
		switch {
		case offender[i]:
			sec.FirstPage, sec.LastPage = starts[i], starts[i]-1
		case opts.Policy == SinglePage:
			sec.FirstPage, sec.LastPage = starts[i], min(starts[i], pageCount)
		case opts.Policy == Contiguous:
			sec.FirstPage = starts[i]
			sec.LastPage = pageCount
			for j := i + 1; j < len(outline); j++ {
				if !offender[j] {
					sec.LastPage = min(starts[j]-1, pageCount)
					break
				}
			}
		default:
			return nil, fmt.Errorf("unknown partition policy %q", opts.Policy)
		}
		sections[i] = sec
	}
	return sections, nil
}

// Assign routes rendered pages to sections in outline order. Page numbers
// beyond the rendered sequence are skipped.
func Assign(sections []doctree.Section, pages []doctree.PageImage) []Placement {
	var out []Placement
	for _, sec := range sections {
		for p := sec.FirstPage; p <= sec.LastPage; p++ {
			idx := p - 1
			if idx < 0 || idx >= len(pages) {
				continue
			}
			out = append(out, Placement{Section: sec.Name, Page: p, Image: pages[idx]})
		}
	}
	return out
}
