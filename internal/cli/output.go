package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/tocpages/internal/doctree"
	"github.com/dgallion1/tocpages/internal/parser"
	"github.com/dgallion1/tocpages/internal/pipeline"
	"github.com/dgallion1/tocpages/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, res *pipeline.Result) {
	header := fmt.Sprintf("%s %s\n%s %d  %s %d",
		dimStyle.Render("Directory:"), successStyle.Render(res.RootID),
		dimStyle.Render("Pages:"), res.PageCount,
		dimStyle.Render("Images:"), res.Written,
	)
	fmt.Fprintln(w, boxStyle.Render(header))
	printSections(w, res.Sections)
}

func printSections(w io.Writer, sections []doctree.Section) {
	for _, sec := range sections {
		span := fmt.Sprintf("pages %d-%d", sec.FirstPage, sec.LastPage)
		if sec.Empty() {
			span = warnStyle.Render("no pages")
		}
		fmt.Fprintf(w, "  %s %s\n", titleStyle.Render(sec.Name), dimStyle.Render(span))
	}
}

func printInfo(w io.Writer, info parser.Info) {
	title := info.Title
	if title == "" {
		title = dimStyle.Render("(untitled)")
	}
	fmt.Fprintf(w, "%s %s\n%s %d\n", dimStyle.Render("Title:"), title, dimStyle.Render("Pages:"), info.PageCount)
	if len(info.OutlineTitles) == 0 {
		fmt.Fprintln(w, warnStyle.Render("No outline; pages would go to \""+doctree.GeneralTitle+"\""))
		return
	}
	fmt.Fprintln(w, dimStyle.Render("Outline:"))
	for _, t := range info.OutlineTitles {
		fmt.Fprintf(w, "  %s\n", t)
	}
}

func printList(w io.Writer, heading string, items []string) {
	fmt.Fprintln(w, titleStyle.Render(heading))
	for _, it := range items {
		fmt.Fprintf(w, "  %s\n", it)
	}
}

func printImageRefs(w io.Writer, refs []store.ImageRef) {
	width := 0
	for _, r := range refs {
		width = max(width, len(r.Section))
	}
	for _, r := range refs {
		pad := strings.Repeat(" ", width-len(r.Section))
		fmt.Fprintf(w, "  %s%s  %s\n", titleStyle.Render(r.Section), pad, r.URI)
	}
}
