package analysis

import (
	"fmt"
	"strings"
)

// Scope labels for page and whole-document checks. Section checks use the
// section name.
const ScopeDocument = "Entire Document"

// PageScope labels a single-page check.
func PageScope(page int) string {
	return fmt.Sprintf("Page %d", page)
}

// BuildPrompt asks for figure numbering, table numbering and formatting
// checks over the listed images.
func BuildPrompt(scope string, uris []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Please analyze the '%s' section of the document for the following conditions:\n", scope)
	sb.WriteString("1. Verify if all figure numbers are sequential and unique.\n")
	sb.WriteString("2. Verify if all table numbers are sequential and unique.\n")
	sb.WriteString("3. Check if the section adheres to standard formatting guidelines.\n")
	sb.WriteString("Document Images: ")
	sb.WriteString(strings.Join(uris, ", "))
	return sb.String()
}
