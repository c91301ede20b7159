package api

import (
	"net/http"
	"strconv"

	"github.com/dgallion1/tocpages/internal/analysis"
	"github.com/dgallion1/tocpages/internal/apperr"
)

func (s *Server) handleCheckSection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pdfDir, section := q.Get("pdf_dir"), q.Get("toc_section")
	if pdfDir == "" || section == "" {
		s.writeError(w, r, apperr.InvalidInput("pdf_dir and toc_section are required"))
		return
	}
	uris, err := s.deps.Lookup.SectionImages(pdfDir, section)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	verdict, err := s.deps.Checker.Check(r.Context(), section, s.images(uris))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"toc_section":     section,
		"image_uris":      uris,
		"gemini_response": verdict.Raw,
		"verdict":         verdict.Text,
	})
}

func (s *Server) handleCheckPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pdfDir := q.Get("pdf_dir")
	page, err := strconv.Atoi(q.Get("page_number"))
	if pdfDir == "" || err != nil {
		s.writeError(w, r, apperr.InvalidInput("pdf_dir and an integer page_number are required"))
		return
	}
	ref, err := s.deps.Lookup.PageImage(pdfDir, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	verdict, err := s.deps.Checker.Check(r.Context(), analysis.PageScope(page), s.images([]string{ref.URI}))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page_number":     page,
		"image_uri":       ref.URI,
		"gemini_response": verdict.Raw,
		"verdict":         verdict.Text,
	})
}

func (s *Server) handleCheckDocument(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pdfDir := q.Get("pdf_dir")
	if pdfDir == "" {
		s.writeError(w, r, apperr.InvalidInput("pdf_dir is required"))
		return
	}
	refs, err := s.deps.Lookup.DocumentImages(pdfDir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	uris := make([]string, len(refs))
	for i, ref := range refs {
		uris[i] = ref.URI
	}
	verdict, err := s.deps.Checker.Check(r.Context(), analysis.ScopeDocument, s.images(uris))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if q.Get("format") == "html" {
		html, err := analysis.RenderHTML(verdict.Text)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pdf_directory":   pdfDir,
		"image_uris":      uris,
		"gemini_response": verdict.Raw,
		"verdict":         verdict.Text,
	})
}

// images pairs URIs with their files. Unresolvable URIs keep an empty path;
// they are only read when images are inlined.
func (s *Server) images(uris []string) []analysis.Image {
	out := make([]analysis.Image, len(uris))
	for i, uri := range uris {
		out[i].URI = uri
		if path, err := s.deps.Lookup.PathForURI(uri); err == nil {
			out[i].Path = path
		}
	}
	return out
}
