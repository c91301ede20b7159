package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/tocpages/internal/apperr"
)

func (s *Server) handleSectionImages(w http.ResponseWriter, r *http.Request) {
	section := chi.URLParam(r, "section")
	uris, err := s.deps.Lookup.SectionImages(chi.URLParam(r, "pdfDir"), section)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"toc_section": section,
		"images":      uris,
	})
}

func (s *Server) handlePageImage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		s.writeError(w, r, apperr.InvalidInput("page must be an integer"))
		return
	}
	ref, err := s.deps.Lookup.PageImage(chi.URLParam(r, "pdfDir"), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":    page,
		"uri":     ref.URI,
		"section": ref.Section,
	})
}

func (s *Server) handleDocumentImages(w http.ResponseWriter, r *http.Request) {
	pdfDir := chi.URLParam(r, "pdfDir")
	refs, err := s.deps.Lookup.DocumentImages(pdfDir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	uris := make([]string, len(refs))
	for i, ref := range refs {
		uris[i] = ref.URI
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pdf_directory": pdfDir,
		"images":        uris,
	})
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	pdfDir := chi.URLParam(r, "pdfDir")
	sections, err := s.deps.Lookup.Sections(pdfDir)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sections == nil {
		sections = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pdf_directory": pdfDir,
		"sections":      sections,
	})
}

func (s *Server) handleServeImage(w http.ResponseWriter, r *http.Request) {
	path, err := s.deps.Lookup.ImagePath(
		chi.URLParam(r, "pdfDir"),
		chi.URLParam(r, "folder"),
		chi.URLParam(r, "image"),
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.ServeFile(w, r, path)
}
