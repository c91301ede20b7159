package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/tocpages/internal/analysis"
	"github.com/dgallion1/tocpages/internal/apperr"
	"github.com/dgallion1/tocpages/internal/config"
	"github.com/dgallion1/tocpages/internal/pipeline"
	"github.com/dgallion1/tocpages/internal/store"
)

// Processor converts an uploaded PDF synchronously.
type Processor interface {
	Process(ctx context.Context, filename string, data []byte) (*pipeline.Result, error)
}

// JobQueue accepts uploads for background processing.
type JobQueue interface {
	Submit(filename string, data []byte) (*pipeline.Job, error)
	GetJob(id string) *pipeline.Job
}

// Checker runs the generative numbering check.
type Checker interface {
	Check(ctx context.Context, scope string, images []analysis.Image) (*analysis.Verdict, error)
}

// Deps are the collaborators behind the routes. Jobs may be nil, which
// disables ?async=true.
type Deps struct {
	Processor Processor
	Jobs      JobQueue
	Lookup    *store.Lookup
	Checker   Checker
	Stats     *analysis.LLMStats
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	deps   Deps
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		deps: deps,
		log:  log,
		cfg:  cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Route("/images", func(r chi.Router) {
		r.Get("/toc/{pdfDir}/{section}", s.handleSectionImages)
		r.Get("/page/{pdfDir}/{page}", s.handlePageImage)
		r.Get("/document/{pdfDir}", s.handleDocumentImages)
		r.Get("/sections/{pdfDir}", s.handleSections)
		r.Get("/{pdfDir}/{folder}/{image}", s.handleServeImage)
	})

	// Authenticated when API_KEY is set.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/process-pdf", s.handleProcessPDF)
		r.Post("/process-pdf/", s.handleProcessPDF)
		r.Get("/jobs/{jobID}", s.handleJobStatus)

		r.Post("/check-condition/toc/", s.handleCheckSection)
		r.Post("/check-condition/page/", s.handleCheckPage)
		r.Post("/check-condition/document/", s.handleCheckDocument)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeError maps a typed error onto its status and logs server-side
// failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, code, map[string]string{
		"error": apperr.Detail(err),
		"kind":  string(apperr.KindOf(err)),
	})
}
