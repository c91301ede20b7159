// Package mcptools exposes processing and lookups as MCP tools over stdio.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dgallion1/tocpages/internal/apperr"
	"github.com/dgallion1/tocpages/internal/pipeline"
	"github.com/dgallion1/tocpages/internal/store"
)

// Processor converts a PDF into a stored document.
type Processor interface {
	Process(ctx context.Context, filename string, data []byte) (*pipeline.Result, error)
}

// Server wraps an MCP server with the document tools registered.
type Server struct {
	McpServer *server.MCPServer
	proc      Processor
	lookup    *store.Lookup
	log       *slog.Logger
}

type ProcessPDFRequest struct {
	Path string `json:"path"`
}

type DocumentRequest struct {
	PdfDir string `json:"pdf_dir"`
}

type SectionRequest struct {
	PdfDir  string `json:"pdf_dir"`
	Section string `json:"section"`
}

type PageRequest struct {
	PdfDir string `json:"pdf_dir"`
	Page   int    `json:"page"`
}

func New(proc Processor, lookup *store.Lookup, version string, log *slog.Logger) *Server {
	s := &Server{
		McpServer: server.NewMCPServer("tocpages", version,
			server.WithToolCapabilities(false)),
		proc:   proc,
		lookup: lookup,
		log:    log,
	}
	s.addTools()
	return s
}

// ServeStdio blocks serving MCP requests on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.McpServer)
}

func (s *Server) addTools() {
	s.McpServer.AddTool(mcp.NewTool("process_pdf",
		mcp.WithDescription("Render a local PDF into per-section page images and return the document directory and outline"),
		mcp.WithString("path", mcp.Description("Path to a PDF file readable by the server"), mcp.Required()),
	), mcp.NewTypedToolHandler(s.ProcessPDF))

	s.McpServer.AddTool(mcp.NewTool("list_sections",
		mcp.WithDescription("List the section directories of a processed document"),
		mcp.WithString("pdf_dir", mcp.Description("Document directory returned by process_pdf"), mcp.Required()),
	), mcp.NewTypedToolHandler(s.ListSections))

	s.McpServer.AddTool(mcp.NewTool("list_section_images",
		mcp.WithDescription("List image URIs of one section, ordered by page number"),
		mcp.WithString("pdf_dir", mcp.Description("Document directory returned by process_pdf"), mcp.Required()),
		mcp.WithString("section", mcp.Description("Section title; it is sanitized the same way as at processing time"), mcp.Required()),
	), mcp.NewTypedToolHandler(s.ListSectionImages))

	s.McpServer.AddTool(mcp.NewTool("find_page_image",
		mcp.WithDescription("Find the image URI and section of a 1-based page number"),
		mcp.WithString("pdf_dir", mcp.Description("Document directory returned by process_pdf"), mcp.Required()),
		mcp.WithNumber("page", mcp.Description("1-based page number"), mcp.Required()),
	), mcp.NewTypedToolHandler(s.FindPageImage))

	s.McpServer.AddTool(mcp.NewTool("list_document_images",
		mcp.WithDescription("List every image of a document, sorted by file name"),
		mcp.WithString("pdf_dir", mcp.Description("Document directory returned by process_pdf"), mcp.Required()),
	), mcp.NewTypedToolHandler(s.ListDocumentImages))
}

func (s *Server) ProcessPDF(ctx context.Context, _ mcp.CallToolRequest, args ProcessPDFRequest) (*mcp.CallToolResult, error) {
	if args.Path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	data, err := os.ReadFile(args.Path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", args.Path, err)), nil
	}
	res, err := s.proc.Process(ctx, filepath.Base(args.Path), data)
	if err != nil {
		return s.toolError("process_pdf", err), nil
	}
	return jsonResult(res)
}

func (s *Server) ListSections(_ context.Context, _ mcp.CallToolRequest, args DocumentRequest) (*mcp.CallToolResult, error) {
	sections, err := s.lookup.Sections(args.PdfDir)
	if err != nil {
		return s.toolError("list_sections", err), nil
	}
	return jsonResult(map[string]any{"pdf_directory": args.PdfDir, "sections": sections})
}

func (s *Server) ListSectionImages(_ context.Context, _ mcp.CallToolRequest, args SectionRequest) (*mcp.CallToolResult, error) {
	uris, err := s.lookup.SectionImages(args.PdfDir, args.Section)
	if err != nil {
		return s.toolError("list_section_images", err), nil
	}
	return jsonResult(map[string]any{"toc_section": args.Section, "images": uris})
}

func (s *Server) FindPageImage(_ context.Context, _ mcp.CallToolRequest, args PageRequest) (*mcp.CallToolResult, error) {
	ref, err := s.lookup.PageImage(args.PdfDir, args.Page)
	if err != nil {
		return s.toolError("find_page_image", err), nil
	}
	return jsonResult(map[string]any{"page": args.Page, "uri": ref.URI, "section": ref.Section})
}

func (s *Server) ListDocumentImages(_ context.Context, _ mcp.CallToolRequest, args DocumentRequest) (*mcp.CallToolResult, error) {
	refs, err := s.lookup.DocumentImages(args.PdfDir)
	if err != nil {
		return s.toolError("list_document_images", err), nil
	}
	return jsonResult(map[string]any{"pdf_directory": args.PdfDir, "images": refs})
}

// toolError reports failures in the tool result so the calling model sees
// them; only protocol problems are returned as Go errors.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	if apperr.KindOf(err) == apperr.KindProcessing {
		s.log.Error("tool failed", "tool", tool, "error", err)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", apperr.KindOf(err), apperr.Detail(err)))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
