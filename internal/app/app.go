// Package app wires configuration into the processing, lookup and analysis
// components shared by the server and the CLI.
package app

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/tocpages/internal/analysis"
	"github.com/dgallion1/tocpages/internal/config"
	"github.com/dgallion1/tocpages/internal/parser"
	"github.com/dgallion1/tocpages/internal/partition"
	"github.com/dgallion1/tocpages/internal/pipeline"
	"github.com/dgallion1/tocpages/internal/store"
)

// App holds the constructed components.
type App struct {
	Config    config.Config
	Log       *slog.Logger
	Registry  *store.Registry
	Lookup    *store.Lookup
	Processor *pipeline.Processor
	Analysis  *analysis.Client
}

// New validates cfg and builds every component. The base directory is
// created if missing.
func New(cfg config.Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg, err := store.NewRegistry(cfg.ImagesBaseDir, store.RootPolicy(cfg.RootPolicy))
	if err != nil {
		return nil, err
	}
	open, err := parser.NewOpener(parser.Options{
		OutlineSource: cfg.OutlineSource,
		DPI:           cfg.RenderDPI,
	})
	if err != nil {
		return nil, fmt.Errorf("pdf opener: %w", err)
	}
	opts := partition.Options{
		Policy: partition.Policy(cfg.PartitionPolicy),
		Order:  partition.Order(cfg.OutlineOrder),
	}
	writer := store.NewWriter(cfg.JPEGQuality, log)

	return &App{
		Config:    cfg,
		Log:       log,
		Registry:  reg,
		Lookup:    store.NewLookup(cfg.ImagesBaseDir, store.DefaultURIPrefix),
		Processor: pipeline.NewProcessor(reg, writer, open, opts, log),
		Analysis: analysis.NewClient(analysis.Options{
			APIKey:       cfg.GenerativeAPIKey,
			Model:        cfg.GenerativeModel,
			BaseURL:      cfg.GenerativeBaseURL,
			RPS:          cfg.AnalysisRPS,
			InlineImages: cfg.AnalysisInlineImages,
		}, analysis.NewLLMStats(0)),
	}, nil
}

// Close releases network resources.
func (a *App) Close() {
	a.Analysis.Close()
}
