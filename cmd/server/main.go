package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/tocpages/internal/api"
	"github.com/dgallion1/tocpages/internal/app"
	"github.com/dgallion1/tocpages/internal/config"
	"github.com/dgallion1/tocpages/internal/pipeline"
	"github.com/dgallion1/tocpages/internal/version"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := pipeline.NewOrchestrator(cfg, a.Processor, log)
	orch.Start(ctx)

	srv := api.NewServer(api.Deps{
		Processor: a.Processor,
		Jobs:      orch,
		Lookup:    a.Lookup,
		Checker:   a.Analysis,
		Stats:     a.Analysis.Stats(),
	}, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // synchronous renders of large PDFs
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()

		a.Close()
	}()

	log.Info("starting tocpages",
		"port", cfg.Port,
		"version", version.Version,
		"images_base_dir", cfg.ImagesBaseDir,
		"root_policy", cfg.RootPolicy,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
