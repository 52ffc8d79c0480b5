package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	einoindexer "github.com/cloudwego/eino/components/indexer"

	"github.com/dgallion1/pdfingest/internal/api"
	"github.com/dgallion1/pdfingest/internal/app"
	"github.com/dgallion1/pdfingest/internal/config"
	"github.com/dgallion1/pdfingest/internal/indexer"
	"github.com/dgallion1/pdfingest/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		log.Error("create work dir", "error", err, "dir", cfg.WorkDir)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the extraction chain.
	components, err := app.Build(cfg, log)
	if err != nil {
		log.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	// Chunks stay on the job when no indexing service is configured.
	var idx einoindexer.Indexer
	if cfg.IndexerURL != "" {
		h, err := indexer.NewHTTPIndexer(cfg.Indexer())
		if err != nil {
			log.Error("build indexer", "error", err)
			os.Exit(1)
		}
		idx = h
		log.Info("indexing enabled", "url", cfg.IndexerURL, "index", cfg.IndexName)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg.Orchestrator(), components.Ingester, idx, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, components.OCRStats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		components.Close()
	}()

	log.Info("starting pdfingest", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
