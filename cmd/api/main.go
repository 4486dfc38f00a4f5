package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/api"
	"github.com/dvloznov/cost-dashboard/internal/config"
	"github.com/dvloznov/cost-dashboard/internal/gcsuploader"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/dvloznov/cost-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/dvloznov/cost-dashboard/internal/metrics"
	"github.com/dvloznov/cost-dashboard/internal/persist"
	"github.com/dvloznov/cost-dashboard/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewFromConfig(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithContext(context.Background(), log)

	// Open the state backend and load saved state
	kv, err := persist.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to open state backend")
	}
	defer kv.Close()

	m := metrics.New()

	importerOpts := []ingest.Option{ingest.WithRecorder(m)}
	if cfg.Import.ChecksumSigner {
		importerOpts = append(importerOpts, ingest.WithSigner(ingest.NewChecksumSigner()))
	}
	svcOpts := []pipeline.Option{
		pipeline.WithSaveObserver(m),
		pipeline.WithImporterOptions(importerOpts...),
	}
	if storage, err := gcsuploader.NewGCSStorageService(ctx); err != nil {
		log.Warn().Err(err).Msg("Cloud Storage unavailable - gs:// imports disabled")
	} else {
		defer storage.Close()
		svcOpts = append(svcOpts, pipeline.WithStorage(storage))
	}

	svc, err := pipeline.Load(ctx, kv, svcOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load state")
	}
	log.Info().
		Str("backend", cfg.Storage.Backend).
		Int("providers", len(svc.Providers())).
		Msg("State loaded")

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, cfg.Server.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.Server.Workers).Msg("Starting import workers")
	if err := jobQueue.Start(workerCtx, pipeline.ImportJobHandler(svc, m)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start import workers")
	}

	handler := api.NewRouter(api.Deps{
		Service:        svc,
		Publisher:      jobQueue,
		Jobs:           jobStore,
		Metrics:        m.Handler(),
		Log:            log,
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AutoRoute:      cfg.Import.AutoRoute,
		FallbackToAll:  cfg.Import.FallbackToAll,
		BOMPrefix:      cfg.Export.BOMPrefix,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight imports
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	// Flush state once more before exit
	if err := svc.Save(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to save state on shutdown")
	}

	log.Info().Msg("Server exited")
}
