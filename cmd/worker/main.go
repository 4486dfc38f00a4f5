package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/config"
	"github.com/dvloznov/cost-dashboard/internal/export"
	infraBQ "github.com/dvloznov/cost-dashboard/internal/infra/bigquery"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/dvloznov/cost-dashboard/internal/persist"
	"github.com/dvloznov/cost-dashboard/internal/pipeline"
	"github.com/robfig/cron"
)

func main() {
	configPath := flag.String("config", os.Getenv(config.FileEnvVar), "YAML config file")
	once := flag.Bool("once", false, "Run one export and exit")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
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

	if !cfg.BigQueryEnabled() {
		log.Fatal().Msg("Error: export.project_id is required for the export worker")
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	kv, err := persist.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open state backend")
	}
	defer kv.Close()

	repo, err := infraBQ.NewBigQueryCostRepository(ctx, infraBQ.TableRef{
		ProjectID: cfg.Export.ProjectID,
		DatasetID: cfg.Export.DatasetID,
		TableID:   cfg.Export.TableID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BigQuery repository")
	}
	defer repo.Close()

	exporter := &Exporter{
		KV:       kv,
		Sink:     export.NewBigQueryExport(repo),
		Fallback: cfg.Import.FallbackToAll,
		Now:      time.Now,
	}
	if cfg.Import.ChecksumSigner {
		exporter.LoadOptions = append(exporter.LoadOptions,
			pipeline.WithImporterOptions(ingest.WithSigner(ingest.NewChecksumSigner())))
	}

	if *once {
		if _, err := exporter.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("Export failed")
		}
		return
	}

	c := cron.New()
	err = c.AddFunc(cfg.Export.Schedule, func() {
		if _, err := exporter.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled export failed")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Export.Schedule).Msg("Invalid export schedule")
	}
	c.Start()

	log.Info().Str("schedule", cfg.Export.Schedule).Msg("Export worker started, waiting for schedule...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down export worker...")
	c.Stop()
	cancel()

	log.Info().Msg("Export worker exited")
}
