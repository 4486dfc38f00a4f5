package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/config"
	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/dvloznov/cost-dashboard/internal/notionsync"
	"github.com/dvloznov/cost-dashboard/internal/persist"
	"github.com/dvloznov/cost-dashboard/internal/pipeline"
	"github.com/dvloznov/cost-dashboard/internal/rollup"
)

func main() {
	// Parse CLI flags
	configPath := flag.String("config", os.Getenv(config.FileEnvVar), "YAML config file")
	providerName := flag.String("provider", "unified", "Provider or unified")
	period := flag.String("period", "", "all, year:YYYY, YYYY-MM or unknown (default: current month)")
	groupBy := flag.String("group-by", "productApp", "service, account, productApp or tag")
	filter := flag.String("filter", "", "Product/app filter, or "+rollup.UntaggedFilter)
	notionToken := flag.String("notion-token", "", "Notion API token (overrides notion.token)")
	notionDBID := flag.String("notion-db-id", "", "Notion database ID (overrides notion.database_id)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *notionToken != "" {
		cfg.Notion.Token = *notionToken
	}
	if *notionDBID != "" {
		cfg.Notion.DatabaseID = *notionDBID
	}

	// Initialize structured logger
	log, err := logger.NewFromConfig(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	// Validate required settings
	if !cfg.NotionEnabled() {
		log.Fatal().Msg("Error: a Notion token and database ID are required")
	}
	provider, err := domain.ParseProvider(*providerName)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid -provider")
	}
	by, err := rollup.ParseGroupBy(*groupBy)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid -group-by")
	}
	if *period == "" {
		*period = time.Now().UTC().Format("2006-01")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	kv, err := persist.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open state backend")
	}
	defer kv.Close()

	var svcOpts []pipeline.Option
	if cfg.Import.ChecksumSigner {
		svcOpts = append(svcOpts, pipeline.WithImporterOptions(ingest.WithSigner(ingest.NewChecksumSigner())))
	}
	svc, err := pipeline.Load(ctx, kv, svcOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load state")
	}

	res, ds, err := svc.Rollup(provider, *period, cfg.Import.FallbackToAll, rollup.Query{FilterProductApp: *filter, GroupBy: by})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build rollup")
	}
	if ds == nil {
		log.Fatal().Str("period", *period).Msg("No data for period")
	}

	log.Info().
		Str("provider", string(provider)).
		Str("period", *period).
		Str("group_by", string(by)).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	// Initialize Notion client
	notionClient := notionsync.NewNotionClient(cfg.Notion.Token)

	stats, err := notionsync.PublishRollup(ctx, notionClient, cfg.Notion.DatabaseID, res, *period, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		stats.Created, stats.Updated, stats.Archived, stats.Failed)
}
