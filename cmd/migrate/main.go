package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/cost-dashboard/internal/config"
	"github.com/dvloznov/cost-dashboard/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv(config.FileEnvVar), "YAML config file")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir := flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewFromConfig(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	// Validate required settings
	if !cfg.BigQueryEnabled() {
		log.Fatal().Msg("Error: export.project_id is required. Please specify your GCP project ID.")
	}

	ctx := logger.WithContext(context.Background(), log)

	// Create BigQuery client
	client, err := bigquery.NewClient(ctx, cfg.Export.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	target := Target{
		ProjectID: cfg.Export.ProjectID,
		DatasetID: cfg.Export.DatasetID,
		TableID:   cfg.Export.TableID,
	}
	log.Info().
		Str("project", target.ProjectID).
		Str("dataset", target.DatasetID).
		Msg("Connected to BigQuery")

	dir, err := findMigrationsDir(*migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to locate migrations")
	}
	migrations, err := LoadMigrations(dir, target)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	runner := &Runner{DB: &bigQueryDB{client: client}, Target: target, AppliedBy: *appliedBy}
	applied, err := runner.Apply(ctx, migrations)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Successfully applied migrations")
	}
}

// findMigrationsDir resolves dir from the working directory, falling back to
// the repository root when run from cmd/migrate.
func findMigrationsDir(dir string) (string, error) {
	for _, candidate := range []string{dir, "../../" + dir} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("migrations directory not found: %s", dir)
}
