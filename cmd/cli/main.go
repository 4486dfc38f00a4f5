package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dvloznov/cost-dashboard/internal/config"
	"github.com/dvloznov/cost-dashboard/internal/gcsuploader"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/dvloznov/cost-dashboard/internal/persist"
	"github.com/dvloznov/cost-dashboard/internal/pipeline"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		runImport(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	case "rollup":
		runRollup(os.Args[2:])
	case "tag":
		runTag(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "profiles":
		runProfiles(os.Args[2:])
	case "clear":
		runClear(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Cost Dashboard CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import    Import billing CSV files (local paths or gs:// URIs)")
	fmt.Println("  query     Print a provider's dataset for a period as JSON")
	fmt.Println("  rollup    Print a filtered, grouped cost breakdown")
	fmt.Println("  tag       Set or clear a product/app and tags on a service or line item")
	fmt.Println("  export    Write the export rows to a CSV file or BigQuery")
	fmt.Println("  profiles  List the profiles kept in the remote state bucket")
	fmt.Println("  clear     Remove a provider's imported data")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
	fmt.Println("\nSettings come from COSTDASH_* variables and the YAML file in COSTDASH_CONFIG.")
}

// env is what every command needs once flags are parsed.
type env struct {
	ctx context.Context
	cfg *config.Config
	log zerolog.Logger
	kv  persist.Backend
	svc *pipeline.Service

	closers []func() error
}

func (e *env) Close() {
	for _, c := range e.closers {
		if err := c(); err != nil {
			e.log.Error().Err(err).Msg("Failed to close client")
		}
	}
}

// commonFlags registers the flags shared by every command.
func commonFlags(fs *flag.FlagSet) (configPath, profile *string) {
	configPath = fs.String("config", os.Getenv(config.FileEnvVar), "YAML config file")
	profile = fs.String("profile", "", "State profile (overrides storage.profile)")
	return configPath, profile
}

func setup(configPath, profile string) *env {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if profile != "" {
		cfg.Storage.Profile = profile
	}

	// Logs go to stderr so command output can be piped.
	log, err := logger.NewFromConfig(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	ctx := logger.WithContext(context.Background(), log)

	kv, err := persist.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to open state backend")
	}

	var svcOpts []pipeline.Option
	if cfg.Import.ChecksumSigner {
		svcOpts = append(svcOpts, pipeline.WithImporterOptions(ingest.WithSigner(ingest.NewChecksumSigner())))
	}
	var closers []func() error
	if storage, err := gcsuploader.NewGCSStorageService(ctx); err == nil {
		svcOpts = append(svcOpts, pipeline.WithStorage(storage))
		closers = append(closers, storage.Close)
	} else {
		log.Debug().Err(err).Msg("Cloud Storage unavailable - gs:// imports disabled")
	}

	svc, err := pipeline.Load(ctx, kv, svcOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load state")
	}

	closers = append(closers, kv.Close)
	return &env{ctx: ctx, cfg: cfg, log: log, kv: kv, svc: svc, closers: closers}
}
