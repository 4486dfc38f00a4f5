package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/export"
	infraBQ "github.com/dvloznov/cost-dashboard/internal/infra/bigquery"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/dvloznov/cost-dashboard/internal/persist"
	"github.com/dvloznov/cost-dashboard/internal/rollup"
)

func parseProvider(e *env, s string) domain.Provider {
	p, err := domain.ParseProvider(s)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Error: invalid -provider")
	}
	return p
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath, profile := commonFlags(fs)
	providerName := fs.String("provider", "", "Declared provider: aws, azure, gcp or rackspace (required)")
	autoRoute := switchVar(fs, "auto-route", "Import files under the detected provider when it differs (default from config)")
	account := fs.String("account", "", "Account label for every file")
	fs.Parse(args)

	if *providerName == "" || fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cli import -provider NAME [-auto-route] FILE|gs://URI ...")
		os.Exit(1)
	}

	e := setup(*configPath, *profile)
	defer e.Close()

	provider := parseProvider(e, *providerName)
	opts := ingest.Options{AutoRoute: autoRoute.Or(e.cfg.Import.AutoRoute), Account: *account}

	summary, err := e.svc.ImportSources(e.ctx, provider, fs.Args(), os.ReadFile, opts)
	if summary != nil {
		fmt.Println(summary.String())
		for _, f := range summary.Failures {
			fmt.Printf("  failed: %s\n", f)
		}
	}
	if err != nil {
		var batchErr *ingest.BatchError
		if errors.As(err, &batchErr) && summary != nil && summary.FilesImported > 0 {
			os.Exit(2)
		}
		e.log.Fatal().Err(err).Msg("Import failed")
	}
}

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath, profile := commonFlags(fs)
	providerName := fs.String("provider", "unified", "Provider or unified")
	period := fs.String("period", "all", "all, year:YYYY, YYYY-MM or unknown")
	fallback := switchVar(fs, "fallback", "Fall back to all months when the month is missing (default from config)")
	format := fs.String("format", "json", "json or table")
	fs.Parse(args)

	e := setup(*configPath, *profile)
	defer e.Close()

	ds, err := e.svc.Dataset(parseProvider(e, *providerName), *period, fallback.Or(e.cfg.Import.FallbackToAll))
	if err != nil {
		e.log.Fatal().Err(err).Msg("Query failed")
	}
	if ds == nil {
		e.log.Fatal().Str("period", *period).Msg("No data for period")
	}

	switch *format {
	case "table":
		writeServiceTable(os.Stdout, ds)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ds); err != nil {
			e.log.Fatal().Err(err).Msg("Failed to write JSON")
		}
	default:
		e.log.Fatal().Str("format", *format).Msg("Error: -format must be json or table")
	}
}

func runRollup(args []string) {
	fs := flag.NewFlagSet("rollup", flag.ExitOnError)
	configPath, profile := commonFlags(fs)
	providerName := fs.String("provider", "unified", "Provider or unified")
	period := fs.String("period", "all", "all, year:YYYY, YYYY-MM or unknown")
	filter := fs.String("filter", "", "Product/app filter, or "+rollup.UntaggedFilter)
	groupBy := fs.String("group-by", "service", "service, account, productApp or tag")
	fallback := switchVar(fs, "fallback", "Fall back to all months when the month is missing (default from config)")
	fs.Parse(args)

	e := setup(*configPath, *profile)
	defer e.Close()

	by, err := rollup.ParseGroupBy(*groupBy)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Error: invalid -group-by")
	}

	res, ds, err := e.svc.Rollup(parseProvider(e, *providerName), *period, fallback.Or(e.cfg.Import.FallbackToAll),
		rollup.Query{FilterProductApp: *filter, GroupBy: by})
	if err != nil {
		e.log.Fatal().Err(err).Msg("Rollup failed")
	}
	if ds == nil {
		e.log.Fatal().Str("period", *period).Msg("No data for period")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "BUCKET\tCOST\tSHARE\tSERVICES")
	for _, b := range res.Buckets {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f%%\t%d\n", b.Key, b.Cost, b.Share, b.ServiceCount)
	}
	fmt.Fprintf(tw, "TOTAL\t%.2f\t\t%d\n", res.TotalCost, len(res.Services))
	tw.Flush()
}

func runTag(args []string) {
	fs := flag.NewFlagSet("tag", flag.ExitOnError)
	configPath, profile := commonFlags(fs)
	providerName := fs.String("provider", "", "Provider (required)")
	service := fs.String("service", "", "Service name (required)")
	detail := fs.String("detail", "", "Line item; tags the service when empty")
	productApp := fs.String("product-app", "", "Product/app to assign")
	tagList := fs.String("tags", "", "Comma-separated tags")
	clearEntry := fs.Bool("clear", false, "Remove the assignment")
	fs.Parse(args)

	if *providerName == "" || *service == "" {
		fmt.Fprintln(os.Stderr, "Usage: cli tag -provider NAME -service NAME [-detail NAME] (-product-app X -tags a,b | -clear)")
		os.Exit(1)
	}

	e := setup(*configPath, *profile)
	defer e.Close()

	provider := parseProvider(e, *providerName)
	if !provider.IsReal() {
		e.log.Fatal().Msg("Error: tags are assigned per provider, not in the unified view")
	}

	if ds, err := e.svc.Dataset(provider, "all", false); err == nil {
		if msg := missingTagTarget(ds, *service, *detail); msg != "" {
			e.log.Warn().Str("service", *service).Str("detail", *detail).Msg(msg)
		}
	}

	var entry domain.TagEntry
	if !*clearEntry {
		entry.ProductApp = *productApp
		if *tagList != "" {
			entry.Tags = strings.Split(*tagList, ",")
		}
	}

	var err error
	if *detail == "" {
		err = e.svc.SetServiceTag(e.ctx, provider, *service, entry)
	} else {
		err = e.svc.SetDetailTag(e.ctx, provider, *service, *detail, entry)
	}
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to save tags")
	}
	fmt.Println("Tags saved.")
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath, profile := commonFlags(fs)
	providerName := fs.String("provider", "unified", "Provider or unified")
	period := fs.String("period", "all", "all, year:YYYY, YYYY-MM or unknown")
	filter := fs.String("filter", "", "Product/app filter, or "+rollup.UntaggedFilter)
	out := fs.String("out", "", "CSV file to write (stdout when empty)")
	toBigQuery := fs.Bool("bigquery", false, "Write to the configured BigQuery table instead of CSV")
	fallback := switchVar(fs, "fallback", "Fall back to all months when the month is missing (default from config)")
	fs.Parse(args)

	e := setup(*configPath, *profile)
	defer e.Close()

	provider := parseProvider(e, *providerName)
	rows, err := e.svc.ExportRows(provider, *period, fallback.Or(e.cfg.Import.FallbackToAll), *filter)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to build export rows")
	}

	if *toBigQuery {
		if !e.cfg.BigQueryEnabled() {
			e.log.Fatal().Msg("Error: export.project_id is not configured")
		}
		repo, err := infraBQ.NewBigQueryCostRepository(e.ctx, infraBQ.TableRef{
			ProjectID: e.cfg.Export.ProjectID,
			DatasetID: e.cfg.Export.DatasetID,
			TableID:   e.cfg.Export.TableID,
		})
		if err != nil {
			e.log.Fatal().Err(err).Msg("Failed to initialize BigQuery repository")
		}
		defer repo.Close()

		res, err := export.NewBigQueryExport(repo).Export(e.ctx, string(provider), *period, rows)
		if err != nil {
			e.log.Fatal().Err(err).Msg("BigQuery export failed")
		}
		fmt.Printf("Exported %d row(s) as %s\n", res.Rows, res.ExportID)
		return
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			e.log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer f.Close()
		w = f
	}
	if err := export.WriteCSV(w, rows, export.WriteOptions{BOMPrefix: e.cfg.Export.BOMPrefix}); err != nil {
		e.log.Fatal().Err(err).Msg("Failed to write CSV")
	}
	if *out != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d row(s) to %s\n", len(rows), *out)
	}
}

func runProfiles(args []string) {
	fs := flag.NewFlagSet("profiles", flag.ExitOnError)
	configPath, profile := commonFlags(fs)
	fs.Parse(args)

	e := setup(*configPath, *profile)
	defer e.Close()

	lister, ok := e.kv.(persist.ProfileLister)
	if !ok {
		e.log.Fatal().Str("backend", e.cfg.Storage.Backend).Msg("Error: backend does not keep profiles")
	}
	profiles, err := lister.ListProfiles(e.ctx)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to list profiles")
	}
	for _, p := range profiles {
		marker := " "
		if p == e.cfg.Storage.Profile {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, p)
	}
}

func runClear(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath, profile := commonFlags(fs)
	providerName := fs.String("provider", "", "Provider, or unified for every provider (required)")
	fs.Parse(args)

	if *providerName == "" {
		fmt.Fprintln(os.Stderr, "Usage: cli clear -provider NAME")
		os.Exit(1)
	}

	e := setup(*configPath, *profile)
	defer e.Close()

	provider := parseProvider(e, *providerName)
	if err := e.svc.Clear(e.ctx, provider); err != nil {
		e.log.Fatal().Err(err).Msg("Failed to save state")
	}
	fmt.Printf("Cleared %s data.\n", provider.Label())
}
