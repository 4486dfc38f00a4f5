package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"google.golang.org/api/iterator"
)

// Migration is one versioned SQL file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// Target names the dataset and export table the placeholders resolve to.
type Target struct {
	ProjectID string
	DatasetID string
	TableID   string
}

func (t Target) render(sql string) string {
	return strings.NewReplacer(
		"{{PROJECT_ID}}", t.ProjectID,
		"{{DATASET_ID}}", t.DatasetID,
		"{{TABLE_ID}}", t.TableID,
	).Replace(sql)
}

// migrationPattern matches 0001_name.sql.
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// ParseMigrationName splits a migration filename into version and name.
func ParseMigrationName(filename string) (int, string, bool) {
	m := migrationPattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return version, m[2], true
}

// LoadMigrations reads every migration in dir, sorted by version. The
// checksum covers the file before placeholders are filled in.
func LoadMigrations(dir string, target Target) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadMigrations: reading directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		version, name, ok := ParseMigrationName(file.Name())
		if !ok {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("LoadMigrations: reading %s: %w", file.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: file.Name(),
			SQL:      target.render(string(content)),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// DB runs migration statements and tracks applied versions.
type DB interface {
	Exec(ctx context.Context, sql string, params ...bigquery.QueryParameter) error
	AppliedVersions(ctx context.Context, table string) (map[int]bool, error)
}

// Runner applies pending migrations in order.
type Runner struct {
	DB        DB
	Target    Target
	AppliedBy string
}

func (r *Runner) historyTable() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", r.Target.ProjectID, r.Target.DatasetID)
}

// Apply runs every migration whose version is not yet recorded and returns
// how many ran. It stops at the first failure.
func (r *Runner) Apply(ctx context.Context, migrations []Migration) (int, error) {
	log := logger.FromContext(ctx)

	createHistory := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, r.historyTable())
	if err := r.DB.Exec(ctx, createHistory); err != nil {
		return 0, fmt.Errorf("Apply: ensuring schema_migrations: %w", err)
	}

	applied, err := r.DB.AppliedVersions(ctx, r.historyTable())
	if err != nil {
		return 0, fmt.Errorf("Apply: reading applied migrations: %w", err)
	}

	count := 0
	for _, m := range migrations {
		mlog := log.With().Int("version", m.Version).Str("name", m.Name).Logger()
		if applied[m.Version] {
			mlog.Debug().Msg("Migration already applied")
			continue
		}

		mlog.Info().Msg("Applying migration")
		if err := r.DB.Exec(ctx, m.SQL); err != nil {
			return count, fmt.Errorf("Apply: %04d_%s: %w", m.Version, m.Name, err)
		}

		record := fmt.Sprintf(`
			INSERT INTO %s
			(version, name, applied_at, checksum, applied_by)
			VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
		`, r.historyTable())
		err := r.DB.Exec(ctx, record,
			bigquery.QueryParameter{Name: "version", Value: m.Version},
			bigquery.QueryParameter{Name: "name", Value: m.Name},
			bigquery.QueryParameter{Name: "checksum", Value: m.Checksum},
			bigquery.QueryParameter{Name: "applied_by", Value: r.AppliedBy},
		)
		if err != nil {
			return count, fmt.Errorf("Apply: recording %04d_%s: %w", m.Version, m.Name, err)
		}
		count++
	}
	return count, nil
}

// bigQueryDB runs statements through a BigQuery client.
type bigQueryDB struct {
	client *bigquery.Client
}

func (b *bigQueryDB) Exec(ctx context.Context, sql string, params ...bigquery.QueryParameter) error {
	query := b.client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

func (b *bigQueryDB) AppliedVersions(ctx context.Context, table string) (map[int]bool, error) {
	it, err := b.client.Query("SELECT version FROM " + table).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	applied := make(map[int]bool)
	for {
		var row struct {
			Version int64 `bigquery:"version"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}
		applied[int(row.Version)] = true
	}
	return applied, nil
}
