// Package config loads settings from COSTDASH_* environment variables and
// an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/persist"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "COSTDASH"

// FileEnvVar names the variable holding the YAML file path.
const FileEnvVar = "COSTDASH_CONFIG"

// Config is the application configuration.
type Config struct {
	Server  ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Storage persist.Options `yaml:"storage" envconfig:"STORAGE"`
	Export  ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Notion  NotionConfig    `yaml:"notion" envconfig:"NOTION"`
	Logging LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Import  ImportConfig    `yaml:"import" envconfig:"IMPORT"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"67108864" validate:"gt=0"`
	Workers         int           `yaml:"workers" envconfig:"WORKERS" default:"1" validate:"min=1"`
	AllowedOrigin   string        `yaml:"allowed_origin" envconfig:"ALLOWED_ORIGIN" default:"*"`
}

// ExportConfig contains BigQuery export settings.
type ExportConfig struct {
	ProjectID string `yaml:"project_id" envconfig:"PROJECT_ID"`
	DatasetID string `yaml:"dataset_id" envconfig:"DATASET_ID" default:"billing"`
	TableID   string `yaml:"table_id" envconfig:"TABLE_ID" default:"cost_rows"`
	Schedule  string `yaml:"schedule" envconfig:"SCHEDULE" default:"0 0 2 * * *"`
	GroupBy   string `yaml:"group_by" envconfig:"GROUP_BY" default:"service"`
	BOMPrefix bool   `yaml:"bom_prefix" envconfig:"BOM_PREFIX" default:"true"`
}

// NotionConfig contains Notion publishing settings.
type NotionConfig struct {
	Token      string `yaml:"token" envconfig:"TOKEN"`
	DatabaseID string `yaml:"database_id" envconfig:"DATABASE_ID"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"console" validate:"oneof=console json"`
}

// ImportConfig holds import defaults. ChecksumSigner is fixed for the life of
// a store: state saved under one signature scheme is refused under the other.
type ImportConfig struct {
	AutoRoute      bool `yaml:"auto_route" envconfig:"AUTO_ROUTE" default:"false"`
	FallbackToAll  bool `yaml:"fallback_to_all" envconfig:"FALLBACK_TO_ALL" default:"true"`
	ChecksumSigner bool `yaml:"checksum_signer" envconfig:"CHECKSUM_SIGNER" default:"false"`
}

// Load reads environment variables with defaults, overlays the YAML file
// named by COSTDASH_CONFIG when set, and validates the result.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnvVar))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// BigQueryEnabled reports whether a BigQuery export target is configured.
func (c *Config) BigQueryEnabled() bool {
	return c.Export.ProjectID != ""
}

// NotionEnabled reports whether Notion publishing is configured.
func (c *Config) NotionEnabled() bool {
	return c.Notion.Token != "" && c.Notion.DatabaseID != ""
}
