// Package config holds the single configuration value a tripflow process
// runs with. It is assembled once, from defaults, an optional YAML file,
// TRIPFLOW_* environment variables and command-line flags (in increasing
// precedence), and then handed to component constructors.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tripflow/pkg/errors"
	"github.com/ajitpratap0/tripflow/pkg/formats/columnar"
	"github.com/ajitpratap0/tripflow/pkg/logger"
	"github.com/ajitpratap0/tripflow/pkg/models"
	"github.com/ajitpratap0/tripflow/pkg/schema"
)

// DefaultBaseURL is the public trip-record CDN.
const DefaultBaseURL = "https://d37ci6vzurychx.cloudfront.net/trip-data"

// Config is the complete process configuration.
type Config struct {
	// DataDir is the root the other directories derive from
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// RawDir caches downloaded source files; default <data_dir>/raw
	RawDir string `mapstructure:"raw_dir" yaml:"raw_dir"`
	// ProcessedDir holds the partitions; default <data_dir>/processed/<dataset>_tripdata
	ProcessedDir string `mapstructure:"processed_dir" yaml:"processed_dir"`
	// StagingDir holds in-flight partitions. It must share a filesystem
	// with ProcessedDir; default <data_dir>/staging
	StagingDir string `mapstructure:"staging_dir" yaml:"staging_dir"`
	// Dataset selects the profile: yellow or green
	Dataset string `mapstructure:"dataset" yaml:"dataset"`

	Source     SourceConfig     `mapstructure:"source" yaml:"source"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation"`
	Logging    logger.Config    `mapstructure:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
	Publish    PublishConfig    `mapstructure:"publish" yaml:"publish"`
	Ledger     LedgerConfig     `mapstructure:"ledger" yaml:"ledger"`
}

// SourceConfig controls downloads.
type SourceConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Format      string        `mapstructure:"format" yaml:"format"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent   string        `mapstructure:"user_agent" yaml:"user_agent"`
	EnableHTTP2 bool          `mapstructure:"enable_http2" yaml:"enable_http2"`
}

// OutputConfig controls Parquet encoding and partition writes.
type OutputConfig struct {
	Compression    string `mapstructure:"compression" yaml:"compression"`
	MaxRowsPerFile int64  `mapstructure:"max_rows_per_file" yaml:"max_rows_per_file"`
	RowGroupLength int64  `mapstructure:"row_group_length" yaml:"row_group_length"`
	// MinFreeBytes aborts a write up front when staging has less room; 0 disables
	MinFreeBytes uint64 `mapstructure:"min_free_bytes" yaml:"min_free_bytes"`
}

// ValidationConfig controls record validation.
type ValidationConfig struct {
	MinYear          int      `mapstructure:"min_year" yaml:"min_year"`
	TimestampLayouts []string `mapstructure:"timestamp_layouts" yaml:"timestamp_layouts"`
}

// MetricsConfig configures the Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url"`
	Job            string `mapstructure:"job" yaml:"job"`
}

// TracingConfig configures OpenTelemetry.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// PublishConfig configures the object storage mirror.
type PublishConfig struct {
	// Target is s3://bucket/prefix or gs://bucket/prefix; empty disables publishing
	Target          string `mapstructure:"target" yaml:"target"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	PathStyle       bool   `mapstructure:"path_style" yaml:"path_style"`
}

// LedgerConfig configures where run reports are recorded.
type LedgerConfig struct {
	ReportFile  string `mapstructure:"report_file" yaml:"report_file"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	Table       string `mapstructure:"table" yaml:"table"`
}

// Default returns the built-in configuration with derived paths resolved.
func Default() *Config {
	cfg := &Config{
		DataDir: "data",
		Dataset: schema.Yellow.Name,
		Source: SourceConfig{
			BaseURL:     DefaultBaseURL,
			Format:      string(columnar.Parquet),
			Timeout:     10 * time.Minute,
			UserAgent:   "tripflow",
			EnableHTTP2: true,
		},
		Output: OutputConfig{
			Compression:    "snappy",
			MaxRowsPerFile: 2_000_000,
			RowGroupLength: 128 * 1024,
			MinFreeBytes:   64 << 20,
		},
		Validation: ValidationConfig{
			MinYear: models.FirstPublishedYear,
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Job: "tripflow",
		},
		Tracing: TracingConfig{
			ServiceName: "tripflow",
			SampleRate:  1.0,
		},
		Ledger: LedgerConfig{
			Table: "tripflow_runs",
		},
	}
	cfg.Resolve()
	return cfg
}

// Resolve fills the directories left empty from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	c.DataDir = filepath.Clean(c.DataDir)
	if c.Dataset == "" {
		c.Dataset = schema.Yellow.Name
	}
	if c.RawDir == "" {
		c.RawDir = filepath.Join(c.DataDir, "raw")
	}
	if c.ProcessedDir == "" {
		c.ProcessedDir = filepath.Join(c.DataDir, "processed", c.Dataset+"_tripdata")
	}
	if c.StagingDir == "" {
		c.StagingDir = filepath.Join(c.DataDir, "staging")
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if _, err := schema.ByName(c.Dataset); err != nil {
		return configError(err.Error())
	}
	if c.Source.BaseURL == "" {
		return configError("source.base_url is required")
	}
	if _, err := columnar.ParseFormat(c.Source.Format); err != nil {
		return configError(err.Error())
	}
	if c.Source.Timeout < 0 {
		return configError("source.timeout cannot be negative")
	}
	if _, err := columnar.ParseCompression(c.Output.Compression); err != nil {
		return configError(err.Error())
	}
	if c.Output.MaxRowsPerFile <= 0 {
		return configError("output.max_rows_per_file must be positive")
	}
	if c.Output.RowGroupLength <= 0 {
		return configError("output.row_group_length must be positive")
	}
	if c.Validation.MinYear <= 0 {
		return configError("validation.min_year must be positive")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return configError("tracing.sample_rate must be within [0, 1]")
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

func configError(msg string) error {
	e := errors.New(errors.ErrorTypeConfig, msg)
	e.Op = errors.OpConfig
	return e
}
