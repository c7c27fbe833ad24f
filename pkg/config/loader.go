package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TRIPFLOW_OUTPUT_COMPRESSION.
const EnvPrefix = "TRIPFLOW"

// FlagKeys maps command-line flag names onto configuration keys.
var FlagKeys = map[string]string{
	"data-dir":    "data_dir",
	"dataset":     "dataset",
	"log-level":   "logging.level",
	"base-url":    "source.base_url",
	"format":      "source.format",
	"compression": "output.compression",
	"report-file": "ledger.report_file",
	"publish-to":  "publish.target",
}

// Load assembles the configuration. path may be empty; flags may be nil.
// Only flags the user actually set override lower layers.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// DATA_DIR is honoured for compatibility with existing deployments
	if err := v.BindEnv("data_dir", EnvPrefix+"_DATA_DIR", "DATA_DIR"); err != nil {
		return nil, configError(err.Error())
	}

	if path != "" {
		if err := readFile(v, path); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, configError(err.Error())
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, configError(fmt.Sprintf("failed to decode configuration: %v", err))
	}
	// derived directories left unset follow the effective data_dir
	cfg.Resolve()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return configError(fmt.Sprintf("failed to read config file: %v", err))
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		ext = "yaml"
	}
	v.SetConfigType(ext)
	if err := v.ReadConfig(bytes.NewBufferString(substituteEnvVars(string(data)))); err != nil {
		return configError(fmt.Sprintf("failed to parse config file: %v", err))
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can see it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("raw_dir", "")
	v.SetDefault("processed_dir", "")
	v.SetDefault("staging_dir", "")
	v.SetDefault("dataset", d.Dataset)

	v.SetDefault("source.base_url", d.Source.BaseURL)
	v.SetDefault("source.format", d.Source.Format)
	v.SetDefault("source.timeout", d.Source.Timeout)
	v.SetDefault("source.user_agent", d.Source.UserAgent)
	v.SetDefault("source.enable_http2", d.Source.EnableHTTP2)

	v.SetDefault("output.compression", d.Output.Compression)
	v.SetDefault("output.max_rows_per_file", d.Output.MaxRowsPerFile)
	v.SetDefault("output.row_group_length", d.Output.RowGroupLength)
	v.SetDefault("output.min_free_bytes", d.Output.MinFreeBytes)

	v.SetDefault("validation.min_year", d.Validation.MinYear)
	v.SetDefault("validation.timestamp_layouts", []string{})

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("logging.output_paths", []string{})

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", d.Metrics.Job)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)

	v.SetDefault("publish.target", "")
	v.SetDefault("publish.region", "")
	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.credentials_file", "")
	v.SetDefault("publish.path_style", false)

	v.SetDefault("ledger.report_file", "")
	v.SetDefault("ledger.postgres_dsn", "")
	v.SetDefault("ledger.table", d.Ledger.Table)
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		content = content[:start] + os.Getenv(varName) + content[end+1:]
	}
	return content
}
