package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tripflow/pkg/config"
	"github.com/ajitpratap0/tripflow/pkg/logger"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "tripflow",
		Short: "tripflow - monthly trip-record ETL",
		Long: `tripflow fetches the monthly NYC taxi trip-record files, drops rows that fail
validation and writes the rest as year=<Y>/month=<M> Parquet partitions.
Re-running a month replaces its partition.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML configuration file")
	pf.String("data-dir", "", "Base data directory (env TRIPFLOW_DATA_DIR or DATA_DIR)")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("dataset", "", "Dataset to process (yellow, green)")

	root.AddCommand(
		newRunCmd(opts),
		newPathsCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the effective configuration for cmd and installs the logger.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, nil, err
	}
	return cfg, logger.Get().With(zap.String("component", "tripflow-cli")), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tripflow v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
