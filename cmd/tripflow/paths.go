package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/tripflow/pkg/config"
	"github.com/ajitpratap0/tripflow/pkg/models"
)

func newPathsCmd(opts *rootOptions) *cobra.Command {
	var year, month int

	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print where a month is fetched from and written to",
		Example: `  tripflow paths --year 2024 --month 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			unit, err := models.NewWorkUnit(year, month, cfg.Validation.MinYear)
			if err != nil {
				return err
			}
			fetcher, err := newFetcher(cfg, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "remote:    %s\n", fetcher.RemoteURL(unit))
			fmt.Fprintf(out, "cache:     %s\n", fetcher.CachePath(unit))
			fmt.Fprintf(out, "partition: %s\n", unit.Key().Path(cfg.ProcessedDir))
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Year of the work unit")
	cmd.Flags().IntVar(&month, "month", 0, "Month of the work unit (1-12)")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}
