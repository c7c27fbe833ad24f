package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/tripflow/pkg/config"
	"github.com/ajitpratap0/tripflow/pkg/logger"
	"github.com/ajitpratap0/tripflow/pkg/models"
	"github.com/ajitpratap0/tripflow/pkg/observability"
)

// errRunsFailed is returned when at least one work unit failed; the
// failures themselves are already logged.
var errRunsFailed = errors.New("one or more runs failed")

type runOptions struct {
	years      []int
	yearRange  string
	months     []int
	monthRange string
	allMonths  bool
	parallel   int
	publish    bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one or more months",
		Long: `Fetch, validate and write the partitions for the selected months. Each month
is an independent run; a failed month never affects the others. The exit
code is non-zero if any month failed.`,
		Example: `  tripflow run --year 2024 --month 3
  tripflow run --year 2023 --all-months --parallel 4
  tripflow run --year-range 2019-2021 --month-range 1-6 --report-file runs.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			units, err := opts.units(cfg.Validation.MinYear, time.Now().Year())
			if err != nil {
				return err
			}
			withPublish := opts.publish || cmd.Flags().Changed("publish-to")
			return execute(cmd.Context(), cfg, log, units, opts.parallel, withPublish)
		},
	}

	f := cmd.Flags()
	f.IntSliceVar(&opts.years, "year", nil, "Year to process (repeatable)")
	f.StringVar(&opts.yearRange, "year-range", "", "Inclusive year range, e.g. 2019-2021")
	f.IntSliceVar(&opts.months, "month", nil, "Month to process, 1-12 (repeatable)")
	f.StringVar(&opts.monthRange, "month-range", "", "Inclusive month range, e.g. 1-6")
	f.BoolVar(&opts.allMonths, "all-months", false, "Process every month of the selected years")
	f.IntVarP(&opts.parallel, "parallel", "p", 1, "Number of months processed concurrently")
	f.BoolVar(&opts.publish, "publish", false, "Mirror written partitions to publish.target")
	f.String("publish-to", "", "Mirror written partitions to s3://bucket/prefix or gs://bucket/prefix")
	f.String("report-file", "", "Append run reports to this JSON lines file")
	f.String("base-url", "", "Base URL of the trip-record files")
	f.String("format", "", "Raw file format (parquet, csv, csv.gz)")
	f.String("compression", "", "Parquet compression (snappy, zstd, gzip, lz4, brotli, none)")

	cmd.MarkFlagsMutuallyExclusive("all-months", "month")
	cmd.MarkFlagsMutuallyExclusive("all-months", "month-range")
	return cmd
}

// units expands the selection flags into sorted, distinct work units.
func (o *runOptions) units(minYear, maxYear int) ([]models.WorkUnit, error) {
	if minYear <= 0 {
		minYear = models.FirstPublishedYear
	}
	if len(o.years) == 0 && o.yearRange == "" {
		return nil, fmt.Errorf("--year or --year-range is required")
	}
	years, err := models.ExpandRange(o.years, o.yearRange, minYear, maxYear)
	if err != nil {
		return nil, fmt.Errorf("invalid year selection: %w", err)
	}

	var months []int
	switch {
	case o.allMonths:
		months, _ = models.ExpandRange(nil, "1-12", 1, 12)
	case len(o.months) == 0 && o.monthRange == "":
		return nil, fmt.Errorf("--month, --month-range or --all-months is required")
	default:
		months, err = models.ExpandRange(o.months, o.monthRange, 1, 12)
		if err != nil {
			return nil, fmt.Errorf("invalid month selection: %w", err)
		}
	}
	return models.ExpandUnits(years, months), nil
}

func execute(ctx context.Context, cfg *config.Config, log *zap.Logger, units []models.WorkUnit, parallel int, withPublish bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		SamplingRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	runID := uuid.NewString()

	// the pipeline tags its own lines with run_id from the context
	a, err := build(ctx, cfg, log, runID, withPublish)
	if err != nil {
		return err
	}
	log = log.With(zap.String("run_id", runID))
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("failed to close report sinks", zap.Error(err))
		}
	}()

	if parallel < 1 {
		parallel = 1
	}
	log.Info("starting runs",
		zap.Int("units", len(units)),
		zap.Int("parallel", parallel),
		zap.String("dataset", cfg.Dataset),
		zap.String("output", cfg.ProcessedDir))

	reports := make([]*models.RunReport, len(units))
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, unit := range units {
		g.Go(func() error {
			r := a.pipeline.Run(ctx, unit)
			reports[i] = r
			logReport(log, r)
			if err := a.sinks.Record(ctx, r); err != nil {
				log.Warn("failed to record run report", zap.Stringer("work_unit", unit), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if url := cfg.Metrics.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.collector.Push(pushCtx, url, cfg.Metrics.Job); err != nil {
			log.Warn("failed to push metrics", zap.String("url", url), zap.Error(err))
		}
		cancel()
	}

	failed := 0
	var rowsWritten int64
	for _, r := range reports {
		if !r.Succeeded() {
			failed++
		}
		rowsWritten += r.RowsWritten
	}
	log.Info("runs finished",
		zap.Int("succeeded", len(reports)-failed),
		zap.Int("failed", failed),
		zap.Int64("rows_written", rowsWritten))

	if failed > 0 {
		return errRunsFailed
	}
	return nil
}

func logReport(log *zap.Logger, r *models.RunReport) {
	fields := []zap.Field{
		zap.Stringer("work_unit", r.Unit),
		zap.String("status", string(r.Status)),
		zap.String("stage", string(r.Stage)),
		zap.Int64("rows_read", r.RowsRead),
		zap.Int64("rows_written", r.RowsWritten),
		zap.Int64("rows_dropped", r.RowsDropped),
		zap.Int64("dropped_null_required", r.Drops.NullRequired),
		zap.Int64("dropped_invalid_timestamp", r.Drops.InvalidTimestamp),
		zap.Int64("dropped_outside_window", r.Drops.OutsideWindow),
		zap.Bool("cache_hit", r.CacheHit),
		zap.Int("files", len(r.OutputPaths)),
		zap.Duration("elapsed", r.Elapsed),
	}
	if r.Succeeded() {
		log.Info("run succeeded", fields...)
		return
	}
	fields = append(fields, zap.String("error_kind", r.ErrorKind), zap.String("error", r.Error))
	log.Error("run failed", fields...)
}
