// Package pipeline runs one work unit through fetch, validation and
// partition write, and reports what happened.
//
// # Overview
//
// A run is a small state machine:
//
//	Fetching -> Validating -> Writing -> [Publishing] -> Done
//
// Any step may end the run as Failed; the report keeps the stage that
// failed. Row-level problems never fail a run, they are counted in the
// report's drop statistics. Cancellation is checked between steps.
//
// # Basic Usage
//
//	p := pipeline.New(fetcher, validator, writer, cfg.ProcessedDir, logger,
//	    pipeline.WithObserver(collector),
//	    pipeline.WithRunID(runID),
//	)
//	report := p.Run(ctx, models.WorkUnit{Year: 2024, Month: 3})
//	if !report.Succeeded() {
//	    ...
//	}
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tripflow/pkg/errors"
	"github.com/ajitpratap0/tripflow/pkg/logger"
	"github.com/ajitpratap0/tripflow/pkg/metrics"
	"github.com/ajitpratap0/tripflow/pkg/models"
	"github.com/ajitpratap0/tripflow/pkg/observability"
)

// Fetcher produces the raw batch for a unit.
type Fetcher interface {
	Fetch(ctx context.Context, unit models.WorkUnit) (*models.RawBatch, error)
}

// Validator turns a raw batch into a clean one. It cannot fail.
type Validator interface {
	Validate(raw *models.RawBatch, unit models.WorkUnit) *models.CleanBatch
}

// Writer replaces the partitions present in a clean batch.
type Writer interface {
	Write(ctx context.Context, clean *models.CleanBatch, baseDir string) ([]string, error)
}

// Publisher mirrors a written partition elsewhere.
type Publisher interface {
	Publish(ctx context.Context, key models.PartitionKey, localDir string, files []string) ([]string, error)
}

// Observer is told about every finished run.
type Observer interface {
	ObserveRun(report *models.RunReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(report *models.RunReport)

// ObserveRun calls f.
func (f ObserverFunc) ObserveRun(report *models.RunReport) { f(report) }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver registers o; observers run in registration order.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// WithPublisher adds the publishing step.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithRunID stamps reports with the invocation id.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// Pipeline composes the components of a run. It holds no per-run state
// and is safe to share between concurrent runs on different units.
type Pipeline struct {
	fetcher   Fetcher
	validator Validator
	writer    Writer
	publisher Publisher
	observers []Observer
	outputDir string
	runID     string
	logger    *zap.Logger
}

// New builds a pipeline writing partitions under outputDir.
func New(f Fetcher, v Validator, w Writer, outputDir string, log *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:   f,
		validator: v,
		writer:    w,
		outputDir: outputDir,
		logger:    logger.OrNop(log).With(zap.String("component", "pipeline")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes unit and returns its report. It never panics and never
// returns nil.
func (p *Pipeline) Run(ctx context.Context, unit models.WorkUnit) (report *models.RunReport) {
	started := time.Now()
	report = &models.RunReport{
		RunID:     p.runID,
		Unit:      unit,
		Status:    models.StatusFailed,
		Stage:     models.StageFetching,
		StartedAt: started.UTC(),
		Timings:   make(map[models.Stage]time.Duration, 4),
	}

	ctx = logger.ContextWithUnit(ctx, unit.String())
	if p.runID != "" {
		ctx = logger.ContextWithRunID(ctx, p.runID)
	}
	log := logger.WithContext(ctx, p.logger)

	ctx, span := observability.Start(ctx, "tripflow.run",
		attribute.Int("tripflow.year", unit.Year),
		attribute.Int("tripflow.month", unit.Month))

	defer func() {
		if r := recover(); r != nil {
			p.fail(report, errors.Newf(errors.ErrorTypeInternal, "panic in %s: %v", report.Stage, r))
			log.Error("run panicked", zap.Any("panic", r), zap.String("stage", string(report.Stage)))
		}
		report.Elapsed = time.Since(started)
		span.SetAttributes(
			attribute.String("tripflow.status", string(report.Status)),
			attribute.Int64("tripflow.rows_written", report.RowsWritten))
		observability.End(span, report.Err)
		for _, o := range p.observers {
			o.ObserveRun(report)
		}
	}()

	if err := p.execute(ctx, unit, report); err != nil {
		p.fail(report, err)
		return report
	}

	report.Stage = models.StageDone
	report.Status = models.StatusSucceeded
	return report
}

func (p *Pipeline) execute(ctx context.Context, unit models.WorkUnit, report *models.RunReport) error {
	var raw *models.RawBatch
	defer func() { raw.Release() }()

	err := p.step(ctx, report, models.StageFetching, func(ctx context.Context) error {
		var err error
		raw, err = p.fetcher.Fetch(ctx, unit)
		if err != nil {
			return err
		}
		report.RowsRead = raw.NumRows()
		report.CacheHit = raw.CacheHit
		report.SourcePath = raw.SourcePath
		return nil
	})
	if err != nil {
		return err
	}

	var clean *models.CleanBatch
	defer func() { clean.Release() }()

	err = p.step(ctx, report, models.StageValidating, func(context.Context) error {
		clean = p.validator.Validate(raw, unit)
		if clean == nil {
			return errors.New(errors.ErrorTypeInternal, "validator returned no batch")
		}
		raw.Release()
		report.Drops = clean.Drops
		report.RowsDropped = report.RowsRead - clean.NumRows()
		return nil
	})
	if err != nil {
		return err
	}

	err = p.step(ctx, report, models.StageWriting, func(ctx context.Context) error {
		outputs, err := p.writer.Write(ctx, clean, p.outputDir)
		if err != nil {
			return err
		}
		report.OutputPaths = outputs
		report.RowsWritten = clean.NumRows()
		report.RowsDropped = report.RowsRead - report.RowsWritten
		return nil
	})
	if err != nil {
		return err
	}

	if p.publisher == nil {
		return nil
	}
	return p.step(ctx, report, models.StagePublishing, func(ctx context.Context) error {
		key := unit.Key()
		uris, err := p.publisher.Publish(ctx, key, key.Path(p.outputDir), report.OutputPaths)
		if err != nil {
			return err
		}
		report.PublishedURIs = uris
		return nil
	})
}

// step runs fn as stage, timing and tracing it.
func (p *Pipeline) step(ctx context.Context, report *models.RunReport, stage models.Stage, fn func(context.Context) error) error {
	report.Stage = stage
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeCanceled, fmt.Sprintf("run canceled before %s", stage))
	}

	ctx, span := observability.Start(ctx, "tripflow."+string(stage))
	timer := metrics.NewTimer(string(stage))
	err := fn(ctx)
	report.Timings[stage] = timer.Stop()
	observability.End(span, err)
	return err
}

func (p *Pipeline) fail(report *models.RunReport, err error) {
	report.Status = models.StatusFailed
	report.Err = err
	report.Error = err.Error()
	report.ErrorKind = string(errors.TypeOf(err))
}
