package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tripflow/internal/pipeline"
	"github.com/ajitpratap0/tripflow/pkg/clients"
	"github.com/ajitpratap0/tripflow/pkg/config"
	"github.com/ajitpratap0/tripflow/pkg/formats/columnar"
	"github.com/ajitpratap0/tripflow/pkg/metrics"
	"github.com/ajitpratap0/tripflow/pkg/partition"
	"github.com/ajitpratap0/tripflow/pkg/publish"
	"github.com/ajitpratap0/tripflow/pkg/reportsink"
	"github.com/ajitpratap0/tripflow/pkg/schema"
	"github.com/ajitpratap0/tripflow/pkg/source"
	"github.com/ajitpratap0/tripflow/pkg/validate"
)

// app holds everything a run command needs, built once per invocation.
type app struct {
	fetcher   *source.Fetcher
	pipeline  *pipeline.Pipeline
	collector *metrics.Collector
	sinks     reportsink.Sink
	publisher publish.Publisher
}

func (a *app) Close() error {
	var err error
	if a.fetcher != nil {
		a.fetcher.Close()
	}
	if a.sinks != nil {
		err = a.sinks.Close()
	}
	if a.publisher != nil {
		if perr := a.publisher.Close(); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

func newFetcher(cfg *config.Config, log *zap.Logger) (*source.Fetcher, error) {
	profile, err := schema.ByName(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	format, err := columnar.ParseFormat(cfg.Source.Format)
	if err != nil {
		return nil, err
	}

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.RequestTimeout = cfg.Source.Timeout
	httpCfg.EnableHTTP2 = cfg.Source.EnableHTTP2
	if cfg.Source.UserAgent != "" {
		httpCfg.UserAgent = cfg.Source.UserAgent + "/" + version
	}

	return source.New(source.Config{
		RawDir:  cfg.RawDir,
		BaseURL: cfg.Source.BaseURL,
		Format:  format,
		MinYear: cfg.Validation.MinYear,
		HTTP:    httpCfg,
	}, profile, log)
}

func newWriter(cfg *config.Config, log *zap.Logger) (*partition.Writer, error) {
	codec, err := columnar.ParseCompression(cfg.Output.Compression)
	if err != nil {
		return nil, err
	}
	return partition.New(partition.Config{
		StagingDir:     cfg.StagingDir,
		Compression:    codec,
		MaxRowsPerFile: cfg.Output.MaxRowsPerFile,
		RowGroupLength: cfg.Output.RowGroupLength,
		MinFreeBytes:   cfg.Output.MinFreeBytes,
	}, log)
}

func newSinks(ctx context.Context, cfg *config.Config, log *zap.Logger) (reportsink.Sink, error) {
	var sinks []reportsink.Sink
	if cfg.Ledger.ReportFile != "" {
		j, err := reportsink.NewJSONLines(cfg.Ledger.ReportFile)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, j)
	}
	if cfg.Ledger.PostgresDSN != "" {
		pg, err := reportsink.NewPostgres(ctx, cfg.Ledger.PostgresDSN, cfg.Ledger.Table, log)
		if err != nil {
			_ = reportsink.Multi(sinks...).Close()
			return nil, err
		}
		sinks = append(sinks, pg)
	}
	return reportsink.Multi(sinks...), nil
}

// build wires the components described by cfg. Publishing is only set up
// when withPublish is true and a target is configured.
func build(ctx context.Context, cfg *config.Config, log *zap.Logger, runID string, withPublish bool) (*app, error) {
	profile, err := schema.ByName(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	fetcher, err := newFetcher(cfg, log)
	if err != nil {
		return nil, err
	}
	writer, err := newWriter(cfg, log)
	if err != nil {
		return nil, err
	}
	validator := validate.New(profile, validate.Config{TimestampLayouts: cfg.Validation.TimestampLayouts}, log)

	a := &app{fetcher: fetcher, collector: metrics.NewCollector()}
	opts := []pipeline.Option{
		pipeline.WithRunID(runID),
		pipeline.WithObserver(a.collector),
	}

	if withPublish && cfg.Publish.Target != "" {
		a.publisher, err = publish.New(ctx, publish.Config{
			Target:          cfg.Publish.Target,
			Region:          cfg.Publish.Region,
			Endpoint:        cfg.Publish.Endpoint,
			CredentialsFile: cfg.Publish.CredentialsFile,
			PathStyle:       cfg.Publish.PathStyle,
		}, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithPublisher(a.publisher))
	}

	a.sinks, err = newSinks(ctx, cfg, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.pipeline = pipeline.New(fetcher, validator, writer, cfg.ProcessedDir, log, opts...)
	return a, nil
}
