// Package source retrieves one month of raw trip data, either from the
// local cache or from the remote host, and decodes it into memory.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tripflow/pkg/clients"
	"github.com/ajitpratap0/tripflow/pkg/errors"
	"github.com/ajitpratap0/tripflow/pkg/formats/columnar"
	"github.com/ajitpratap0/tripflow/pkg/logger"
	"github.com/ajitpratap0/tripflow/pkg/models"
	"github.com/ajitpratap0/tripflow/pkg/schema"
)

// Getter issues GET requests. *clients.HTTPClient satisfies it.
type Getter interface {
	Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error)
}

// Config configures a Fetcher.
type Config struct {
	RawDir  string
	BaseURL string
	Format  columnar.Format
	MinYear int
	HTTP    *clients.HTTPConfig
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithGetter replaces the HTTP client.
func WithGetter(g Getter) Option {
	return func(f *Fetcher) { f.client = g }
}

// Fetcher resolves work units to raw batches. It keeps no state between
// calls besides the cache directory on disk.
type Fetcher struct {
	cfg     Config
	profile *schema.Profile
	client  Getter
	mem     memory.Allocator
	logger  *zap.Logger
}

// New creates a fetcher for profile.
func New(cfg Config, profile *schema.Profile, log *zap.Logger, opts ...Option) (*Fetcher, error) {
	if cfg.RawDir == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "raw directory is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "base URL is required")
	}
	if cfg.Format == "" {
		cfg.Format = columnar.Parquet
	}
	if columnar.GetFormatInfo(cfg.Format) == nil {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported raw format: %s", cfg.Format)
	}
	if profile == nil {
		profile = schema.Yellow
	}

	f := &Fetcher{
		cfg:     cfg,
		profile: profile,
		mem:     memory.NewGoAllocator(),
		logger:  logger.OrNop(log).With(zap.String("component", "fetcher")),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = clients.NewHTTPClient(cfg.HTTP, log)
	}
	return f, nil
}

// Close releases the HTTP client's idle connections.
func (f *Fetcher) Close() {
	if c, ok := f.client.(interface{ Close() }); ok {
		c.Close()
	}
}

// FileName is the published file name for unit.
func (f *Fetcher) FileName(unit models.WorkUnit) string {
	return f.profile.FileStem(unit.Year, unit.Month) + columnar.GetFormatInfo(f.cfg.Format).FileExtension
}

// CachePath is where unit's raw file lives locally.
func (f *Fetcher) CachePath(unit models.WorkUnit) string {
	return filepath.Join(f.cfg.RawDir, f.FileName(unit))
}

// RemoteURL is where unit's raw file is published.
func (f *Fetcher) RemoteURL(unit models.WorkUnit) string {
	return strings.TrimRight(f.cfg.BaseURL, "/") + "/" + f.FileName(unit)
}

// Fetch returns the raw batch for unit, downloading it on a cache miss.
// It does not retry.
func (f *Fetcher) Fetch(ctx context.Context, unit models.WorkUnit) (*models.RawBatch, error) {
	if err := unit.Validate(f.cfg.MinYear, time.Now().Year()); err != nil {
		return nil, errors.Fetch(errors.ErrorTypeInvalidInput, "invalid work unit", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Fetch(errors.ErrorTypeCanceled, "fetch canceled", err)
	}

	log := f.logger.With(zap.Int("year", unit.Year), zap.Int("month", unit.Month))
	path, url := f.CachePath(unit), f.RemoteURL(unit)

	hit := false
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		hit = true
		log.Debug("raw cache hit", zap.String("path", path))
	} else if err := f.download(ctx, url, path, log); err != nil {
		return nil, err
	}

	tbl, err := columnar.ReadFile(ctx, path, f.cfg.Format, f.mem)
	if err == nil {
		if _, rerr := f.profile.Resolve(tbl.Schema()); rerr != nil {
			tbl.Release()
			tbl, err = nil, rerr
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Fetch(errors.ErrorTypeCanceled, "decode canceled", ctx.Err())
		}
		// a bad cache entry must not poison later runs
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn("failed to remove undecodable raw file", zap.String("path", path), zap.Error(rmErr))
		}
		return nil, errors.Fetch(errors.ErrorTypeCorruptSource, "failed to decode "+filepath.Base(path), err).
			WithDetail("path", path)
	}

	log.Info("raw batch ready",
		zap.String("path", path),
		zap.Bool("cache_hit", hit),
		zap.Int64("rows", tbl.NumRows()))

	return &models.RawBatch{
		Unit:       unit,
		Table:      tbl,
		SourcePath: path,
		SourceURL:  url,
		CacheHit:   hit,
	}, nil
}

// download streams url into a temp file next to path and renames it into
// place once complete, so path only ever holds whole files.
func (f *Fetcher) download(ctx context.Context, url, path string, log *zap.Logger) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Fetch(errors.ClassifyFS(err), "failed to create raw directory", err)
	}

	start := time.Now()
	log.Info("downloading raw file", zap.String("url", url))

	resp, err := f.client.Get(ctx, url, nil)
	if err != nil {
		return f.transportError(ctx, "request failed", err, url)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		// the CDN answers 403 for objects that were never published
		return errors.Fetch(errors.ErrorTypeNotFound, fmt.Sprintf("no source file at %s", url), nil).
			WithDetail("status", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.Fetch(errors.ErrorTypeTransport, fmt.Sprintf("unexpected status %s", resp.Status), nil).
			WithDetail("status", resp.StatusCode).
			WithDetail("url", url)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return errors.Fetch(errors.ClassifyFS(err), "failed to create temp file", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return f.transportError(ctx, "download interrupted", err, url)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		err = fmt.Errorf("got %d of %d bytes", n, resp.ContentLength)
		return errors.Fetch(errors.ErrorTypeTransport, "short body", err).WithDetail("url", url)
	}
	if err = tmp.Sync(); err != nil {
		return errors.Fetch(errors.ClassifyFS(err), "failed to sync download", err)
	}
	if err = tmp.Close(); err != nil {
		return errors.Fetch(errors.ClassifyFS(err), "failed to close download", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Fetch(errors.ClassifyFS(err), "failed to move download into cache", err)
	}

	log.Info("downloaded raw file",
		zap.String("path", path),
		zap.Int64("bytes", n),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (f *Fetcher) transportError(ctx context.Context, msg string, err error, url string) error {
	if ctx.Err() != nil {
		return errors.Fetch(errors.ErrorTypeCanceled, "download canceled", ctx.Err())
	}
	return errors.Fetch(errors.ErrorTypeTransport, msg, err).WithDetail("url", url)
}
