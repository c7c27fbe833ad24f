// Package partition persists clean batches as Hive-style partitions,
// year=<Y>/month=<M>, replacing whatever the partition held before.
//
// A partition is built in a private staging directory and only then moved
// into the output tree, so a reader sees either the old contents or the
// new ones. Staging must live on the same filesystem as the output.
package partition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tripflow/pkg/errors"
	"github.com/ajitpratap0/tripflow/pkg/formats/columnar"
	"github.com/ajitpratap0/tripflow/pkg/logger"
	"github.com/ajitpratap0/tripflow/pkg/models"
	"github.com/ajitpratap0/tripflow/pkg/schema"
)

// Config configures a Writer.
type Config struct {
	StagingDir     string
	Compression    compress.Compression
	MaxRowsPerFile int64
	RowGroupLength int64
	// MinFreeBytes is the least free space staging must offer; 0 disables the check
	MinFreeBytes uint64
}

// Writer writes partitions. Concurrent writes to distinct keys are safe;
// concurrent writes to the same key are not supported.
type Writer struct {
	cfg    Config
	logger *zap.Logger

	openFile  func(name string) (file, error)
	freeBytes func(path string) (uint64, error)
	exchange  func(staged, target string) error
}

// New creates a partition writer.
func New(cfg Config, log *zap.Logger) (*Writer, error) {
	if cfg.StagingDir == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "staging directory is required")
	}
	if cfg.MaxRowsPerFile <= 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "max rows per file must be positive")
	}
	return &Writer{
		cfg:       cfg,
		logger:    logger.OrNop(log).With(zap.String("component", "partition_writer")),
		openFile:  createFile,
		freeBytes: diskFree,
		exchange:  exchange,
	}, nil
}

// staged is one partition built in staging.
type staged struct {
	key   models.PartitionKey
	dir   string
	files []string
	rows  int64
}

// Write replaces every partition present in clean under baseDir and
// returns the data files now in place. A batch without rows empties the
// partition of its work unit.
func (w *Writer) Write(ctx context.Context, clean *models.CleanBatch, baseDir string) ([]string, error) {
	if clean == nil || clean.Record == nil {
		return nil, errors.Write(errors.ErrorTypeInvalidInput, "no batch to write", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Write(errors.ErrorTypeCanceled, "write canceled", err)
	}

	start := time.Now()
	rec := clean.Record

	groups, err := groupRows(rec)
	if err != nil {
		return nil, errors.Write(errors.ErrorTypeEncode, "cannot partition batch", err)
	}
	if len(groups) == 0 {
		groups = map[models.PartitionKey][]rowRun{clean.Unit.Key(): nil}
	}

	if err := os.MkdirAll(w.cfg.StagingDir, 0o755); err != nil {
		return nil, errors.Write(errors.ClassifyFS(err), "failed to create staging directory", err)
	}
	if err := w.checkSpace(); err != nil {
		return nil, err
	}

	data, err := dataColumns(rec)
	if err != nil {
		return nil, errors.Write(errors.ErrorTypeEncode, "cannot partition batch", err)
	}
	defer data.Release()

	keys := make([]models.PartitionKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	var built []*staged
	defer func() {
		for _, s := range built {
			_ = os.RemoveAll(s.dir)
		}
	}()

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, errors.Write(errors.ErrorTypeCanceled, "write canceled", err)
		}
		s := &staged{key: key, dir: filepath.Join(w.cfg.StagingDir, uuid.NewString())}
		built = append(built, s)
		if err := w.stage(data, groups[key], s); err != nil {
			return nil, err
		}
	}

	var outputs []string
	for _, s := range built {
		target := s.key.Path(baseDir)
		if err := w.promote(s.dir, target); err != nil {
			return outputs, err
		}
		for _, name := range s.files {
			outputs = append(outputs, filepath.Join(target, name))
		}
		w.logger.Info("partition replaced",
			zap.Int32("year", s.key.Year),
			zap.Int32("month", s.key.Month),
			zap.String("path", target),
			zap.Int("files", len(s.files)),
			zap.Int64("rows", s.rows))
	}

	w.logger.Debug("write complete",
		zap.Int("partitions", len(built)),
		zap.Duration("duration", time.Since(start)))
	return outputs, nil
}

// dataColumns drops the partition columns; their values live in the path.
func dataColumns(rec arrow.Record) (arrow.Record, error) {
	n := int(rec.NumCols())
	if n < 2 || rec.Schema().Field(n-2).Name != schema.YearColumn || rec.Schema().Field(n-1).Name != schema.MonthColumn {
		return nil, fmt.Errorf("batch does not end with %s and %s columns", schema.YearColumn, schema.MonthColumn)
	}
	fields := rec.Schema().Fields()[:n-2]
	md := rec.Schema().Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &md), rec.Columns()[:n-2], rec.NumRows()), nil
}

// stage writes runs as part files under s.dir, rolling to a new file every
// MaxRowsPerFile rows.
func (w *Writer) stage(data arrow.Record, runs []rowRun, s *staged) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Write(errors.ClassifyFS(err), "failed to create staging partition", err)
	}

	wcfg := columnar.WriterConfig{Compression: w.cfg.Compression, RowGroupLength: w.cfg.RowGroupLength}

	var (
		fw   *pqarrow.FileWriter
		out  *trackedFile
		rows int64
	)
	open := func() error {
		name := fmt.Sprintf("part-%05d.parquet", len(s.files))
		f, err := w.openFile(filepath.Join(s.dir, name))
		if err != nil {
			return errors.Write(errors.ClassifyFS(err), "failed to create "+name, err)
		}
		out = &trackedFile{f: f}
		fw, err = columnar.NewParquetWriter(out, data.Schema(), wcfg)
		if err != nil {
			_ = f.Close()
			return encodeError(out, err)
		}
		s.files = append(s.files, name)
		return nil
	}
	finish := func() error {
		defer func() { fw, out, rows = nil, nil, 0 }()
		if err := columnar.Close(fw); err != nil {
			_ = out.f.Close()
			return encodeError(out, err)
		}
		if err := out.f.Sync(); err != nil {
			_ = out.f.Close()
			return errors.Write(errors.ClassifyFS(err), "failed to sync part file", err)
		}
		if err := out.f.Close(); err != nil {
			return errors.Write(errors.ClassifyFS(err), "failed to close part file", err)
		}
		return nil
	}

	for _, r := range runs {
		for pos := r.start; pos < r.end; {
			if fw == nil {
				if err := open(); err != nil {
					return err
				}
			}
			n := min(r.end-pos, w.cfg.MaxRowsPerFile-rows)
			slice := data.NewSlice(pos, pos+n)
			err := columnar.Write(fw, slice)
			slice.Release()
			if err != nil {
				_ = columnar.Close(fw)
				_ = out.f.Close()
				return encodeError(out, err)
			}
			pos += n
			rows += n
			s.rows += n
			if rows >= w.cfg.MaxRowsPerFile {
				if err := finish(); err != nil {
					return err
				}
			}
		}
	}
	if fw != nil {
		if err := finish(); err != nil {
			return err
		}
	}
	syncDir(s.dir)
	return nil
}

// encodeError prefers the filesystem failure underneath an encoder error.
func encodeError(out *trackedFile, err error) error {
	if out != nil && out.err != nil {
		return errors.Write(errors.ClassifyFS(out.err), "failed to write part file", out.err)
	}
	if kind := errors.ClassifyFS(err); kind != errors.ErrorTypeIO {
		return errors.Write(kind, "failed to write part file", err)
	}
	return errors.Write(errors.ErrorTypeEncode, "failed to encode part file", err)
}

func (w *Writer) checkSpace() error {
	if w.cfg.MinFreeBytes == 0 {
		return nil
	}
	free, err := w.freeBytes(w.cfg.StagingDir)
	if err != nil {
		w.logger.Warn("free space probe failed", zap.String("path", w.cfg.StagingDir), zap.Error(err))
		return nil
	}
	if free < w.cfg.MinFreeBytes {
		return errors.Write(errors.ErrorTypeNoSpace,
			fmt.Sprintf("staging has %d bytes free, need %d", free, w.cfg.MinFreeBytes), nil).
			WithDetail("path", w.cfg.StagingDir)
	}
	return nil
}
