package columnar

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// CreatedBy is stamped into every file footer. It is fixed so identical
// input encodes to identical bytes.
const CreatedBy = "tripflow"

// ReadParquetFile reads a whole Parquet file into memory. The decoder
// panics on some damaged files; those come back as errors.
func ReadParquetFile(ctx context.Context, path string, mem memory.Allocator) (tbl arrow.Table, err error) {
	defer recoverAs(&err, "parquet decoder")

	fr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer fr.Close()

	// columns are decoded on this goroutine so recoverAs sees every panic
	arrowReader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{BatchSize: 64 * 1024}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}

	tbl, err = arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read Parquet data: %w", err)
	}
	return tbl, nil
}

// WriterConfig configures Parquet encoding
type WriterConfig struct {
	Compression    compress.Compression
	RowGroupLength int64
	Allocator      memory.Allocator
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Compression:    compress.Codecs.Snappy,
		RowGroupLength: 128 * 1024,
	}
}

// NewParquetWriter opens a Parquet encoder over w. Closing the returned
// writer also closes w when it is an io.Closer, so callers that need to
// sync should pass a wrapper.
func NewParquetWriter(w io.Writer, schema *arrow.Schema, cfg WriterConfig) (fw *pqarrow.FileWriter, err error) {
	defer recoverAs(&err, "parquet encoder")

	mem := cfg.Allocator
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	rowGroup := cfg.RowGroupLength
	if rowGroup <= 0 {
		rowGroup = DefaultWriterConfig().RowGroupLength
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(cfg.Compression),
		parquet.WithMaxRowGroupLength(rowGroup),
		parquet.WithCreatedBy(CreatedBy),
		parquet.WithDictionaryDefault(true),
		parquet.WithStats(true),
		parquet.WithAllocator(mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
		pqarrow.WithAllocator(mem),
	)

	fw, err = pqarrow.NewFileWriter(schema, w, props, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	return fw, nil
}

// Write appends rec to fw. The encoder panics on some sink failures;
// those come back as errors.
func Write(fw *pqarrow.FileWriter, rec arrow.Record) (err error) {
	defer recoverAs(&err, "parquet encoder")
	return fw.Write(rec)
}

// Close flushes and finalizes fw, with the same panic handling as Write.
func Close(fw *pqarrow.FileWriter) (err error) {
	defer recoverAs(&err, "parquet encoder")
	return fw.Close()
}

// WriteParquet encodes rec as one complete Parquet file.
func WriteParquet(w io.Writer, rec arrow.Record, cfg WriterConfig) error {
	fw, err := NewParquetWriter(w, rec.Schema(), cfg)
	if err != nil {
		return err
	}
	if err := Write(fw, rec); err != nil {
		_ = Close(fw)
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := Close(fw); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}

// recoverAs turns a panic into *err. It must be deferred directly.
func recoverAs(err *error, what string) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = fmt.Errorf("%s: %w", what, e)
			return
		}
		*err = fmt.Errorf("%s: %v", what, r)
	}
}
