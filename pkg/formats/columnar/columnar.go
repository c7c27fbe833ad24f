// Package columnar reads raw trip files into Arrow tables and encodes
// Arrow records as Parquet.
package columnar

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/klauspost/compress/gzip"
)

// Format represents a raw file format
type Format string

const (
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// CSV is comma separated text, optionally gzip compressed
	CSV Format = "csv"
	// CSVGzip is CSV wrapped in gzip
	CSVGzip Format = "csv.gz"
)

// ParseFormat validates a configured format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", Parquet:
		return Parquet, nil
	case CSV, CSVGzip:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported raw format: %s", name)
	}
}

// FormatInfo provides information about a file format
type FormatInfo struct {
	Format        Format
	Name          string
	FileExtension string
	MIMEType      string
}

// GetFormatInfo returns information about a format
func GetFormatInfo(format Format) *FormatInfo {
	switch format {
	case Parquet:
		return &FormatInfo{
			Format:        Parquet,
			Name:          "Apache Parquet",
			FileExtension: ".parquet",
			MIMEType:      "application/vnd.apache.parquet",
		}
	case CSV:
		return &FormatInfo{
			Format:        CSV,
			Name:          "CSV",
			FileExtension: ".csv",
			MIMEType:      "text/csv",
		}
	case CSVGzip:
		return &FormatInfo{
			Format:        CSVGzip,
			Name:          "Gzipped CSV",
			FileExtension: ".csv.gz",
			MIMEType:      "application/gzip",
		}
	default:
		return nil
	}
}

// ParseCompression maps a codec name onto a Parquet codec.
func ParseCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unsupported compression: %s", name)
	}
}

// ReadFile decodes a raw file into a table with the file's own schema.
// The caller releases the table.
func ReadFile(ctx context.Context, path string, format Format, mem memory.Allocator) (arrow.Table, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	switch format {
	case Parquet:
		return ReadParquetFile(ctx, path, mem)
	case CSV, CSVGzip:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if format == CSV {
			return ReadCSV(f, mem)
		}
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		return ReadCSV(zr, mem)
	default:
		return nil, fmt.Errorf("unsupported raw format: %s", format)
	}
}
