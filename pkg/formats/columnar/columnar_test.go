package columnar

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tripsCSV = "VendorID,tpep_pickup_datetime,passenger_count\n" +
	"1,2024-03-01 00:10:00,1\n" +
	"2,2024-03-01 00:20:00,\n"

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name string
		want compress.Compression
	}{
		{"", compress.Codecs.Snappy},
		{"SNAPPY", compress.Codecs.Snappy},
		{"zstd", compress.Codecs.Zstd},
		{"gzip", compress.Codecs.Gzip},
		{"lz4", compress.Codecs.Lz4Raw},
		{"brotli", compress.Codecs.Brotli},
		{"none", compress.Codecs.Uncompressed},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := ParseCompression("lzo")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, Parquet, f)

	f, err = ParseFormat("CSV.GZ")
	require.NoError(t, err)
	assert.Equal(t, CSVGzip, f)
	assert.Equal(t, ".csv.gz", GetFormatInfo(f).FileExtension)

	_, err = ParseFormat("orc")
	assert.Error(t, err)
}

func TestParquetFile(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "fare", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{9.5, 0, 12}, []bool{true, false, true})
	rec := b.NewRecord()
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "part.parquet")
	var first bytes.Buffer
	require.NoError(t, WriteParquet(&first, rec, WriterConfig{Compression: compress.Codecs.Zstd, RowGroupLength: 2}))
	require.NoError(t, os.WriteFile(path, first.Bytes(), 0o644))

	var second bytes.Buffer
	require.NoError(t, WriteParquet(&second, rec, WriterConfig{Compression: compress.Codecs.Zstd, RowGroupLength: 2}))
	assert.Equal(t, first.Bytes(), second.Bytes(), "encoding is deterministic")

	tbl, err := ReadFile(context.Background(), path, Parquet, mem)
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(3), tbl.NumRows())
	assert.Equal(t, 1, tbl.Column(1).NullN())
}

func TestReadFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.parquet")
	require.NoError(t, os.WriteFile(path, []byte("PAR1 this is not parquet"), 0o644))

	_, err := ReadFile(context.Background(), path, Parquet, nil)
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	tbl, err := ReadCSV(bytes.NewBufferString(tripsCSV), memory.NewGoAllocator())
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, int64(2), tbl.NumRows())
	require.Equal(t, int64(3), tbl.NumCols())
	assert.Equal(t, "tpep_pickup_datetime", tbl.Schema().Field(1).Name)
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, tbl.Schema().Field(2).Type))
	assert.Equal(t, 1, tbl.Column(2).NullN(), "empty cells are null")
}

func TestReadGzipCSV(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(tripsCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "yellow_tripdata_2024-03.csv.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	tbl, err := ReadFile(context.Background(), path, CSVGzip, nil)
	require.NoError(t, err)
	defer tbl.Release()
	assert.Equal(t, int64(2), tbl.NumRows())
}
