package columnar

import (
	"bufio"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const csvChunkRows = 64 * 1024

// ReadCSV reads CSV with a header row. Every column is read as text and
// empty cells as null; typing happens downstream.
func ReadCSV(r io.Reader, mem memory.Allocator) (tbl arrow.Table, err error) {
	defer recoverAs(&err, "csv decoder")

	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	header, err := stdcsv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}
	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		fields[i] = arrow.Field{Name: strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	rdr := csv.NewReader(io.MultiReader(strings.NewReader(line), br), schema,
		csv.WithHeader(true),
		csv.WithNullReader(true, ""),
		csv.WithChunk(csvChunkRows),
		csv.WithAllocator(mem),
	)
	defer rdr.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("failed to read CSV rows: %w", err)
	}

	return array.NewTableFromRecords(schema, recs), nil
}
