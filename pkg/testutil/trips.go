package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/require"
)

// Trip is one raw yellow taxi row. Nil pointers are written as nulls.
type Trip struct {
	VendorID   int64
	Pickup     *time.Time
	Dropoff    *time.Time
	Passengers *float64
	Distance   *float64
	Total      *float64
	AirportFee *float64
	Flag       string
}

// NewTrip returns a complete trip starting at pickup.
func NewTrip(pickup time.Time) Trip {
	dropoff := pickup.Add(12 * time.Minute)
	return Trip{
		VendorID:   2,
		Pickup:     &pickup,
		Dropoff:    &dropoff,
		Passengers: Ptr(1.0),
		Distance:   Ptr(2.4),
		Total:      Ptr(17.85),
		AirportFee: Ptr(0.0),
		Flag:       "N",
	}
}

// TripsIn returns n trips spread over the first days of year-month.
func TripsIn(year, month, n int) []Trip {
	trips := make([]Trip, n)
	base := time.Date(year, time.Month(month), 1, 0, 5, 0, 0, time.UTC)
	for i := range trips {
		trips[i] = NewTrip(base.Add(time.Duration(i) * 37 * time.Minute))
	}
	return trips
}

// RawYellowSchema mirrors the published file layout rather than the
// canonical one: float passenger counts and the capitalised Airport_fee.
var RawYellowSchema = arrow.NewSchema([]arrow.Field{
	{Name: "VendorID", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "tpep_pickup_datetime", Type: &arrow.TimestampType{Unit: arrow.Microsecond}, Nullable: true},
	{Name: "tpep_dropoff_datetime", Type: &arrow.TimestampType{Unit: arrow.Microsecond}, Nullable: true},
	{Name: "passenger_count", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "trip_distance", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "store_and_fwd_flag", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "total_amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "Airport_fee", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "vendor_notes", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// YellowRecord builds a raw yellow record. The caller releases it.
func YellowRecord(t testing.TB, trips []Trip) arrow.Record {
	t.Helper()

	b := array.NewRecordBuilder(memory.NewGoAllocator(), RawYellowSchema)
	defer b.Release()

	appendTime := func(fb *array.TimestampBuilder, v *time.Time) {
		if v == nil {
			fb.AppendNull()
			return
		}
		fb.Append(arrow.Timestamp(v.UnixMicro()))
	}
	appendFloat := func(fb *array.Float64Builder, v *float64) {
		if v == nil {
			fb.AppendNull()
			return
		}
		fb.Append(*v)
	}

	for _, trip := range trips {
		b.Field(0).(*array.Int64Builder).Append(trip.VendorID)
		appendTime(b.Field(1).(*array.TimestampBuilder), trip.Pickup)
		appendTime(b.Field(2).(*array.TimestampBuilder), trip.Dropoff)
		appendFloat(b.Field(3).(*array.Float64Builder), trip.Passengers)
		appendFloat(b.Field(4).(*array.Float64Builder), trip.Distance)
		b.Field(5).(*array.StringBuilder).Append(trip.Flag)
		appendFloat(b.Field(6).(*array.Float64Builder), trip.Total)
		appendFloat(b.Field(7).(*array.Float64Builder), trip.AirportFee)
		b.Field(8).(*array.StringBuilder).AppendNull()
	}
	return b.NewRecord()
}

// YellowTable wraps YellowRecord in a table. The caller releases it.
func YellowTable(t testing.TB, trips []Trip) arrow.Table {
	t.Helper()
	rec := YellowRecord(t, trips)
	defer rec.Release()
	return array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
}

// YellowParquet encodes trips as a raw Parquet file.
func YellowParquet(t testing.TB, trips []Trip) []byte {
	t.Helper()
	rec := YellowRecord(t, trips)
	defer rec.Release()

	var buf bytes.Buffer
	fw, err := pqarrow.NewFileWriter(rec.Schema(), &buf, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	require.NoError(t, fw.Write(rec))
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

// WriteYellowParquet writes trips to path, creating parent directories.
func WriteYellowParquet(t testing.TB, path string, trips []Trip) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, YellowParquet(t, trips), 0o644))
}
