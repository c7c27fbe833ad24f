package schema

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMatchesAliasesCaseInsensitively(t *testing.T) {
	src := arrow.NewSchema([]arrow.Field{
		{Name: "Trip_Pickup_DateTime", Type: arrow.BinaryTypes.String},
		{Name: "Trip_Dropoff_DateTime", Type: arrow.BinaryTypes.String},
		{Name: "Passenger_Count", Type: arrow.PrimitiveTypes.Int64},
		{Name: "Airport_fee", Type: arrow.PrimitiveTypes.Float64},
		{Name: "Total_Amt", Type: arrow.PrimitiveTypes.Float64},
		{Name: "mystery", Type: arrow.BinaryTypes.String},
	}, nil)

	b, err := Yellow.Resolve(src)
	require.NoError(t, err)

	assert.Equal(t, 0, b.Source[Yellow.Index("tpep_pickup_datetime")])
	assert.Equal(t, 1, b.Source[Yellow.Index("tpep_dropoff_datetime")])
	assert.Equal(t, 2, b.Source[Yellow.Index("passenger_count")])
	assert.Equal(t, 3, b.Source[Yellow.Index("airport_fee")])
	assert.Equal(t, 4, b.Source[Yellow.Index("total_amount")])
	assert.Equal(t, -1, b.Source[Yellow.Index("trip_distance")])
	assert.Equal(t, []string{"mystery"}, b.Unmapped)
	assert.Contains(t, b.Missing(), "trip_distance")
}

func TestResolveRequiresDatetimeColumns(t *testing.T) {
	src := arrow.NewSchema([]arrow.Field{
		{Name: "tpep_pickup_datetime", Type: TimestampType},
		{Name: "passenger_count", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	_, err := Yellow.Resolve(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tpep_dropoff_datetime")
}

func TestPartitionedSchema(t *testing.T) {
	s := Yellow.PartitionedSchema()
	n := s.NumFields()
	assert.Equal(t, len(Yellow.Columns)+2, n)
	assert.Equal(t, YearColumn, s.Field(n-2).Name)
	assert.Equal(t, MonthColumn, s.Field(n-1).Name)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int32, s.Field(n-1).Type))

	pickup, ok := Yellow.Schema().FieldsByName("tpep_pickup_datetime")
	require.True(t, ok)
	assert.True(t, arrow.TypeEqual(TimestampType, pickup[0].Type))
	assert.False(t, pickup[0].Nullable)
}

func TestByName(t *testing.T) {
	p, err := ByName("GREEN")
	require.NoError(t, err)
	assert.Equal(t, "lpep_pickup_datetime", p.PickupColumn)
	assert.Equal(t, "green_tripdata_2019-01", p.FileStem(2019, 1))

	_, err = ByName("fhv")
	assert.Error(t, err)
}

func TestInt64OfCoercion(t *testing.T) {
	mem := memory.NewGoAllocator()

	fb := array.NewFloat64Builder(mem)
	defer fb.Release()
	fb.AppendValues([]float64{1, 2.5, 3}, []bool{true, true, false})
	floats := fb.NewFloat64Array()
	defer floats.Release()

	read := Int64Of(floats)
	v, ok := read(0)
	assert.True(t, ok)
	assert.Equal(t, int64(1), v)
	_, ok = read(1)
	assert.False(t, ok, "fractional values are not integers")
	_, ok = read(2)
	assert.False(t, ok)

	sb := array.NewStringBuilder(mem)
	defer sb.Release()
	sb.AppendValues([]string{"4", "4.0", "four"}, nil)
	strs := sb.NewStringArray()
	defer strs.Release()

	read = Int64Of(strs)
	for i, want := range []struct {
		v  int64
		ok bool
	}{{4, true}, {4, true}, {0, false}} {
		v, ok := read(i)
		assert.Equal(t, want.ok, ok, "row %d", i)
		assert.Equal(t, want.v, v, "row %d", i)
	}
}

func TestInt32OfRange(t *testing.T) {
	b := array.NewInt64Builder(memory.NewGoAllocator())
	defer b.Release()
	b.AppendValues([]int64{7, 1 << 40}, nil)
	arr := b.NewInt64Array()
	defer arr.Release()

	read := Int32Of(arr)
	v, ok := read(0)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)
	_, ok = read(1)
	assert.False(t, ok)
}

func TestTimestampOfUnits(t *testing.T) {
	want := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

	b := array.NewTimestampBuilder(memory.NewGoAllocator(), &arrow.TimestampType{Unit: arrow.Nanosecond})
	defer b.Release()
	b.Append(arrow.Timestamp(want.UnixNano()))
	b.AppendNull()
	arr := b.NewTimestampArray()
	defer arr.Release()

	read := TimestampOf(arr, NewTimestampParser())
	got, ok := read(0)
	require.True(t, ok)
	assert.True(t, want.Equal(got))
	_, ok = read(1)
	assert.False(t, ok)
}

func TestTimestampParser(t *testing.T) {
	p := NewTimestampParser("02.01.2006 15:04")

	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-01 08:30:00", time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), true},
		{"2024-03-01T08:30:00.250", time.Date(2024, 3, 1, 8, 30, 0, 250e6, time.UTC), true},
		{"2024-03-01T08:30:00Z", time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), true},
		{"03/01/2024 08:30:00 PM", time.Date(2024, 3, 1, 20, 30, 0, 0, time.UTC), true},
		{"01.03.2024 08:30", time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), true},
		{"1709281800", time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), true},
		{"  ", time.Time{}, false},
		{"not a date", time.Time{}, false},
		{"2024-13-01 00:00:00", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := p.Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v", got)
			}
		})
	}
}
