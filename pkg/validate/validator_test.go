package validate

import (
	"bytes"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tripflow/pkg/formats/columnar"
	"github.com/ajitpratap0/tripflow/pkg/models"
	"github.com/ajitpratap0/tripflow/pkg/schema"
	"github.com/ajitpratap0/tripflow/pkg/testutil"
)

var march2024 = models.WorkUnit{Year: 2024, Month: 3}

func at(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 9, 15, 0, 0, time.UTC)
}

func rawBatch(t *testing.T, trips []testutil.Trip) *models.RawBatch {
	t.Helper()
	raw := &models.RawBatch{Unit: march2024, Table: testutil.YellowTable(t, trips)}
	t.Cleanup(raw.Release)
	return raw
}

func fieldOf(t *testing.T, rec arrow.Record, name string) arrow.Array {
	t.Helper()
	idx := rec.Schema().FieldIndices(name)
	require.Len(t, idx, 1, name)
	return rec.Column(idx[0])
}

func TestJointYearMonthWindow(t *testing.T) {
	v := New(schema.Yellow, Config{}, testutil.TestLogger(t))
	raw := rawBatch(t, []testutil.Trip{
		testutil.NewTrip(at(2002, 3, 5)),
		testutil.NewTrip(at(2024, 1, 5)),
		testutil.NewTrip(at(2024, 3, 10)),
		testutil.NewTrip(at(2023, 3, 10)),
		testutil.NewTrip(at(2024, 4, 1)),
	})

	clean := v.Validate(raw, march2024)
	defer clean.Release()

	require.Equal(t, int64(1), clean.NumRows())
	assert.Equal(t, int64(4), clean.Drops.OutsideWindow)

	pickup := fieldOf(t, clean.Record, "tpep_pickup_datetime").(*array.Timestamp)
	assert.Equal(t, at(2024, 3, 10), pickup.Value(0).ToTime(arrow.Microsecond))
	assert.Equal(t, int32(2024), fieldOf(t, clean.Record, schema.YearColumn).(*array.Int32).Value(0))
	assert.Equal(t, int32(3), fieldOf(t, clean.Record, schema.MonthColumn).(*array.Int32).Value(0))
}

func TestNullRequiredAndInvalidTimestamps(t *testing.T) {
	noPassengers := testutil.NewTrip(at(2024, 3, 2))
	noPassengers.Passengers = nil

	noPickup := testutil.NewTrip(at(2024, 3, 2))
	noPickup.Pickup = nil

	noDropoff := testutil.NewTrip(at(2024, 3, 2))
	noDropoff.Dropoff = nil

	// null passengers wins over the missing pickup
	both := testutil.NewTrip(at(2024, 3, 2))
	both.Passengers = nil
	both.Pickup = nil

	noTotal := testutil.NewTrip(at(2024, 3, 2))
	noTotal.Total = nil

	fractional := testutil.NewTrip(at(2024, 3, 2))
	fractional.Passengers = testutil.Ptr(1.5)

	raw := rawBatch(t, []testutil.Trip{
		noPassengers, noPickup, noDropoff, both, noTotal, fractional,
		testutil.NewTrip(at(2024, 3, 3)),
	})

	clean := New(schema.Yellow, Config{}, nil).Validate(raw, march2024)
	defer clean.Release()

	assert.Equal(t, int64(1), clean.NumRows())
	assert.Equal(t, models.DropStats{NullRequired: 4, InvalidTimestamp: 2}, clean.Drops)
}

func TestRowAccountingAndRawUntouched(t *testing.T) {
	trips := testutil.TripsIn(2024, 3, 40)
	trips = append(trips, testutil.TripsIn(2024, 2, 7)...)
	trips[3].Passengers = nil
	trips[9].Dropoff = nil

	raw := rawBatch(t, trips)
	schemaBefore := raw.Table.Schema()
	nullsBefore := raw.Table.Column(3).NullN()

	clean := New(schema.Yellow, Config{}, nil).Validate(raw, march2024)
	defer clean.Release()

	assert.Equal(t, raw.NumRows(), clean.RawRows)
	assert.Equal(t, clean.RawRows-clean.NumRows(), clean.Drops.Total())
	assert.Equal(t, int64(38), clean.NumRows())
	assert.LessOrEqual(t, clean.NumRows(), raw.NumRows())

	assert.Equal(t, int64(47), raw.NumRows())
	assert.True(t, schemaBefore.Equal(raw.Table.Schema()))
	assert.Equal(t, nullsBefore, raw.Table.Column(3).NullN())
}

func TestCanonicalSchemaAndCoercion(t *testing.T) {
	trip := testutil.NewTrip(at(2024, 3, 4))
	trip.Passengers = testutil.Ptr(3.0)
	trip.AirportFee = testutil.Ptr(1.75)

	clean := New(schema.Yellow, Config{}, nil).Validate(rawBatch(t, []testutil.Trip{trip}), march2024)
	defer clean.Release()

	assert.True(t, schema.Yellow.PartitionedSchema().Equal(clean.Record.Schema()))

	assert.Equal(t, int64(3), fieldOf(t, clean.Record, "passenger_count").(*array.Int64).Value(0))
	assert.Equal(t, int32(2), fieldOf(t, clean.Record, "VendorID").(*array.Int32).Value(0))
	assert.Equal(t, 1.75, fieldOf(t, clean.Record, "airport_fee").(*array.Float64).Value(0))
	assert.Equal(t, "N", fieldOf(t, clean.Record, "store_and_fwd_flag").(*array.String).Value(0))

	surcharge := fieldOf(t, clean.Record, "congestion_surcharge")
	assert.Equal(t, 1, surcharge.NullN(), "columns absent from the source are null")
}

func TestStringTimestamps(t *testing.T) {
	csv := "tpep_pickup_datetime,tpep_dropoff_datetime,passenger_count,trip_distance,total_amount,RatecodeID\n" +
		"2024-03-01 00:10:00,2024-03-01 00:25:00,1,1.2,10.5,1\n" +
		"2024-03-01T07:00:00.5,2024-03-01T07:20:00,2.0,3.1,22.0,\n" +
		"yesterday,2024-03-01 00:25:00,1,1.2,10.5,1\n" +
		"2024-03-01 00:10:00,2024-03-01 00:25:00,,1.2,10.5,1\n" +
		"2024-02-29 23:59:59,2024-03-01 00:25:00,1,1.2,10.5,1\n"

	tbl, err := columnar.ReadCSV(bytes.NewBufferString(csv), memory.NewGoAllocator())
	require.NoError(t, err)
	raw := &models.RawBatch{Unit: march2024, Table: tbl}
	defer raw.Release()

	clean := New(schema.Yellow, Config{}, nil).Validate(raw, march2024)
	defer clean.Release()

	require.Equal(t, int64(2), clean.NumRows())
	assert.Equal(t, models.DropStats{NullRequired: 1, InvalidTimestamp: 1, OutsideWindow: 1}, clean.Drops)

	pickup := fieldOf(t, clean.Record, "tpep_pickup_datetime").(*array.Timestamp)
	assert.Equal(t, time.Date(2024, 3, 1, 7, 0, 0, 500e6, time.UTC), pickup.Value(1).ToTime(arrow.Microsecond))

	passengers := fieldOf(t, clean.Record, "passenger_count").(*array.Int64)
	assert.Equal(t, int64(2), passengers.Value(1))

	ratecode := fieldOf(t, clean.Record, "RatecodeID")
	assert.True(t, ratecode.IsNull(1))
}

func TestExtraTimestampLayouts(t *testing.T) {
	csv := "tpep_pickup_datetime,tpep_dropoff_datetime,passenger_count,trip_distance,total_amount\n" +
		"01.03.2024 06:00,01.03.2024 06:30,1,1,1\n"

	tbl, err := columnar.ReadCSV(bytes.NewBufferString(csv), memory.NewGoAllocator())
	require.NoError(t, err)
	raw := &models.RawBatch{Unit: march2024, Table: tbl}
	defer raw.Release()

	strict := New(schema.Yellow, Config{}, nil).Validate(raw, march2024)
	defer strict.Release()
	assert.Equal(t, int64(0), strict.NumRows())
	assert.Equal(t, int64(1), strict.Drops.InvalidTimestamp)

	lenient := New(schema.Yellow, Config{TimestampLayouts: []string{"02.01.2006 15:04"}}, nil).Validate(raw, march2024)
	defer lenient.Release()
	assert.Equal(t, int64(1), lenient.NumRows())
}

func TestEmptyBatch(t *testing.T) {
	clean := New(schema.Yellow, Config{}, nil).Validate(&models.RawBatch{Unit: march2024}, march2024)
	defer clean.Release()

	assert.Equal(t, int64(0), clean.NumRows())
	assert.Equal(t, int64(0), clean.RawRows)
	assert.Equal(t, len(schema.Yellow.Columns)+2, int(clean.Record.NumCols()))
}
