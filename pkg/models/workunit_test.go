package models

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkUnitValidate(t *testing.T) {
	tests := []struct {
		name    string
		unit    WorkUnit
		wantErr bool
	}{
		{"valid", WorkUnit{Year: 2024, Month: 3}, false},
		{"month zero", WorkUnit{Year: 2024, Month: 0}, true},
		{"month thirteen", WorkUnit{Year: 2024, Month: 13}, true},
		{"before dataset", WorkUnit{Year: 2008, Month: 12}, true},
		{"future year", WorkUnit{Year: 2031, Month: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.unit.Validate(0, 2030)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWorkUnitContainsComparesYearAndMonthJointly(t *testing.T) {
	u := WorkUnit{Year: 2024, Month: 3}

	assert.True(t, u.Contains(time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, u.Contains(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, u.Contains(time.Date(2002, 3, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, u.Contains(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPartitionKeyDir(t *testing.T) {
	k := WorkUnit{Year: 2024, Month: 3}.Key()

	assert.Equal(t, "year=2024/month=3", k.SlashDir())
	assert.Equal(t, filepath.Join("/data", "year=2024", "month=3"), k.Path("/data"))
	assert.Equal(t, "2024-03", WorkUnit{Year: 2024, Month: 3}.String())
}

func TestExpandRange(t *testing.T) {
	got, err := ExpandRange([]int{3, 1}, "2-4", 1, 12)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, got)

	_, err = ExpandRange(nil, "5-2", 1, 12)
	assert.Error(t, err)

	_, err = ExpandRange(nil, "oops", 1, 12)
	assert.Error(t, err)

	_, err = ExpandRange([]int{13}, "", 1, 12)
	assert.Error(t, err)

	_, err = ExpandRange(nil, "", 1, 12)
	assert.Error(t, err)
}

func TestExpandUnits(t *testing.T) {
	units := ExpandUnits([]int{2024, 2023}, []int{2, 1, 2})
	assert.Equal(t, []WorkUnit{
		{Year: 2023, Month: 1}, {Year: 2023, Month: 2},
		{Year: 2024, Month: 1}, {Year: 2024, Month: 2},
	}, units)
}

func TestDropStatsTotal(t *testing.T) {
	d := DropStats{NullRequired: 2, InvalidTimestamp: 1, OutsideWindow: 4}
	assert.Equal(t, int64(7), d.Total())
	assert.Equal(t, int64(4), d.ByReason()[DropOutsideWindow])
}
