package partition

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/tripflow/pkg/models"
	"github.com/ajitpratap0/tripflow/pkg/schema"
)

// rowRun is the half-open row range [start, end).
type rowRun struct {
	start, end int64
}

// groupRows collects the contiguous runs of each (year, month) pair. A
// batch from a single work unit yields one group with one run.
func groupRows(rec arrow.Record) (map[models.PartitionKey][]rowRun, error) {
	years, err := int32Column(rec, schema.YearColumn)
	if err != nil {
		return nil, err
	}
	months, err := int32Column(rec, schema.MonthColumn)
	if err != nil {
		return nil, err
	}

	groups := make(map[models.PartitionKey][]rowRun)
	n := int(rec.NumRows())
	for i := 0; i < n; {
		if years.IsNull(i) || months.IsNull(i) {
			return nil, fmt.Errorf("row %d has no partition key", i)
		}
		key := models.PartitionKey{Year: years.Value(i), Month: months.Value(i)}
		j := i + 1
		for j < n && years.Value(j) == key.Year && months.Value(j) == key.Month && !years.IsNull(j) && !months.IsNull(j) {
			j++
		}
		groups[key] = append(groups[key], rowRun{start: int64(i), end: int64(j)})
		i = j
	}
	return groups, nil
}

func int32Column(rec arrow.Record, name string) (*array.Int32, error) {
	idx := rec.Schema().FieldIndices(name)
	if len(idx) != 1 {
		return nil, fmt.Errorf("batch has no %s column", name)
	}
	col, ok := rec.Column(idx[0]).(*array.Int32)
	if !ok {
		return nil, fmt.Errorf("%s column is %s, want int32", name, rec.Column(idx[0]).DataType())
	}
	return col, nil
}
