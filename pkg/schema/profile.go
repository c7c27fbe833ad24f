// Package schema describes the trip-record datasets tripflow understands:
// the canonical column set of each dataset, the names those columns have
// carried across years of published files, and the Arrow types they are
// normalized to.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Kind is the canonical logical type of a column.
type Kind int

const (
	KindInt32 Kind = iota
	KindInt64
	KindFloat64
	KindString
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindTimestamp:
		return "timestamp[us]"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Partition column names. They are appended to clean batches and encoded
// in the output directory layout.
const (
	YearColumn  = "year"
	MonthColumn = "month"
)

// TimestampType is the canonical datetime type: microseconds, no zone.
// Source values are wall-clock times and stay that way.
var TimestampType = &arrow.TimestampType{Unit: arrow.Microsecond}

// ArrowType maps a Kind onto its Arrow type.
func (k Kind) ArrowType() arrow.DataType {
	switch k {
	case KindInt32:
		return arrow.PrimitiveTypes.Int32
	case KindInt64:
		return arrow.PrimitiveTypes.Int64
	case KindFloat64:
		return arrow.PrimitiveTypes.Float64
	case KindTimestamp:
		return TimestampType
	default:
		return arrow.BinaryTypes.String
	}
}

// Column is one canonical column of a profile.
type Column struct {
	Name     string
	Aliases  []string
	Kind     Kind
	Required bool
}

// Profile is the canonical layout of one dataset.
type Profile struct {
	// Name is the dataset name, also the raw file prefix (yellow, green).
	Name          string
	PickupColumn  string
	DropoffColumn string
	Columns       []Column
}

// FileStem returns the raw file name without extension for a period,
// e.g. yellow_tripdata_2024-03.
func (p *Profile) FileStem(year, month int) string {
	return fmt.Sprintf("%s_tripdata_%04d-%02d", p.Name, year, month)
}

// Index returns the position of the named canonical column, or -1.
func (p *Profile) Index(name string) int {
	for i, c := range p.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Schema returns the canonical Arrow schema of the data files.
func (p *Profile) Schema() *arrow.Schema {
	fields := make([]arrow.Field, 0, len(p.Columns))
	for _, c := range p.Columns {
		fields = append(fields, arrow.Field{Name: c.Name, Type: c.Kind.ArrowType(), Nullable: !c.Required})
	}
	return arrow.NewSchema(fields, nil)
}

// PartitionedSchema is Schema with the year and month columns appended.
func (p *Profile) PartitionedSchema() *arrow.Schema {
	fields := p.Schema().Fields()
	fields = append(fields,
		arrow.Field{Name: YearColumn, Type: arrow.PrimitiveTypes.Int32},
		arrow.Field{Name: MonthColumn, Type: arrow.PrimitiveTypes.Int32},
	)
	return arrow.NewSchema(fields, nil)
}

// Binding maps each canonical column to a column of a source schema.
type Binding struct {
	Profile *Profile
	// Source[i] is the source index of Profile.Columns[i], or -1 when the
	// source file does not carry it.
	Source []int
	// Unmapped lists source columns the profile does not know.
	Unmapped []string
}

// Missing lists canonical columns absent from the source.
func (b *Binding) Missing() []string {
	var out []string
	for i, idx := range b.Source {
		if idx < 0 {
			out = append(out, b.Profile.Columns[i].Name)
		}
	}
	return out
}

// Bind matches a source schema against the profile. Names are compared
// case-insensitively, canonical name first, then aliases.
func (p *Profile) Bind(src *arrow.Schema) *Binding {
	byName := make(map[string]int, src.NumFields())
	for i, f := range src.Fields() {
		key := strings.ToLower(f.Name)
		if _, dup := byName[key]; !dup {
			byName[key] = i
		}
	}

	b := &Binding{Profile: p, Source: make([]int, len(p.Columns))}
	used := make(map[int]bool, len(p.Columns))
	for i, c := range p.Columns {
		b.Source[i] = -1
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			if idx, ok := byName[strings.ToLower(name)]; ok && !used[idx] {
				b.Source[i] = idx
				used[idx] = true
				break
			}
		}
	}

	for i, f := range src.Fields() {
		if !used[i] {
			b.Unmapped = append(b.Unmapped, f.Name)
		}
	}
	sort.Strings(b.Unmapped)
	return b
}

// Resolve is Bind for a decoded source file. A source without both
// datetime columns cannot be placed in time and is rejected.
func (p *Profile) Resolve(src *arrow.Schema) (*Binding, error) {
	b := p.Bind(src)
	for _, name := range []string{p.PickupColumn, p.DropoffColumn} {
		if b.Source[p.Index(name)] < 0 {
			return nil, fmt.Errorf("source schema has no %s column", name)
		}
	}
	return b, nil
}

// ByName returns the profile for a dataset name.
func ByName(name string) (*Profile, error) {
	switch strings.ToLower(name) {
	case "", Yellow.Name:
		return Yellow, nil
	case Green.Name:
		return Green, nil
	default:
		return nil, fmt.Errorf("unknown dataset %q", name)
	}
}
