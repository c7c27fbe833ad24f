// Package validate turns raw trip batches into clean, canonical batches.
//
// Validation never fails. Every row either survives or is counted against
// exactly one drop reason, checked in this order: a required value is
// missing, a datetime is missing or unreadable, the pickup lies outside the
// work unit's calendar month.
package validate

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tripflow/pkg/logger"
	"github.com/ajitpratap0/tripflow/pkg/models"
	"github.com/ajitpratap0/tripflow/pkg/schema"
)

const readChunkRows = 64 * 1024

// Config tunes the validator.
type Config struct {
	// TimestampLayouts are tried before the built-in datetime layouts.
	TimestampLayouts []string `mapstructure:"timestamp_layouts" yaml:"timestamp_layouts"`
}

// Validator applies a dataset profile to raw batches. It is safe for
// concurrent use.
type Validator struct {
	profile *schema.Profile
	parser  *schema.TimestampParser
	mem     memory.Allocator
	logger  *zap.Logger
}

// New creates a validator for profile.
func New(profile *schema.Profile, cfg Config, log *zap.Logger) *Validator {
	if profile == nil {
		profile = schema.Yellow
	}
	return &Validator{
		profile: profile,
		parser:  schema.NewTimestampParser(cfg.TimestampLayouts...),
		mem:     memory.NewGoAllocator(),
		logger:  logger.OrNop(log).With(zap.String("component", "validator")),
	}
}

// column copies one canonical column of a source chunk into the output.
type column struct {
	present func(row int) bool
	append  func(row int)
}

// Validate produces the clean batch for unit. raw is only read.
func (v *Validator) Validate(raw *models.RawBatch, unit models.WorkUnit) *models.CleanBatch {
	out := schemaFor(v.profile)
	b := array.NewRecordBuilder(v.mem, out)
	defer b.Release()

	clean := &models.CleanBatch{Unit: unit, RawRows: raw.NumRows()}

	if raw.NumRows() > 0 {
		binding := v.profile.Bind(raw.Table.Schema())
		if missing := binding.Missing(); len(missing) > 0 {
			v.logger.Debug("source lacks columns, filling with nulls",
				zap.Stringer("unit", unit), zap.Strings("columns", missing))
		}
		if len(binding.Unmapped) > 0 {
			v.logger.Debug("ignoring unknown source columns",
				zap.Stringer("unit", unit), zap.Strings("columns", binding.Unmapped))
		}

		tr := array.NewTableReader(raw.Table, readChunkRows)
		for tr.Next() {
			v.validateChunk(tr.Record(), binding, unit, b, &clean.Drops)
		}
		tr.Release()
	}

	clean.Record = b.NewRecord()

	v.logger.Debug("validated batch",
		zap.Stringer("unit", unit),
		zap.Int64("rows_read", clean.RawRows),
		zap.Int64("rows_kept", clean.NumRows()),
		zap.Int64("dropped_null_required", clean.Drops.NullRequired),
		zap.Int64("dropped_invalid_timestamp", clean.Drops.InvalidTimestamp),
		zap.Int64("dropped_outside_window", clean.Drops.OutsideWindow),
	)
	return clean
}

func (v *Validator) validateChunk(rec arrow.Record, binding *schema.Binding, unit models.WorkUnit, b *array.RecordBuilder, drops *models.DropStats) {
	p := v.profile
	source := func(i int) arrow.Array {
		if idx := binding.Source[i]; idx >= 0 {
			return rec.Column(idx)
		}
		return nil
	}

	pickupIdx, dropoffIdx := p.Index(p.PickupColumn), p.Index(p.DropoffColumn)
	pickup := timestamps(source(pickupIdx), v.parser)
	dropoff := timestamps(source(dropoffIdx), v.parser)
	pickupB := b.Field(pickupIdx).(*array.TimestampBuilder)
	dropoffB := b.Field(dropoffIdx).(*array.TimestampBuilder)

	var required []column
	copiers := make([]column, 0, len(p.Columns))
	for i, c := range p.Columns {
		if i == pickupIdx || i == dropoffIdx {
			continue
		}
		col := copier(c.Kind, source(i), b.Field(i), v.parser)
		copiers = append(copiers, col)
		if c.Required {
			required = append(required, col)
		}
	}
	yearB := b.Field(len(p.Columns)).(*array.Int32Builder)
	monthB := b.Field(len(p.Columns) + 1).(*array.Int32Builder)

rows:
	for row := 0; row < int(rec.NumRows()); row++ {
		for _, col := range required {
			if !col.present(row) {
				drops.NullRequired++
				continue rows
			}
		}

		pu, okPickup := pickup(row)
		do, okDropoff := dropoff(row)
		if !okPickup || !okDropoff {
			drops.InvalidTimestamp++
			continue
		}

		if !unit.Contains(pu) {
			drops.OutsideWindow++
			continue
		}

		for _, col := range copiers {
			col.append(row)
		}
		pickupB.Append(toMicros(pu))
		dropoffB.Append(toMicros(do))
		yearB.Append(int32(unit.Year))
		monthB.Append(int32(unit.Month))
	}
}

func toMicros(t time.Time) arrow.Timestamp {
	return arrow.Timestamp(t.UnixMicro())
}

func timestamps(arr arrow.Array, p *schema.TimestampParser) schema.TimestampReader {
	if arr == nil {
		return func(int) (time.Time, bool) { return time.Time{}, false }
	}
	return schema.TimestampOf(arr, p)
}

// copier binds a source array to the builder of its canonical column. A nil
// source reads as all nulls.
func copier(kind schema.Kind, arr arrow.Array, fb array.Builder, p *schema.TimestampParser) column {
	if arr == nil {
		return column{
			present: func(int) bool { return false },
			append:  func(int) { fb.AppendNull() },
		}
	}

	switch kind {
	case schema.KindInt32:
		read, bld := schema.Int32Of(arr), fb.(*array.Int32Builder)
		return column{
			present: func(row int) bool { _, ok := read(row); return ok },
			append: func(row int) {
				if v, ok := read(row); ok {
					bld.Append(int32(v))
				} else {
					bld.AppendNull()
				}
			},
		}
	case schema.KindInt64:
		read, bld := schema.Int64Of(arr), fb.(*array.Int64Builder)
		return column{
			present: func(row int) bool { _, ok := read(row); return ok },
			append: func(row int) {
				if v, ok := read(row); ok {
					bld.Append(v)
				} else {
					bld.AppendNull()
				}
			},
		}
	case schema.KindFloat64:
		read, bld := schema.Float64Of(arr), fb.(*array.Float64Builder)
		return column{
			present: func(row int) bool { _, ok := read(row); return ok },
			append: func(row int) {
				if v, ok := read(row); ok {
					bld.Append(v)
				} else {
					bld.AppendNull()
				}
			},
		}
	case schema.KindTimestamp:
		read, bld := schema.TimestampOf(arr, p), fb.(*array.TimestampBuilder)
		return column{
			present: func(row int) bool { _, ok := read(row); return ok },
			append: func(row int) {
				if v, ok := read(row); ok {
					bld.Append(toMicros(v))
				} else {
					bld.AppendNull()
				}
			},
		}
	default:
		read, bld := schema.StringOf(arr), fb.(*array.StringBuilder)
		return column{
			present: func(row int) bool { _, ok := read(row); return ok },
			append: func(row int) {
				if v, ok := read(row); ok {
					bld.Append(v)
				} else {
					bld.AppendNull()
				}
			},
		}
	}
}
