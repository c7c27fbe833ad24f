package models

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// RawBatch is a decoded source file in its own schema. It is produced by
// the fetcher and only read by the validator.
type RawBatch struct {
	Unit       WorkUnit
	Table      arrow.Table
	SourcePath string
	SourceURL  string
	CacheHit   bool
}

// NumRows returns the number of rows in the batch.
func (b *RawBatch) NumRows() int64 {
	if b == nil || b.Table == nil {
		return 0
	}
	return b.Table.NumRows()
}

// Release frees the underlying Arrow buffers.
func (b *RawBatch) Release() {
	if b != nil && b.Table != nil {
		b.Table.Release()
		b.Table = nil
	}
}

// Drop reasons, in the order the validator applies them.
const (
	DropNullRequired     = "null_required"
	DropInvalidTimestamp = "invalid_timestamp"
	DropOutsideWindow    = "outside_window"
)

// DropStats counts rows removed by validation, by reason.
type DropStats struct {
	NullRequired     int64 `json:"null_required"`
	InvalidTimestamp int64 `json:"invalid_timestamp"`
	OutsideWindow    int64 `json:"outside_window"`
}

// Total is the number of dropped rows.
func (d DropStats) Total() int64 {
	return d.NullRequired + d.InvalidTimestamp + d.OutsideWindow
}

// ByReason returns the counters keyed by drop reason.
func (d DropStats) ByReason() map[string]int64 {
	return map[string]int64{
		DropNullRequired:     d.NullRequired,
		DropInvalidTimestamp: d.InvalidTimestamp,
		DropOutsideWindow:    d.OutsideWindow,
	}
}

// CleanBatch is a validated record in the canonical schema, with the
// year and month partition columns appended as the last two columns.
type CleanBatch struct {
	Unit    WorkUnit
	Record  arrow.Record
	RawRows int64
	Drops   DropStats
}

// NumRows returns the number of rows in the batch.
func (b *CleanBatch) NumRows() int64 {
	if b == nil || b.Record == nil {
		return 0
	}
	return b.Record.NumRows()
}

// Release frees the underlying Arrow buffers.
func (b *CleanBatch) Release() {
	if b != nil && b.Record != nil {
		b.Record.Release()
		b.Record = nil
	}
}
